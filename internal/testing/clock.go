// Copyright 2026 The RapidCDH Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package testing

import (
	"time"

	"github.com/rapidcdh/go-ucam/internal/syncutil"
)

// VirtualClock is a deterministic clock whose Sleep advances time instead
// of blocking. Every sleep is recorded.
type VirtualClock struct {
	start  time.Time
	now    time.Time
	sleeps []time.Duration
	mu     syncutil.Mutex
}

// NewVirtualClock creates a clock starting at a fixed instant.
func NewVirtualClock() *VirtualClock {
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	return &VirtualClock{start: start, now: start}
}

// Now returns the current virtual time.
func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances the clock by d.
func (c *VirtualClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

// Advance moves time forward without recording a sleep.
func (c *VirtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Elapsed returns the virtual time since the clock was created.
func (c *VirtualClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Sub(c.start)
}

// Sleeps returns a copy of every recorded sleep.
func (c *VirtualClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// SleptAtLeast reports whether any single sleep lasted d or longer.
func (c *VirtualClock) SleptAtLeast(d time.Duration) bool {
	for _, s := range c.Sleeps() {
		if s >= d {
			return true
		}
	}
	return false
}
