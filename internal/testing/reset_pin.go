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

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/rapidcdh/go-ucam/internal/syncutil"
)

// PinEvent is one recorded transition of a RecordingPin.
type PinEvent struct {
	At    time.Time
	Level gpio.Level
	// Input is set when the pin was switched to input (hi-Z) rather than
	// driven.
	Input bool
}

// RecordingPin is a gpiotest.Pin that logs every Out and In call with a
// timestamp from the supplied clock.
type RecordingPin struct {
	*gpiotest.Pin

	now    func() time.Time
	events []PinEvent
	mu     syncutil.Mutex
}

// NewRecordingPin creates a pin named name that starts high, timestamped by
// now (time.Now when nil).
func NewRecordingPin(name string, now func() time.Time) *RecordingPin {
	if now == nil {
		now = time.Now
	}
	return &RecordingPin{
		Pin: &gpiotest.Pin{N: name, Num: -1, L: gpio.High},
		now: now,
	}
}

// Out drives the pin and records the level.
func (p *RecordingPin) Out(l gpio.Level) error {
	if err := p.Pin.Out(l); err != nil {
		return err //nolint:wrapcheck // pass-through
	}
	p.record(PinEvent{At: p.now(), Level: l})
	return nil
}

// In switches the pin to input and records the transition.
func (p *RecordingPin) In(pull gpio.Pull, edge gpio.Edge) error {
	if err := p.Pin.In(pull, edge); err != nil {
		return err //nolint:wrapcheck // pass-through
	}
	p.record(PinEvent{At: p.now(), Level: p.Pin.Read(), Input: true})
	return nil
}

func (p *RecordingPin) record(e PinEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

// Events returns a copy of the recorded transitions.
func (p *RecordingPin) Events() []PinEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PinEvent, len(p.events))
	copy(out, p.events)
	return out
}
