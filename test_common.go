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

//go:build !prod

package ucam

import (
	"testing"

	"github.com/stretchr/testify/require"

	virt "github.com/rapidcdh/go-ucam/internal/testing"
)

// newSimDevice creates a session over a fresh wire simulator with a virtual
// clock. Frames logged by the simulator carry virtual timestamps.
func newSimDevice(t *testing.T, opts ...Option) (*Device, *virt.VirtualUCam, *virt.VirtualClock) {
	t.Helper()

	sim := virt.NewVirtualUCam()
	clock := virt.NewVirtualClock()
	sim.SetClock(clock.Now)

	device, err := New(sim, append([]Option{WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = device.Close() })
	return device, sim, clock
}

// newReadyDevice returns a synchronized session with the given package size
// already negotiated.
func newReadyDevice(t *testing.T, packageSize uint16, opts ...Option) (*Device, *virt.VirtualUCam, *virt.VirtualClock) {
	t.Helper()

	device, sim, clock := newSimDevice(t, opts...)
	ctx := t.Context()
	require.NoError(t, device.Init(ctx))
	if packageSize > 0 {
		require.NoError(t, device.SetPackageSize(ctx, packageSize))
	}
	sim.ClearFrames()
	return device, sim, clock
}
