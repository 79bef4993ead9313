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

package ina260

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

func newPlayback(t *testing.T, ops ...i2ctest.IO) *Dev {
	t.Helper()

	pb := &i2ctest.Playback{Ops: ops, DontPanic: true}
	t.Cleanup(func() { assert.NoError(t, pb.Close()) })
	return New(&i2c.Dev{Addr: DefaultAddr, Bus: pb})
}

func TestReset(t *testing.T) {
	t.Parallel()

	dev := newPlayback(t, i2ctest.IO{Addr: DefaultAddr, W: []byte{RegConfig, 0x80, 0x00}})
	require.NoError(t, dev.Reset())
}

func TestVerify(t *testing.T) {
	t.Parallel()

	dev := newPlayback(t, i2ctest.IO{Addr: DefaultAddr, W: []byte{RegManufacturerID}, R: []byte{0x54, 0x49}})
	require.NoError(t, dev.Verify())
}

func TestVerify_WrongDevice(t *testing.T) {
	t.Parallel()

	dev := newPlayback(t, i2ctest.IO{Addr: DefaultAddr, W: []byte{RegManufacturerID}, R: []byte{0x12, 0x34}})
	err := dev.Verify()
	require.ErrorIs(t, err, ErrWrongDevice)
	assert.Contains(t, err.Error(), "0x1234")
}

func TestCurrent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  []byte
		want physic.ElectricCurrent
	}{
		{name: "zero", raw: []byte{0x00, 0x00}, want: 0},
		{name: "one lsb", raw: []byte{0x00, 0x01}, want: 1250 * physic.MicroAmpere},
		{name: "one amp", raw: []byte{0x03, 0x20}, want: physic.Ampere},
		{name: "reverse", raw: []byte{0xFF, 0xFF}, want: -1250 * physic.MicroAmpere},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dev := newPlayback(t, i2ctest.IO{Addr: DefaultAddr, W: []byte{RegCurrent}, R: tt.raw})
			got, err := dev.Current()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSense(t *testing.T) {
	t.Parallel()

	dev := newPlayback(t,
		i2ctest.IO{Addr: DefaultAddr, W: []byte{RegCurrent}, R: []byte{0x00, 0x50}},
		i2ctest.IO{Addr: DefaultAddr, W: []byte{RegBusVoltage}, R: []byte{0x0F, 0xA0}},
		i2ctest.IO{Addr: DefaultAddr, W: []byte{RegPower}, R: []byte{0x00, 0x1F}},
	)

	m, err := dev.Sense()
	require.NoError(t, err)
	assert.Equal(t, 100*physic.MilliAmpere, m.Current)
	assert.Equal(t, 5*physic.Volt, m.Voltage)
	assert.Equal(t, 310*physic.MilliWatt, m.Power)
	assert.NotEmpty(t, m.String())
}

func TestReadError(t *testing.T) {
	t.Parallel()

	// an empty playback fails every transaction
	pb := &i2ctest.Playback{DontPanic: true}
	dev := New(&i2c.Dev{Addr: DefaultAddr, Bus: pb})

	_, err := dev.BusVoltage()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register 0x02")

	_, err = dev.Sense()
	require.Error(t, err)
}
