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

// Package i2c opens the shared I2C bus used by the onboard sensors.
package i2c

import (
	"fmt"
	"strings"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// Both sensors on the board support fast mode.
const maxClockFreq = 400 * physic.KiloHertz

// Bus is an open I2C bus shared by several devices.
type Bus struct {
	bus     i2c.Bus
	closer  func() error
	busName string
}

// parseI2CPath extracts the bus path from a composite device path.
// Accepts "/dev/i2c-1:0x40" or "/dev/i2c-1".
func parseI2CPath(path string) string {
	bus, _, _ := strings.Cut(path, ":")
	return bus
}

// Open initializes the host drivers and opens busName. An empty name opens
// the first bus found.
func Open(busName string) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bc, err := i2creg.Open(parseI2CPath(busName))
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}

	_ = bc.SetSpeed(maxClockFreq) // Ignore error, continue with default speed

	return &Bus{bus: bc, closer: bc.Close, busName: busName}, nil
}

// Wrap uses an already open bus. Close on the result is a no-op.
func Wrap(bus i2c.Bus, name string) *Bus {
	return &Bus{bus: bus, busName: name}
}

// Dev returns a device handle for the 7-bit address addr.
func (b *Bus) Dev(addr uint16) *i2c.Dev {
	return &i2c.Dev{Addr: addr, Bus: b.bus}
}

// Name returns the bus path the bus was opened with.
func (b *Bus) Name() string {
	return b.busName
}

// Close releases the bus if Open created it.
func (b *Bus) Close() error {
	if b.closer == nil {
		return nil
	}
	closer := b.closer
	b.closer = nil
	if err := closer(); err != nil {
		return fmt.Errorf("failed to close I2C bus %s: %w", b.busName, err)
	}
	return nil
}
