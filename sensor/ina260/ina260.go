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

// Package ina260 reads the INA260 current, voltage and power monitor.
package ina260

import (
	"encoding/binary"
	"errors"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
)

// DefaultAddr is the 7-bit address with A0 and A1 tied to ground.
const DefaultAddr = 0x40

// Register addresses.
const (
	RegConfig         = 0x00
	RegCurrent        = 0x01
	RegBusVoltage     = 0x02
	RegPower          = 0x03
	RegMaskEnable     = 0x06
	RegAlertLimit     = 0x07
	RegManufacturerID = 0xFE
	RegDieID          = 0xFF
)

// Register scale factors.
const (
	CurrentLSB = 1250 * physic.MicroAmpere
	VoltageLSB = 1250 * physic.MicroVolt
	PowerLSB   = 10 * physic.MilliWatt
)

const (
	configReset = 0x8000
	// "TI" in ASCII.
	manufacturerTI = 0x5449
)

// ErrWrongDevice is returned by Verify when the manufacturer id is not TI's.
var ErrWrongDevice = errors.New("not an INA260")

// Measurement is one reading of all three output registers.
type Measurement struct {
	Current physic.ElectricCurrent
	Voltage physic.ElectricPotential
	Power   physic.Power
}

func (m Measurement) String() string {
	return fmt.Sprintf("%s %s %s", m.Current, m.Voltage, m.Power)
}

// Dev is an INA260 on an I2C bus.
type Dev struct {
	c conn.Conn
}

// New returns a handle for the INA260 reachable through c, typically an
// *i2c.Dev with the sensor's address.
func New(c conn.Conn) *Dev {
	return &Dev{c: c}
}

// ReadReg reads a 16-bit big-endian register.
func (d *Dev) ReadReg(reg byte) (uint16, error) {
	var buf [2]byte
	if err := d.c.Tx([]byte{reg}, buf[:]); err != nil {
		return 0, fmt.Errorf("ina260: read register 0x%02X: %w", reg, err)
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

// WriteReg writes a 16-bit big-endian register.
func (d *Dev) WriteReg(reg byte, v uint16) error {
	buf := []byte{reg, 0, 0}
	binary.BigEndian.PutUint16(buf[1:], v)
	if err := d.c.Tx(buf, nil); err != nil {
		return fmt.Errorf("ina260: write register 0x%02X: %w", reg, err)
	}
	return nil
}

// Reset restores every register to its power-on default.
func (d *Dev) Reset() error {
	return d.WriteReg(RegConfig, configReset)
}

// ManufacturerID returns the contents of the manufacturer id register.
func (d *Dev) ManufacturerID() (uint16, error) {
	return d.ReadReg(RegManufacturerID)
}

// Verify checks that the device answers with TI's manufacturer id.
func (d *Dev) Verify() error {
	id, err := d.ManufacturerID()
	if err != nil {
		return err
	}
	if id != manufacturerTI {
		return fmt.Errorf("%w: manufacturer id 0x%04X", ErrWrongDevice, id)
	}
	return nil
}

// Current returns the load current. Negative values mean current flows
// from IN- to IN+.
func (d *Dev) Current() (physic.ElectricCurrent, error) {
	raw, err := d.ReadReg(RegCurrent)
	if err != nil {
		return 0, err
	}
	return physic.ElectricCurrent(int16(raw)) * CurrentLSB, nil //nolint:gosec // two's complement register
}

// BusVoltage returns the voltage at VBUS.
func (d *Dev) BusVoltage() (physic.ElectricPotential, error) {
	raw, err := d.ReadReg(RegBusVoltage)
	if err != nil {
		return 0, err
	}
	return physic.ElectricPotential(raw) * VoltageLSB, nil
}

// Power returns the computed load power.
func (d *Dev) Power() (physic.Power, error) {
	raw, err := d.ReadReg(RegPower)
	if err != nil {
		return 0, err
	}
	return physic.Power(raw) * PowerLSB, nil
}

// Sense reads current, bus voltage and power in that order.
func (d *Dev) Sense() (Measurement, error) {
	var m Measurement
	var err error
	if m.Current, err = d.Current(); err != nil {
		return m, err
	}
	if m.Voltage, err = d.BusVoltage(); err != nil {
		return m, err
	}
	if m.Power, err = d.Power(); err != nil {
		return m, err
	}
	return m, nil
}
