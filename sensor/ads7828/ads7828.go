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

// Package ads7828 reads the eight-channel, 12-bit ADS7828 ADC.
package ads7828

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
)

// BaseAddr is the 7-bit address with A1 and A0 low.
const BaseAddr = 0x48

// DefaultReference is the internal reference voltage.
const DefaultReference = 2500 * physic.MilliVolt

const (
	maxReading = 1<<12 - 1

	// PD1:PD0 = 11 keeps the reference and converter powered.
	powerOn   = 0x0C
	powerMask = 0x0C
)

// ErrInvalidChannel is returned for channels outside 0..7 or pairs outside 0..3.
var ErrInvalidChannel = errors.New("invalid channel")

// Addr returns the 7-bit address for the given address pin levels.
func Addr(a1, a0 bool) uint16 {
	addr := uint16(BaseAddr)
	if a1 {
		addr += 2
	}
	if a0 {
		addr++
	}
	return addr
}

// SingleEndedCommand returns the command byte for channel ch against COM.
func SingleEndedCommand(ch int) byte {
	return byte(56*(ch&1) + 8*ch + 140) //nolint:gosec // ch validated by callers
}

// DifferentialCommand returns the command byte for pair p. Pair 0 is
// CH0/CH1, pair 3 is CH6/CH7. With inverted set the higher channel is the
// positive input.
func DifferentialCommand(pair int, inverted bool) byte {
	cmd := 12 + pair*16
	if inverted {
		cmd += 64
	}
	return byte(cmd) //nolint:gosec // pair validated by callers
}

// Dev is an ADS7828 on an I2C bus.
type Dev struct {
	c       conn.Conn
	vref    physic.ElectricPotential
	lastCmd byte
}

// New returns a handle for the ADC reachable through c. A zero vref uses
// DefaultReference.
func New(c conn.Conn, vref physic.ElectricPotential) *Dev {
	if vref == 0 {
		vref = DefaultReference
	}
	return &Dev{c: c, vref: vref, lastCmd: SingleEndedCommand(0)}
}

// Reference returns the reference voltage readings are scaled by.
func (d *Dev) Reference() physic.ElectricPotential {
	return d.vref
}

// ReadSingleEnded converts channel ch (0..7) against COM.
func (d *Dev) ReadSingleEnded(ch int) (physic.ElectricPotential, error) {
	if ch < 0 || ch > 7 {
		return 0, fmt.Errorf("ads7828: %w: channel %d", ErrInvalidChannel, ch)
	}
	return d.convert(SingleEndedCommand(ch))
}

// ReadDifferential converts differential pair 0..3.
func (d *Dev) ReadDifferential(pair int, inverted bool) (physic.ElectricPotential, error) {
	if pair < 0 || pair > 3 {
		return 0, fmt.Errorf("ads7828: %w: pair %d", ErrInvalidChannel, pair)
	}
	return d.convert(DifferentialCommand(pair, inverted))
}

// ReadRaw converts channel ch and returns the 12-bit code.
func (d *Dev) ReadRaw(ch int) (uint16, error) {
	if ch < 0 || ch > 7 {
		return 0, fmt.Errorf("ads7828: %w: channel %d", ErrInvalidChannel, ch)
	}
	return d.read(SingleEndedCommand(ch))
}

// SetRunning powers the converter and reference up or down between
// conversions. The channel selection of the last command is kept.
func (d *Dev) SetRunning(running bool) error {
	cmd := d.lastCmd &^ powerMask
	if running {
		cmd |= powerOn
	}
	if err := d.c.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("ads7828: write command 0x%02X: %w", cmd, err)
	}
	d.lastCmd = cmd
	return nil
}

func (d *Dev) convert(cmd byte) (physic.ElectricPotential, error) {
	raw, err := d.read(cmd)
	if err != nil {
		return 0, err
	}
	return physic.ElectricPotential(int64(raw) * int64(d.vref) / (maxReading + 1)), nil
}

func (d *Dev) read(cmd byte) (uint16, error) {
	var buf [2]byte
	if err := d.c.Tx([]byte{cmd}, buf[:]); err != nil {
		return 0, fmt.Errorf("ads7828: convert 0x%02X: %w", cmd, err)
	}
	d.lastCmd = cmd
	raw := uint16(buf[0])<<8 | uint16(buf[1])
	if raw > maxReading {
		return 0, fmt.Errorf("ads7828: reading 0x%04X exceeds 12 bits", raw)
	}
	return raw, nil
}
