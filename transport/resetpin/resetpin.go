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

// Package resetpin drives the camera's active-low reset line through a
// periph.io GPIO pin.
package resetpin

import (
	"errors"
	"fmt"
	"strings"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Mode selects what happens to the line when reset is released.
type Mode int

const (
	// ModeDriveHigh actively drives the line high.
	ModeDriveHigh Mode = iota
	// ModeHiZ switches the pin to a floating input and lets the board's
	// pull-up release reset.
	ModeHiZ
)

func (m Mode) String() string {
	switch m {
	case ModeDriveHigh:
		return "drive-high"
	case ModeHiZ:
		return "hi-z"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "drive-high"/"high" and "hi-z"/"hiz"/"input".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "drive-high", "high", "":
		return ModeDriveHigh, nil
	case "hi-z", "hiz", "input":
		return ModeHiZ, nil
	default:
		return 0, fmt.Errorf("unknown reset mode %q", s)
	}
}

// ErrPinNotFound is returned when no GPIO with the requested name exists.
var ErrPinNotFound = errors.New("reset pin not found")

// Pin implements ucam.ResetPin.
type Pin struct {
	pin  gpio.PinIO
	mode Mode
}

// New wraps an already resolved GPIO.
func New(p gpio.PinIO, mode Mode) (*Pin, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil pin", ErrPinNotFound)
	}
	if mode != ModeDriveHigh && mode != ModeHiZ {
		return nil, fmt.Errorf("invalid reset mode %d", int(mode))
	}
	return &Pin{pin: p, mode: mode}, nil
}

// Open initializes the host drivers and resolves name, e.g. "GPIO17".
func Open(name string, mode Mode) (*Pin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, name)
	}
	return New(p, mode)
}

// Low asserts reset.
func (p *Pin) Low() error {
	if err := p.pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("%s: drive low: %w", p.pin, err)
	}
	return nil
}

// Release ends the reset pulse according to the configured mode.
func (p *Pin) Release() error {
	var err error
	switch p.mode {
	case ModeHiZ:
		err = p.pin.In(gpio.Float, gpio.NoEdge)
	default:
		err = p.pin.Out(gpio.High)
	}
	if err != nil {
		return fmt.Errorf("%s: release (%s): %w", p.pin, p.mode, err)
	}
	return nil
}

// Mode returns the release behavior.
func (p *Pin) Mode() Mode {
	return p.mode
}

func (p *Pin) String() string {
	return fmt.Sprintf("%s/%s", p.pin, p.mode)
}

// Halt stops any pin activity.
func (p *Pin) Halt() error {
	return p.pin.Halt() //nolint:wrapcheck // pass-through
}
