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

package ucam

import (
	"io"
	"time"

	"github.com/jonboulle/clockwork"
)

// Transport is the byte-level serial link to the camera. Implementations
// live in the transport subpackages; tests use the wire simulator.
type Transport interface {
	io.Writer
	io.ByteReader
	io.Closer

	// Available returns the number of bytes that can be read without
	// blocking.
	Available() (int, error)
}

// BaudRateSetter is implemented by transports that can switch the host side
// of the link to a new rate after the camera has been told to change.
type BaudRateSetter interface {
	SetBaudRate(rate int) error
}

// PortNamer is implemented by transports that know their device path.
type PortNamer interface {
	PortName() string
}

// ResetPin drives the camera's hardware reset line.
type ResetPin interface {
	// Low asserts reset.
	Low() error
	// Release ends the reset pulse. Whether the line is driven high or left
	// floating is decided by the implementation.
	Release() error
}

// Clock is the monotonic time source and sleep primitive used by every
// timing loop in the driver. clockwork.Clock satisfies it.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// DefaultClock returns the wall clock.
func DefaultClock() Clock {
	return clockwork.NewRealClock()
}
