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

package frame

import (
	"fmt"
	"strings"
)

// Frame is a fixed 6-byte command or response frame.
type Frame [Length]byte

// New builds a host command frame. Unused parameters stay 0x00.
func New(cmd byte, params ...byte) Frame {
	f := Frame{Prefix, cmd}
	copy(f[2:], params)
	return f
}

// FromBytes copies a received buffer into a Frame. It returns false when the
// buffer is not exactly Length bytes.
func FromBytes(b []byte) (Frame, bool) {
	var f Frame
	if len(b) != Length {
		return f, false
	}
	copy(f[:], b)
	return f, true
}

// Bytes returns the frame as a slice suitable for writing.
func (f Frame) Bytes() []byte {
	return f[:]
}

// Type returns the response type byte (ACK, NAK, DATA, SYNC).
func (f Frame) Type() byte {
	return f[IndexType]
}

// HasPrefix reports whether byte 0 is the protocol prefix.
func (f Frame) HasPrefix() bool {
	return f[IndexPrefix] == Prefix
}

// Matches reports whether the frame starts with the prefix followed by the
// given type and echo bytes. A negative echo matches anything.
func (f Frame) Matches(typ byte, echo int) bool {
	if !f.HasPrefix() || f[IndexType] != typ {
		return false
	}
	return echo < 0 || f[IndexEcho] == byte(echo)
}

// NAKCode returns the device error code carried by a NAK frame.
func (f Frame) NAKCode() byte {
	return f[IndexNAK]
}

// DataLength decodes bytes 3..5 of a DATA frame as a little-endian 24-bit
// image length.
func (f Frame) DataLength() uint32 {
	return uint32(f[3]) | uint32(f[4])<<8 | uint32(f[5])<<16
}

// String formats the frame as space-separated hex.
func (f Frame) String() string {
	parts := make([]string, Length)
	for i, b := range f {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// Low and High split a 16-bit value into its little-endian bytes.
func Low(v uint16) byte { return byte(v) }
func High(v uint16) byte { return byte(v >> 8) }

// Uint16 joins little-endian bytes.
func Uint16(lo, hi byte) uint16 {
	return uint16(lo) | uint16(hi)<<8
}
