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
	"math"
)

// PackageCount returns how many JPEG data packages carry total bytes when
// each package holds packageSize-PackageOverhead payload bytes. Package ids
// are 16 bits wide, so a transfer needing more packages is rejected.
func PackageCount(total uint32, packageSize uint16) (uint16, error) {
	if packageSize <= PackageOverhead {
		return 0, fmt.Errorf("package size %d leaves no room for payload", packageSize)
	}
	payload := uint64(packageSize) - PackageOverhead
	count := (uint64(total) + payload - 1) / payload
	if count > math.MaxUint16 {
		return 0, fmt.Errorf("%d bytes need %d packages of %d, more than the 16-bit package id allows",
			total, count, packageSize)
	}
	return uint16(count), nil
}

// BuildPackage encodes one JPEG data package: id, data length, payload and
// verify code, all little-endian. Used by simulators and tests.
func BuildPackage(id uint16, payload []byte) []byte {
	out := make([]byte, 0, len(payload)+PackageOverhead)
	n := uint16(len(payload)) //nolint:gosec // payload bounded by MaxPackageSize
	out = append(out, Low(id), High(id), Low(n), High(n))
	out = append(out, payload...)
	sum := CalculateChecksum(out)
	return append(out, sum, 0x00)
}

// PackageHeader is the decoded id and data length of a JPEG data package.
type PackageHeader struct {
	ID     uint16
	Length uint16
}

// ParseHeader decodes the four header bytes of a data package.
func ParseHeader(b []byte) (PackageHeader, error) {
	if len(b) < PackageHeaderLength {
		return PackageHeader{}, fmt.Errorf("package header too short: %d bytes", len(b))
	}
	return PackageHeader{
		ID:     Uint16(b[0], b[1]),
		Length: Uint16(b[2], b[3]),
	}, nil
}

// Bytes re-encodes the header for checksum accumulation.
func (h PackageHeader) Bytes() []byte {
	return []byte{Low(h.ID), High(h.ID), Low(h.Length), High(h.Length)}
}
