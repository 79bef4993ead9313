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

// Command frame layout. Every frame in either direction is exactly Length
// bytes: prefix, command id, four parameter bytes.
const (
	Prefix = 0xAA
	Length = 6
)

// Positional indexes into a response frame.
const (
	IndexPrefix = 0
	IndexType   = 1
	IndexEcho   = 2
	IndexParam2 = 3
	IndexNAK    = 4
	IndexParam4 = 5
)

// Package transfer limits.
const (
	// MaxPackageSize is the hardware cap for a JPEG data package.
	MaxPackageSize = 512
	// PackageOverhead is id(2) + data length(2) + verify code(2).
	PackageOverhead = 6
	// PackageHeaderLength is id(2) + data length(2).
	PackageHeaderLength = 4
)

// Terminal marker carried in the final package ACK.
const (
	EndOfTransferLow  = 0xF0
	EndOfTransferHigh = 0xF0
)
