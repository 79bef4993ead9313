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

package testing

import "github.com/rapidcdh/go-ucam/internal/frame"

// BuildACK creates the camera's acknowledgement of cmd.
func BuildACK(cmd byte) []byte {
	return frame.New(CmdACK, cmd).Bytes()
}

// BuildNAK creates a NAK carrying code in byte 4.
func BuildNAK(code byte) []byte {
	return frame.New(CmdNAK, 0x00, 0x00, code).Bytes()
}

// BuildData creates the DATA frame announcing an image length.
func BuildData(pictureType byte, length uint32) []byte {
	return frame.New(CmdData, pictureType, byte(length), byte(length>>8), byte(length>>16)).Bytes()
}

// BuildSync creates the camera's own SYNC frame.
func BuildSync() []byte {
	return frame.New(CmdSync).Bytes()
}

// BuildJPEGStream splits data into packages of packageSize bytes, ids
// starting at 1.
func BuildJPEGStream(data []byte, packageSize uint16) [][]byte {
	payload := int(packageSize) - frame.PackageOverhead
	if payload <= 0 {
		return nil
	}
	var out [][]byte
	for id, start := uint16(1), 0; start < len(data); id, start = id+1, start+payload {
		end := min(start+payload, len(data))
		out = append(out, frame.BuildPackage(id, data[start:end]))
	}
	return out
}

// TestImage returns n bytes of deterministic, non-repeating-per-package
// content.
func TestImage(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i*7 + i/251)
	}
	return out
}
