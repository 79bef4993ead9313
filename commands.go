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
	"fmt"
	"sort"
	"strings"
)

// CommandID identifies a command or response frame type.
type CommandID byte

// Command identifiers from the uCAM-III command set.
const (
	CmdInitial        CommandID = 0x01
	CmdGetPicture     CommandID = 0x04
	CmdSnapshot       CommandID = 0x05
	CmdSetPackageSize CommandID = 0x06
	CmdSetBaudRate    CommandID = 0x07
	CmdReset          CommandID = 0x08
	CmdData           CommandID = 0x0A
	CmdSync           CommandID = 0x0D
	CmdACK            CommandID = 0x0E
	CmdNAK            CommandID = 0x0F
	CmdLight          CommandID = 0x13
	CmdSetTone        CommandID = 0x14
	CmdSleep          CommandID = 0x15
)

var commandNames = map[CommandID]string{
	CmdInitial:        "INITIAL",
	CmdGetPicture:     "GET_PICTURE",
	CmdSnapshot:       "SNAPSHOT",
	CmdSetPackageSize: "SET_PACKAGE_SIZE",
	CmdSetBaudRate:    "SET_BAUD_RATE",
	CmdReset:          "RESET",
	CmdData:           "DATA",
	CmdSync:           "SYNC",
	CmdACK:            "ACK",
	CmdNAK:            "NAK",
	CmdLight:          "LIGHT",
	CmdSetTone:        "SET_TONE",
	CmdSleep:          "SLEEP",
}

func (c CommandID) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CMD_0x%02X", byte(c))
}

// ImageFormat selects the colour encoding used by INITIAL.
type ImageFormat byte

const (
	FormatRawGray8    ImageFormat = 0x03 // 8-bit gray scale, Y only
	FormatRawRGB565   ImageFormat = 0x06 // 16-bit colour, 565 RGB
	FormatJPEG        ImageFormat = 0x07
	FormatRawCrYCbY16 ImageFormat = 0x08 // 16-bit colour, CrYCbY
)

// IsJPEG reports whether images in this format use the packetized transfer.
func (f ImageFormat) IsJPEG() bool {
	return f == FormatJPEG
}

func (f ImageFormat) String() string {
	for name, v := range formatNames {
		if v == f {
			return name
		}
	}
	return fmt.Sprintf("format(0x%02X)", byte(f))
}

var formatNames = map[string]ImageFormat{
	"gray8":  FormatRawGray8,
	"rgb565": FormatRawRGB565,
	"jpeg":   FormatJPEG,
	"crycby": FormatRawCrYCbY16,
}

// ParseImageFormat looks up a format by its short name.
func ParseImageFormat(name string) (ImageFormat, error) {
	f, ok := formatNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown image format %q", ErrInvalidParameter, name)
	}
	return f, nil
}

// Resolution is the INITIAL resolution code. The same code means different
// sizes for RAW and JPEG formats.
type Resolution byte

// RAW resolutions.
const (
	RawRes80x60   Resolution = 0x01
	RawRes160x120 Resolution = 0x03
	RawRes128x128 Resolution = 0x09
	RawRes128x96  Resolution = 0x0B
)

// JPEG resolutions.
const (
	JPEGRes160x128 Resolution = 0x03
	JPEGRes320x240 Resolution = 0x05
	JPEGRes640x480 Resolution = 0x07
)

type dimensions struct {
	width, height int
}

var rawResolutions = map[Resolution]dimensions{
	RawRes80x60:   {80, 60},
	RawRes160x120: {160, 120},
	RawRes128x128: {128, 128},
	RawRes128x96:  {128, 96},
}

var jpegResolutions = map[Resolution]dimensions{
	JPEGRes160x128: {160, 128},
	JPEGRes320x240: {320, 240},
	JPEGRes640x480: {640, 480},
}

func resolutionTable(format ImageFormat) map[Resolution]dimensions {
	if format.IsJPEG() {
		return jpegResolutions
	}
	return rawResolutions
}

// ParseResolution looks up a "WxH" resolution name valid for format.
func ParseResolution(format ImageFormat, name string) (Resolution, error) {
	var w, h int
	if _, err := fmt.Sscanf(strings.ToLower(strings.TrimSpace(name)), "%dx%d", &w, &h); err != nil {
		return 0, fmt.Errorf("%w: malformed resolution %q", ErrInvalidParameter, name)
	}
	for res, d := range resolutionTable(format) {
		if (d.width == w && d.height == h) || (d.width == h && d.height == w) {
			return res, nil
		}
	}
	return 0, fmt.Errorf("%w: resolution %s not supported for %s", ErrInvalidParameter, name, format)
}

// FrameSize returns the byte length of an uncompressed image in the given
// RAW format and resolution. JPEG sizes are data dependent and return false.
func FrameSize(format ImageFormat, res Resolution) (int, bool) {
	if format.IsJPEG() {
		return 0, false
	}
	d, ok := rawResolutions[res]
	if !ok {
		return 0, false
	}
	bpp := 2
	if format == FormatRawGray8 {
		bpp = 1
	}
	return d.width * d.height * bpp, true
}

// PictureType selects what GET_PICTURE returns.
type PictureType byte

const (
	PictureSnapshot PictureType = 0x01
	PictureRaw      PictureType = 0x02
	PictureJPEG     PictureType = 0x05
)

// SnapshotType selects compressed or uncompressed snapshot buffering.
type SnapshotType byte

const (
	SnapshotCompressed   SnapshotType = 0x00
	SnapshotUncompressed SnapshotType = 0x01
)

// ResetType selects the scope of a soft reset.
type ResetType byte

const (
	// ResetFull reboots the camera and resets all registers and state machines.
	ResetFull ResetType = 0x00
	// ResetStateMachines resets the state machines only.
	ResetStateMachines ResetType = 0x01
)

// LightFrequency is the mains flicker frequency the sensor compensates for.
type LightFrequency byte

const (
	Light50Hz LightFrequency = 0x00
	Light60Hz LightFrequency = 0x01
)

// Tone is a contrast, brightness or exposure level.
type Tone byte

const (
	ToneMin    Tone = iota // exposure -2
	ToneLow                // exposure -1
	ToneNormal             // exposure 0
	ToneHigh               // exposure +1
	ToneMax                // exposure +2
)

// Exposure returns the signed exposure offset for the tone level.
func (t Tone) Exposure() int {
	return int(t) - int(ToneNormal)
}

func (t Tone) valid() bool {
	return t <= ToneMax
}

// Baud rate divider tables. The first divider is defined for every supported
// rate; the second falls back to 0 for rates absent from its table.
var firstDivider = map[uint32]byte{
	2400:    0x1F,
	4800:    0x1F,
	9600:    0x1F,
	19200:   0x1F,
	38400:   0x1F,
	57600:   0x1F,
	115200:  0x1F,
	153600:  0x07,
	230400:  0x07,
	460800:  0x07,
	921600:  0x01,
	1228800: 0x02,
	1843200: 0x01,
	3686400: 0x00,
}

var secondDivider = map[uint32]byte{
	2400:   0x2F,
	4800:   0x17,
	9600:   0x0B,
	19200:  0x05,
	38400:  0x02,
	57600:  0x01,
	153600: 0x02,
	230400: 0x01,
	921600: 0x01,
}

// BaudDividers returns the two SET_BAUD_RATE divider bytes for rate.
func BaudDividers(rate uint32) (first, second byte, err error) {
	first, ok := firstDivider[rate]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %d", ErrUnsupportedBaudRate, rate)
	}
	return first, secondDivider[rate], nil
}

// SupportedBaudRates lists every rate accepted by SetBaudRate, ascending.
func SupportedBaudRates() []uint32 {
	rates := make([]uint32, 0, len(firstDivider))
	for r := range firstDivider {
		rates = append(rates, r)
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i] < rates[j] })
	return rates
}
