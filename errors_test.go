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
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "timeout", err: ErrTimeout, want: true},
		{name: "sync failed", err: ErrSynchronizationFailed, want: true},
		{name: "unexpected response", err: ErrUnexpectedResponse, want: true},
		{name: "sequence", err: &PacketError{Err: ErrPacketSequence, Package: 2, Expected: 2, Got: 3}, want: true},
		{name: "checksum", err: &PacketError{Err: ErrPacketChecksum}, want: true},
		{name: "picture not ready", err: &NAKError{Command: CmdSnapshot, Code: NAKPictureNotReady}, want: true},
		{name: "send picture timeout", err: &NAKError{Command: CmdGetPicture, Code: NAKSendPictureTimeout}, want: true},
		{name: "parameter NAK", err: &NAKError{Command: CmdInitial, Code: NAKParameter}, want: false},
		{name: "invalid parameter", err: ErrInvalidParameter, want: false},
		{name: "unsupported baud", err: ErrUnsupportedBaudRate, want: false},
		{name: "package size unset", err: ErrPackageSizeUnset, want: false},
		{name: "closed transport", err: ErrTransportClosed, want: false},
		{name: "wrapped timeout", err: fmt.Errorf("get picture: %w", ErrTimeout), want: true},
		{
			name: "traced command timeout",
			err: NewTraceBuffer("p", 4).WrapError(
				newCommandError("send", CmdSnapshot, ErrTimeout, nil)),
			want: true,
		},
		{name: "EOF is fatal", err: fmt.Errorf("read: %w", io.EOF), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "closed", err: ErrTransportClosed, want: true},
		{name: "open failed", err: NewOpenError("/dev/ttyUSB0", errors.New("busy")), want: true},
		{name: "EOF", err: io.EOF, want: true},
		{name: "closed pipe", err: NewTransportError("write", "x", io.ErrClosedPipe), want: true},
		{name: "timeout", err: ErrTimeout, want: false},
		{name: "NAK", err: &NAKError{Code: NAKCommandID}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestNAKError(t *testing.T) {
	t.Parallel()

	known := &NAKError{Command: CmdSetPackageSize, Code: NAKSetTransferPackageSizeWrong}
	assert.Equal(t, "SET_PACKAGE_SIZE NAK 0x10 (set transfer package size wrong)", known.Error())
	require.ErrorIs(t, known, ErrDeviceRejected)

	unknown := &NAKError{Command: CmdSnapshot, Code: 0x42}
	assert.False(t, unknown.Code.Known())
	assert.Equal(t, "SNAPSHOT NAK 0x42 (unknown error)", unknown.Error())

	wrapped := newCommandError("send", CmdSnapshot, unknown, []byte{0xAA, 0x0F, 0x00, 0x00, 0x42, 0x00})
	nak, ok := IsDeviceRejected(wrapped)
	require.True(t, ok)
	assert.Equal(t, NAKCode(0x42), nak.Code)
	assert.Contains(t, wrapped.Error(), "AA 0F 00 00 42 00")
}

func TestNAKCode_AllDocumented(t *testing.T) {
	t.Parallel()

	for code := NAKPictureType; code <= NAKSendCommand; code++ {
		assert.True(t, code.Known(), "code 0x%02X", byte(code))
		assert.NotEqual(t, "unknown error", code.String())
	}
	assert.False(t, NAKCode(0x00).Known())
	assert.False(t, NAKCode(0x15).Known())
}

func TestCommandError_CopiesResponse(t *testing.T) {
	t.Parallel()

	resp := []byte{0xAA, 0x0E, 0x01}
	err := newCommandError("send", CmdInitial, ErrUnexpectedResponse, resp)
	resp[1] = 0xFF
	assert.Equal(t, byte(0x0E), err.Response[1])
	assert.Equal(t, "send INITIAL: unexpected response [got AA 0E 01]", err.Error())

	bare := newCommandError("send", CmdInitial, ErrTimeout, nil)
	assert.Nil(t, bare.Response)
	assert.Equal(t, "send INITIAL: receive timeout", bare.Error())
}

func TestPacketError(t *testing.T) {
	t.Parallel()

	err := &PacketError{Err: ErrPacketSequence, Package: 2, Expected: 2, Got: 3}
	assert.Equal(t, "package 2: package sequence error (expected 0x0002, got 0x0003)", err.Error())
	require.ErrorIs(t, err, ErrPacketSequence)
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	err := NewTransportError("write", "/dev/ttyS0", io.ErrShortWrite)
	assert.Equal(t, "write /dev/ttyS0: short write", err.Error())
	assert.Equal(t, "read: EOF", NewTransportError("read", "", io.EOF).Error())

	open := NewOpenError("/dev/ttyS0", errors.New("permission denied"))
	require.ErrorIs(t, open, ErrTransportOpenFailed)
	assert.Contains(t, open.Error(), "permission denied")
}

func TestTraceBuffer_Ring(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("/dev/ttyUSB0", 3)
	for i := range 5 {
		tb.RecordTX([]byte{byte(i)}, "")
	}
	entries := tb.Entries()
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, []byte{byte(i + 2)}, e.Data)
		assert.Equal(t, TraceTX, e.Direction)
	}

	tb.Clear()
	assert.Empty(t, tb.Entries())
}

func TestTraceBuffer_DefaultSize(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("x", 0)
	for range 20 {
		tb.RecordRX([]byte{0x01}, "")
	}
	assert.Len(t, tb.Entries(), 16)
}

func TestTraceBuffer_RecordCopiesData(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("x", 4)
	data := []byte{0xAA, 0x0D}
	tb.RecordTX(data, "SYNC")
	data[1] = 0x00
	assert.Equal(t, []byte{0xAA, 0x0D}, tb.Entries()[0].Data)
}

func TestTraceBuffer_WrapError(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("/dev/ttyS1", 8)
	assert.NoError(t, tb.WrapError(nil))

	tb.RecordTX([]byte{0xAA, 0x05, 0x00, 0x00, 0x00, 0x00}, "SNAPSHOT")
	tb.RecordTimeout([]byte{0xAA, 0x0E}, "2 of 6 bytes")

	err := tb.WrapError(ErrTimeout)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, ErrTimeout.Error(), err.Error())

	te := GetTrace(err)
	require.NotNil(t, te)
	assert.Equal(t, "/dev/ttyS1", te.Port)
	require.Len(t, te.Trace, 2)

	formatted := te.FormatTrace()
	assert.Contains(t, formatted, "[/dev/ttyS1] Wire trace (2 entries)")
	assert.Contains(t, formatted, "> AA 05 00 00 00 00 (SNAPSHOT)")
	assert.Contains(t, formatted, "< AA 0E (TIMEOUT: 2 of 6 bytes)")

	// rewrapping keeps the original trace
	tb.RecordTX([]byte{0x01}, "")
	again := tb.WrapError(fmt.Errorf("outer: %w", err))
	assert.Len(t, GetTrace(again).Trace, 2)
}

func TestGetTrace_None(t *testing.T) {
	t.Parallel()

	assert.Nil(t, GetTrace(nil))
	assert.Nil(t, GetTrace(ErrTimeout))

	empty := &TraceableError{Err: ErrTimeout, Port: "p"}
	assert.Equal(t, "[p] (no trace data)", empty.FormatTrace())
}

func TestTraceEntry_String(t *testing.T) {
	t.Parallel()

	tb := NewTraceBuffer("x", 2)
	tb.RecordRX([]byte{0xAA, 0x0E, 0x0D, 0x00, 0x00, 0x00}, "ACK")
	s := tb.Entries()[0].String()
	assert.True(t, strings.HasSuffix(s, "RX: AA 0E 0D 00 00 00 (ACK)"), s)
}

func TestFormatHexBytes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "(empty)", formatHexBytes(nil))
	assert.Equal(t, "00 FF", formatHexBytes([]byte{0x00, 0xFF}))

	long := make([]byte, 40)
	assert.True(t, strings.HasSuffix(formatHexBytes(long), "... (40 bytes total)"))
}
