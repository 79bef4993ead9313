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
	"time"

	"github.com/rapidcdh/go-ucam/internal/frame"
)

// Error categories. Every fallible operation surfaces one of these through
// errors.Is, possibly wrapped in one of the structured types below.
var (
	// Transport errors
	ErrTransportOpenFailed = errors.New("transport open failed")
	ErrTransportClosed     = errors.New("transport is closed")
	ErrTimeout             = errors.New("receive timeout")

	// Protocol errors
	ErrSynchronizationFailed = errors.New("synchronization failed")
	ErrDeviceRejected        = errors.New("device rejected command")
	ErrUnexpectedResponse    = errors.New("unexpected response")
	ErrUnsupportedBaudRate   = errors.New("unsupported baud rate")

	// Transfer errors
	ErrPacketSequence   = errors.New("package sequence error")
	ErrPacketChecksum   = errors.New("package checksum error")
	ErrPackageSizeUnset = errors.New("package size not negotiated")

	// Caller errors
	ErrInvalidParameter = errors.New("invalid parameter")
)

// NAKCode is the device-side error code carried in byte 4 of a NAK frame.
type NAKCode byte

// Device error codes reported through NAK.
const (
	NAKPictureType                 NAKCode = 0x01
	NAKPictureUpScale              NAKCode = 0x02
	NAKPictureScale                NAKCode = 0x03
	NAKUnexpectedReply             NAKCode = 0x04
	NAKSendPictureTimeout          NAKCode = 0x05
	NAKUnexpectedCommand           NAKCode = 0x06
	NAKSRAMJPEGType                NAKCode = 0x07
	NAKSRAMJPEGSize                NAKCode = 0x08
	NAKPictureFormat               NAKCode = 0x09
	NAKPictureSize                 NAKCode = 0x0A
	NAKParameter                   NAKCode = 0x0B
	NAKSendRegisterTimeout         NAKCode = 0x0C
	NAKCommandID                   NAKCode = 0x0D
	NAKPictureNotReady             NAKCode = 0x0E
	NAKTransferPackageNumber       NAKCode = 0x0F
	NAKSetTransferPackageSizeWrong NAKCode = 0x10
	NAKCommandHeader               NAKCode = 0x11
	NAKCommandLength               NAKCode = 0x12
	NAKSendPicture                 NAKCode = 0x13
	NAKSendCommand                 NAKCode = 0x14
)

var nakMeanings = map[NAKCode]string{
	NAKPictureType:                 "picture type error",
	NAKPictureUpScale:              "picture up scale",
	NAKPictureScale:                "picture scale error",
	NAKUnexpectedReply:             "unexpected reply",
	NAKSendPictureTimeout:          "send picture timeout",
	NAKUnexpectedCommand:           "unexpected command",
	NAKSRAMJPEGType:                "SRAM JPEG type error",
	NAKSRAMJPEGSize:                "SRAM JPEG size error",
	NAKPictureFormat:               "picture format error",
	NAKPictureSize:                 "picture size error",
	NAKParameter:                   "parameter error",
	NAKSendRegisterTimeout:         "send register timeout",
	NAKCommandID:                   "command ID error",
	NAKPictureNotReady:             "picture not ready",
	NAKTransferPackageNumber:       "transfer package number error",
	NAKSetTransferPackageSizeWrong: "set transfer package size wrong",
	NAKCommandHeader:               "command header error",
	NAKCommandLength:               "command length error",
	NAKSendPicture:                 "send picture error",
	NAKSendCommand:                 "send command error",
}

// Known reports whether the code is one of the documented device errors.
func (c NAKCode) Known() bool {
	_, ok := nakMeanings[c]
	return ok
}

func (c NAKCode) String() string {
	if m, ok := nakMeanings[c]; ok {
		return m
	}
	return "unknown error"
}

// NAKError reports a command the camera refused with a NAK frame.
// Unknown codes are preserved verbatim so newer firmware codes stay
// distinguishable from documented ones.
type NAKError struct {
	Command CommandID
	Code    NAKCode
}

func (e *NAKError) Error() string {
	if !e.Code.Known() {
		return fmt.Sprintf("%s NAK 0x%02X (unknown error)", e.Command, byte(e.Code))
	}
	return fmt.Sprintf("%s NAK 0x%02X (%s)", e.Command, byte(e.Code), e.Code)
}

// Is matches ErrDeviceRejected.
func (*NAKError) Is(target error) bool {
	return target == ErrDeviceRejected
}

// CommandError wraps a protocol failure for a specific command together with
// the frame that caused it, when one was received.
type CommandError struct {
	Err      error
	Op       string
	Response []byte
	Command  CommandID
}

func (e *CommandError) Error() string {
	if len(e.Response) > 0 {
		return fmt.Sprintf("%s %s: %v [got %s]", e.Op, e.Command, e.Err, formatHexBytes(e.Response))
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// PacketError reports an integrity failure in a JPEG data package.
type PacketError struct {
	Err      error
	Expected uint16
	Got      uint16
	Package  uint32
}

func (e *PacketError) Error() string {
	return fmt.Sprintf("package %d: %v (expected 0x%04X, got 0x%04X)", e.Package, e.Err, e.Expected, e.Got)
}

func (e *PacketError) Unwrap() error {
	return e.Err
}

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err  error
	Op   string
	Port string
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error with consistent formatting
func NewTransportError(op, port string, err error) *TransportError {
	return &TransportError{Op: op, Port: port, Err: err}
}

// NewOpenError wraps a failure to open the serial device.
func NewOpenError(port string, err error) *TransportError {
	return NewTransportError("open", port, fmt.Errorf("%w: %w", ErrTransportOpenFailed, err))
}

func newCommandError(op string, cmd CommandID, err error, resp []byte) *CommandError {
	var copied []byte
	if len(resp) > 0 {
		copied = append([]byte(nil), resp...)
	}
	return &CommandError{Op: op, Command: cmd, Err: err, Response: copied}
}

// IsDeviceRejected returns the NAK details when err carries one.
func IsDeviceRejected(err error) (*NAKError, bool) {
	var ne *NAKError
	if errors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}

// IsRetryable reports whether a caller may reasonably repeat the whole
// session from hardware reset. The driver itself never retries outside the
// SYNC attempt loop.
func IsRetryable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}
	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrSynchronizationFailed),
		errors.Is(err, ErrUnexpectedResponse),
		errors.Is(err, ErrPacketSequence),
		errors.Is(err, ErrPacketChecksum):
		return true
	}
	if ne, ok := IsDeviceRejected(err); ok {
		return ne.Code == NAKPictureNotReady || ne.Code == NAKSendPictureTimeout
	}
	return false
}

// IsFatal returns true if the error indicates the device or serial link is
// gone and the session must be torn down.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if isDeviceGoneError(err) {
		return true
	}
	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, ErrTransportOpenFailed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// =============================================================================
// Wire Trace Logging
// =============================================================================
// TraceableError embeds wire-level trace data in errors, so callers can see
// the frames exchanged before an operation failed.

// TraceDirection indicates the direction of wire data
type TraceDirection string

const (
	// TraceTX indicates data sent to the camera
	TraceTX TraceDirection = "TX"
	// TraceRX indicates data received from the camera
	TraceRX TraceDirection = "RX"
)

// TraceEntry represents a single wire-level operation
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
}

// String formats a trace entry for display
func (e TraceEntry) String() string {
	hexData := formatHexBytes(e.Data)
	if e.Note != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData, e.Note)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData)
}

// TraceableError wraps an error with wire-level trace data.
//
//	var te *ucam.TraceableError
//	if errors.As(err, &te) {
//	    fmt.Println(te.FormatTrace())
//	}
type TraceableError struct {
	Err   error
	Port  string
	Trace []TraceEntry
}

func (e *TraceableError) Error() string {
	return e.Err.Error()
}

func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace returns a human-readable formatted trace log
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s] (no trace data)", e.Port)
	}

	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "[%s] Wire trace (%d entries):\n", e.Port, len(e.Trace))
	for _, entry := range e.Trace {
		direction := ">"
		if entry.Direction == TraceRX {
			direction = "<"
		}
		if entry.Note != "" {
			_, _ = fmt.Fprintf(&sb, "  %s %s (%s)\n", direction, formatHexBytes(entry.Data), entry.Note)
		} else {
			_, _ = fmt.Fprintf(&sb, "  %s %s\n", direction, formatHexBytes(entry.Data))
		}
	}
	return sb.String()
}

// formatHexBytes formats a byte slice as space-separated hex values
func formatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	limit := len(data)
	if limit > 32 {
		limit = 32
	}
	parts := make([]string, limit)
	for i := range limit {
		parts[i] = fmt.Sprintf("%02X", data[i])
	}
	if len(data) > limit {
		return strings.Join(parts, " ") + fmt.Sprintf(" ... (%d bytes total)", len(data))
	}
	return strings.Join(parts, " ")
}

// TraceBuffer collects trace entries during a session. It keeps the most
// recent maxSize entries.
type TraceBuffer struct {
	port    string
	entries []TraceEntry
	maxSize int
}

// NewTraceBuffer creates a new trace buffer with the specified capacity
func NewTraceBuffer(port string, maxSize int) *TraceBuffer {
	if maxSize <= 0 {
		maxSize = 16
	}
	return &TraceBuffer{
		entries: make([]TraceEntry, 0, maxSize),
		maxSize: maxSize,
		port:    port,
	}
}

// RecordTX records a frame sent to the camera
func (tb *TraceBuffer) RecordTX(data []byte, note string) {
	tb.record(TraceTX, data, note)
}

// RecordRX records data received from the camera
func (tb *TraceBuffer) RecordRX(data []byte, note string) {
	tb.record(TraceRX, data, note)
}

// RecordTimeout records a timeout event
func (tb *TraceBuffer) RecordTimeout(partial []byte, note string) {
	tb.record(TraceRX, partial, "TIMEOUT: "+note)
}

func (tb *TraceBuffer) record(dir TraceDirection, data []byte, note string) {
	entry := TraceEntry{
		Direction: dir,
		Data:      append([]byte(nil), data...),
		Timestamp: time.Now(),
		Note:      note,
	}

	if len(tb.entries) >= tb.maxSize {
		copy(tb.entries, tb.entries[1:])
		tb.entries[len(tb.entries)-1] = entry
	} else {
		tb.entries = append(tb.entries, entry)
	}
}

// Entries returns a copy of the recorded entries, oldest first.
func (tb *TraceBuffer) Entries() []TraceEntry {
	out := make([]TraceEntry, len(tb.entries))
	copy(out, tb.entries)
	return out
}

// WrapError wraps an error with the collected trace data.
// Returns nil if err is nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}
	var existing *TraceableError
	if errors.As(err, &existing) {
		return err
	}
	return &TraceableError{
		Err:   err,
		Trace: tb.Entries(),
		Port:  tb.port,
	}
}

// Clear resets the trace buffer
func (tb *TraceBuffer) Clear() {
	tb.entries = tb.entries[:0]
}

// GetTrace extracts trace data from an error, returning nil if not present
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}

func frameNote(f frame.Frame) string {
	return CommandID(f.Type()).String()
}
