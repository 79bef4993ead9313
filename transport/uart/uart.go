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

// Package uart implements the camera's byte transport over a serial port.
package uart

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.bug.st/serial"

	ucam "github.com/rapidcdh/go-ucam"
	"github.com/rapidcdh/go-ucam/internal/syncutil"
)

// Transport implements ucam.Transport over a serial port. Reads go through
// an internal buffer so Available can report pending bytes without
// consuming them.
type Transport struct {
	port     serial.Port
	portName string
	buf      []byte
	baud     int
	mu       syncutil.Mutex
	closed   bool
}

// isWindows returns true if running on Windows
func isWindows() bool {
	return runtime.GOOS == "windows"
}

// pollTimeout is the read timeout used to sample pending bytes. Windows
// drivers do not honour timeouts much below 10ms.
func pollTimeout() time.Duration {
	if isWindows() {
		return 10 * time.Millisecond
	}
	return 1 * time.Millisecond
}

func serialMode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// New opens portName at baud, 8N1.
func New(portName string, baud int) (*Transport, error) {
	port, err := serial.Open(portName, serialMode(baud))
	if err != nil {
		return nil, ucam.NewOpenError(portName, err)
	}

	if err := port.SetReadTimeout(pollTimeout()); err != nil {
		_ = port.Close()
		return nil, ucam.NewOpenError(portName, fmt.Errorf("set read timeout: %w", err))
	}
	if err := port.ResetInputBuffer(); err != nil {
		Debugf(portName, "reset input buffer: %v", err)
	}

	return newWithPort(port, portName, baud), nil
}

// Factory opens a transport for ucam.ConnectDevice.
func Factory(path string, baud uint32) (ucam.Transport, error) {
	return New(path, int(baud))
}

func newWithPort(port serial.Port, portName string, baud int) *Transport {
	return &Transport{
		port:     port,
		portName: portName,
		baud:     baud,
		buf:      make([]byte, 0, 1024),
	}
}

// Write sends data and waits for it to leave the host buffer.
func (t *Transport) Write(data []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, ucam.ErrTransportClosed
	}
	n, err := t.port.Write(data)
	if err != nil {
		return n, fmt.Errorf("UART write failed: %w", err)
	}
	if err := t.drainWithRetry("write"); err != nil {
		return n, err
	}
	return n, nil
}

// Available returns the number of bytes readable without blocking. It
// samples the port for at most one poll timeout when the buffer is empty.
func (t *Transport) Available() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, ucam.ErrTransportClosed
	}
	if len(t.buf) == 0 {
		if err := t.fill(); err != nil {
			return 0, err
		}
	}
	return len(t.buf), nil
}

// ReadByte blocks until one byte arrives. Closing the transport from
// another goroutine unblocks it with ucam.ErrTransportClosed.
func (t *Transport) ReadByte() (byte, error) {
	for {
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return 0, ucam.ErrTransportClosed
		}
		if len(t.buf) > 0 {
			b := t.buf[0]
			t.buf = t.buf[1:]
			t.mu.Unlock()
			return b, nil
		}
		err := t.fill()
		t.mu.Unlock()
		if err != nil {
			return 0, err
		}
	}
}

// fill performs one timed read into the buffer. Caller holds t.mu.
func (t *Transport) fill() error {
	if cap(t.buf)-len(t.buf) < 256 {
		t.buf = append(make([]byte, 0, max(1024, 2*len(t.buf))), t.buf...)
	}
	chunk := t.buf[len(t.buf):cap(t.buf)]
	n, err := t.port.Read(chunk)
	if err != nil {
		if isInterruptedSystemCall(err) {
			return nil
		}
		return fmt.Errorf("UART read failed: %w", err)
	}
	t.buf = t.buf[:len(t.buf)+n]
	return nil
}

// SetBaudRate reconfigures the host side of the link and discards any
// bytes received at the old rate.
func (t *Transport) SetBaudRate(rate int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ucam.ErrTransportClosed
	}
	if err := t.port.SetMode(serialMode(rate)); err != nil {
		return fmt.Errorf("UART set baud %d failed: %w", rate, err)
	}
	t.baud = rate
	t.buf = t.buf[:0]
	return nil
}

// BaudRate returns the current host-side rate.
func (t *Transport) BaudRate() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.baud
}

// PortName returns the device path.
func (t *Transport) PortName() string {
	return t.portName
}

// Close closes the port. Calling it again is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.port == nil {
		return nil
	}
	t.closed = true
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// drainWithRetry performs port drain with retry logic for interrupted system calls
func (t *Transport) drainWithRetry(operation string) error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	for attempt := range maxRetries {
		err := t.port.Drain()
		if err == nil {
			return nil
		}

		if isInterruptedSystemCall(err) && attempt < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<attempt))
			continue
		}

		return fmt.Errorf("UART %s drain failed: %w", operation, err)
	}

	return fmt.Errorf("UART %s drain failed after %d retries", operation, maxRetries)
}

// Debugf logs through the driver logger with the port name attached.
func Debugf(port, format string, args ...any) {
	ucam.Debugf("[%s] "+format, append([]any{port}, args...)...)
}
