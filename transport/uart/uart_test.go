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

package uart

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	ucam "github.com/rapidcdh/go-ucam"
	virt "github.com/rapidcdh/go-ucam/internal/testing"
)

// errPortClosed is returned when operations are attempted on a closed port
var errPortClosed = errors.New("port is closed")

// MockSerialPort wraps VirtualUCam to implement serial.Port. A read returns
// whatever the simulator has queued, or nothing, as a timed-out read would.
type MockSerialPort struct {
	sim         *virt.VirtualUCam
	mode        *serial.Mode
	drainErrs   []error
	readTimeout time.Duration
	drains      int
	closed      bool
}

// NewMockSerialPort creates a mock serial port backed by the wire simulator
func NewMockSerialPort(sim *virt.VirtualUCam) *MockSerialPort {
	return &MockSerialPort{sim: sim}
}

func (m *MockSerialPort) SetMode(mode *serial.Mode) error {
	m.mode = mode
	return nil
}

func (m *MockSerialPort) Read(p []byte) (int, error) {
	if m.closed {
		return 0, errPortClosed
	}
	n, err := m.sim.Available()
	if err != nil {
		return 0, fmt.Errorf("mock read: %w", err)
	}
	n = min(n, len(p))
	for i := range n {
		b, err := m.sim.ReadByte()
		if err != nil {
			return i, fmt.Errorf("mock read: %w", err)
		}
		p[i] = b
	}
	return n, nil
}

func (m *MockSerialPort) Write(p []byte) (int, error) {
	if m.closed {
		return 0, errPortClosed
	}
	n, err := m.sim.Write(p)
	if err != nil {
		return n, fmt.Errorf("mock write: %w", err)
	}
	return n, nil
}

func (m *MockSerialPort) Drain() error {
	m.drains++
	if len(m.drainErrs) > 0 {
		err := m.drainErrs[0]
		m.drainErrs = m.drainErrs[1:]
		return err
	}
	return nil
}

func (*MockSerialPort) ResetInputBuffer() error {
	return nil
}

func (*MockSerialPort) ResetOutputBuffer() error {
	return nil
}

func (*MockSerialPort) SetDTR(_ bool) error {
	return nil
}

func (*MockSerialPort) SetRTS(_ bool) error {
	return nil
}

func (*MockSerialPort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}

func (m *MockSerialPort) SetReadTimeout(t time.Duration) error {
	m.readTimeout = t
	return nil
}

func (m *MockSerialPort) Close() error {
	m.closed = true
	return nil
}

func (*MockSerialPort) Break(_ time.Duration) error {
	return nil
}

// Verify interface implementation
var (
	_ serial.Port         = (*MockSerialPort)(nil)
	_ ucam.Transport      = (*Transport)(nil)
	_ ucam.BaudRateSetter = (*Transport)(nil)
	_ ucam.PortNamer      = (*Transport)(nil)
)

func newTestTransport(sim *virt.VirtualUCam) (*Transport, *MockSerialPort) {
	port := NewMockSerialPort(sim)
	return newWithPort(port, "mock://test", 115200), port
}

func TestUART_WriteReachesCamera(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualUCam()
	transport, port := newTestTransport(sim)

	n, err := transport.Write([]byte{0xAA, 0x05, 0x00, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, 1, port.drains)
	require.Len(t, sim.Frames(), 1)
}

func TestUART_AvailableDoesNotConsume(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualUCam()
	sim.PushRX(0xAA, 0x0E, 0x05, 0x00, 0x00, 0x00)
	transport, _ := newTestTransport(sim)

	n, err := transport.Available()
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = transport.Available()
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	got := make([]byte, 6)
	for i := range got {
		got[i], err = transport.ReadByte()
		require.NoError(t, err)
	}
	assert.Equal(t, []byte{0xAA, 0x0E, 0x05, 0x00, 0x00, 0x00}, got)

	n, err = transport.Available()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUART_SetBaudRate(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualUCam()
	sim.PushRX(0x01, 0x02)
	transport, port := newTestTransport(sim)
	_, err := transport.Available()
	require.NoError(t, err)

	require.NoError(t, transport.SetBaudRate(921600))
	require.NotNil(t, port.mode)
	assert.Equal(t, 921600, port.mode.BaudRate)
	assert.Equal(t, 8, port.mode.DataBits)
	assert.Equal(t, serial.NoParity, port.mode.Parity)
	assert.Equal(t, serial.OneStopBit, port.mode.StopBits)
	assert.Equal(t, 921600, transport.BaudRate())

	n, err := transport.Available()
	require.NoError(t, err)
	assert.Zero(t, n, "bytes buffered at the old rate are discarded")
}

func TestUART_CloseIdempotent(t *testing.T) {
	t.Parallel()

	transport, port := newTestTransport(virt.NewVirtualUCam())
	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())
	assert.True(t, port.closed)

	_, err := transport.Write([]byte{0xAA})
	require.ErrorIs(t, err, ucam.ErrTransportClosed)
	_, err = transport.Available()
	require.ErrorIs(t, err, ucam.ErrTransportClosed)
	_, err = transport.ReadByte()
	require.ErrorIs(t, err, ucam.ErrTransportClosed)
	require.ErrorIs(t, transport.SetBaudRate(9600), ucam.ErrTransportClosed)
}

func TestUART_ReadErrorPropagates(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualUCam()
	transport, _ := newTestTransport(sim)
	require.NoError(t, sim.Close())

	_, err := transport.ReadByte()
	require.Error(t, err)
	assert.ErrorIs(t, err, virt.ErrSimulatorClosed)
}

func TestUART_DrainRetriesInterruptedCall(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualUCam()
	transport, port := newTestTransport(sim)
	port.drainErrs = []error{errors.New("interrupted system call"), nil}

	_, err := transport.Write([]byte{0xAA, 0x0D, 0x00, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 2, port.drains)
}

func TestUART_DrainFailure(t *testing.T) {
	t.Parallel()

	transport, port := newTestTransport(virt.NewVirtualUCam())
	port.drainErrs = []error{errors.New("device lost")}

	_, err := transport.Write([]byte{0xAA, 0x0D, 0x00, 0x00, 0x00, 0x00})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drain failed")
}

func TestIsInterruptedSystemCall(t *testing.T) {
	t.Parallel()

	assert.False(t, isInterruptedSystemCall(nil))
	assert.True(t, isInterruptedSystemCall(errors.New("read: EINTR")))
	assert.True(t, isInterruptedSystemCall(errors.New("Interrupted System Call")))
	assert.False(t, isInterruptedSystemCall(errors.New("no such device")))
}

func TestUART_SessionOverSimulator(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualUCam()
	sim.SetJPEG(virt.TestImage(1200))
	transport, _ := newTestTransport(sim)

	clock := virt.NewVirtualClock()
	device, err := ucam.New(transport,
		ucam.WithClock(clock),
		ucam.WithImageFormat(ucam.FormatJPEG, ucam.JPEGRes160x128))
	require.NoError(t, err)
	assert.Equal(t, "mock://test", device.State().Port)

	ctx := context.Background()
	require.NoError(t, device.Init(ctx))
	require.NoError(t, device.SetPackageSize(ctx, 256))

	var out bytesSink
	n, err := device.Capture(ctx, &out)
	require.NoError(t, err)
	assert.Equal(t, uint32(1200), n)
	assert.Equal(t, virt.TestImage(1200), out.data)

	require.NoError(t, device.SetBaudRate(ctx, 921600))
	assert.Equal(t, 921600, transport.BaudRate())
	require.NoError(t, device.Close())
}

type bytesSink struct {
	data []byte
}

func (s *bytesSink) Write(p []byte) (int, error) {
	s.data = append(s.data, p...)
	return len(p), nil
}
