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

// Package testing provides test utilities including a wire-level uCAM-III
// simulator.
//
// VirtualUCam implements the byte transport consumed by the driver and
// answers command frames the way the camera firmware does: ACK or NAK for
// checked commands, the SYNC echo during the handshake, a DATA frame after
// GET_PICTURE, and flow-controlled JPEG packages or an unframed raw stream
// during transfer.
package testing

import (
	"bytes"
	"errors"
	"io"
	"time"

	"github.com/rapidcdh/go-ucam/internal/frame"
	"github.com/rapidcdh/go-ucam/internal/syncutil"
)

// Command and response ids, mirrored to avoid an import cycle with the
// driver package.
const (
	CmdInitial        = 0x01
	CmdGetPicture     = 0x04
	CmdSnapshot       = 0x05
	CmdSetPackageSize = 0x06
	CmdSetBaudRate    = 0x07
	CmdReset          = 0x08
	CmdData           = 0x0A
	CmdSync           = 0x0D
	CmdACK            = 0x0E
	CmdNAK            = 0x0F
	CmdLight          = 0x13
	CmdSetTone        = 0x14
	CmdSleep          = 0x15

	formatJPEG = 0x07

	nakCommandID = 0x0D
)

// ErrSimulatorClosed is returned by every operation after Close.
var ErrSimulatorClosed = errors.New("simulator closed")

type transferMode int

const (
	transferIdle transferMode = iota
	transferJPEG
	transferRaw
)

// FrameLogEntry records one frame written by the host.
type FrameLogEntry struct {
	At    time.Time
	Frame frame.Frame
}

// VirtualUCam simulates a uCAM-III at the wire protocol level.
type VirtualUCam struct {
	now         func() time.Time
	replies     map[byte][][]byte
	jpeg        []byte
	raw         []byte
	pending     []byte
	frames      []FrameLogEntry
	rx          bytes.Buffer
	mu          syncutil.Mutex
	syncOn      int
	syncCount   int
	badIDAt     uint32
	badSumAt    uint32
	baudRate    int
	transfer    transferMode
	packageSize uint16
	format      byte
	synced      bool
	completed   bool
	closed      bool
}

// NewVirtualUCam creates a simulator that synchronizes on the first SYNC
// and holds no image.
func NewVirtualUCam() *VirtualUCam {
	return &VirtualUCam{
		now:      time.Now,
		replies:  make(map[byte][][]byte),
		syncOn:   1,
		format:   formatJPEG,
		baudRate: 115200,
	}
}

// SetClock timestamps logged frames from now instead of the wall clock.
func (v *VirtualUCam) SetClock(now func() time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.now = now
}

// SyncOnAttempt makes the camera answer SYNC from the k-th attempt on.
// Zero keeps it silent forever.
func (v *VirtualUCam) SyncOnAttempt(k int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.syncOn = k
}

// SetReply replaces the automatic answer to cmd with the given frames.
func (v *VirtualUCam) SetReply(cmd byte, frames ...[]byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.replies[cmd] = frames
}

// ClearReply restores the automatic answer to cmd.
func (v *VirtualUCam) ClearReply(cmd byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.replies, cmd)
}

// SetJPEG sets the image served when the camera is in JPEG format.
func (v *VirtualUCam) SetJPEG(data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.jpeg = append([]byte(nil), data...)
}

// SetRaw sets the image served for raw formats.
func (v *VirtualUCam) SetRaw(data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.raw = append([]byte(nil), data...)
}

// CorruptPackageID makes package n carry id n+1.
func (v *VirtualUCam) CorruptPackageID(n uint32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.badIDAt = n
}

// CorruptChecksum makes package n carry a wrong verify code.
func (v *VirtualUCam) CorruptChecksum(n uint32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.badSumAt = n
}

// PushRX queues bytes for the host to read, ahead of any later reply.
func (v *VirtualUCam) PushRX(data ...byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rx.Write(data)
}

// Write receives frames from the host and queues the camera's answers.
func (v *VirtualUCam) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return 0, ErrSimulatorClosed
	}

	v.pending = append(v.pending, data...)
	for len(v.pending) >= frame.Length {
		f, _ := frame.FromBytes(v.pending[:frame.Length])
		v.pending = v.pending[frame.Length:]
		v.frames = append(v.frames, FrameLogEntry{At: v.now(), Frame: f})
		v.handleFrame(f)
	}
	return len(data), nil
}

// Available implements the transport's pending-byte count.
func (v *VirtualUCam) Available() (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, ErrSimulatorClosed
	}
	return v.rx.Len(), nil
}

// ReadByte returns the next queued byte. An empty queue reads as io.EOF
// since nothing will ever arrive.
func (v *VirtualUCam) ReadByte() (byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, ErrSimulatorClosed
	}
	b, err := v.rx.ReadByte()
	if err != nil {
		return 0, io.EOF
	}
	return b, nil
}

// Close marks the link closed. Repeated calls are harmless.
func (v *VirtualUCam) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}

// SetBaudRate records the host-side rate change.
func (v *VirtualUCam) SetBaudRate(rate int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrSimulatorClosed
	}
	v.baudRate = rate
	return nil
}

// PortName identifies the simulator in traces.
func (*VirtualUCam) PortName() string {
	return "virtual"
}

func (v *VirtualUCam) handleFrame(f frame.Frame) {
	if !f.HasPrefix() {
		return
	}
	cmd := f.Type()
	if override, ok := v.replies[cmd]; ok {
		for _, r := range override {
			v.rx.Write(r)
		}
		return
	}

	switch cmd {
	case CmdSync:
		v.syncCount++
		if v.syncOn > 0 && v.syncCount >= v.syncOn {
			v.rx.Write(BuildACK(CmdSync))
			v.rx.Write(BuildSync())
		}
	case CmdACK:
		v.handleACK(f)
	case CmdInitial:
		v.format = f[3]
		v.rx.Write(BuildACK(cmd))
	case CmdSetPackageSize:
		v.packageSize = frame.Uint16(f[3], f[4])
		v.rx.Write(BuildACK(cmd))
	case CmdSnapshot:
		v.rx.Write(BuildACK(cmd))
	case CmdGetPicture:
		v.rx.Write(BuildACK(cmd))
		image, mode := v.raw, transferRaw
		if v.format == formatJPEG {
			image, mode = v.jpeg, transferJPEG
		}
		v.rx.Write(BuildData(f[2], uint32(len(image)))) //nolint:gosec // test images are small
		v.transfer = mode
		v.completed = false
	case CmdReset:
		v.rx.Write(BuildACK(cmd))
		v.synced = false
		v.syncCount = 0
	case CmdSetBaudRate:
		// answered at the new rate
		v.rx.Write(BuildACK(cmd))
	case CmdSetTone, CmdLight, CmdSleep:
		// not acknowledged
	default:
		v.rx.Write(BuildNAK(nakCommandID))
	}
}

func (v *VirtualUCam) handleACK(f frame.Frame) {
	switch f[2] {
	case CmdSync:
		v.synced = true
		return
	case CmdData:
		if v.transfer == transferRaw {
			v.transfer = transferIdle
			v.completed = true
		}
		return
	}

	id := frame.Uint16(f[4], f[5])
	switch v.transfer {
	case transferJPEG:
		if f[4] == frame.EndOfTransferLow && f[5] == frame.EndOfTransferHigh {
			v.transfer = transferIdle
			v.completed = true
			return
		}
		if id == 0 {
			id = 1
		}
		v.rx.Write(v.buildPackage(uint32(id)))
	case transferRaw:
		if id == 0 {
			v.rx.Write(v.raw)
		}
	case transferIdle:
	}
}

func (v *VirtualUCam) buildPackage(n uint32) []byte {
	if v.packageSize <= frame.PackageOverhead {
		return nil
	}
	payload := uint32(v.packageSize) - frame.PackageOverhead
	start := (n - 1) * payload
	if start >= uint32(len(v.jpeg)) { //nolint:gosec // test images are small
		return nil
	}
	end := min(start+payload, uint32(len(v.jpeg))) //nolint:gosec // test images are small

	pkt := frame.BuildPackage(uint16(n), v.jpeg[start:end]) //nolint:gosec // package ids fit 16 bits
	if n == v.badIDAt {
		pkt[0], pkt[1] = frame.Low(uint16(n+1)), frame.High(uint16(n+1)) //nolint:gosec // as above
	}
	if n == v.badSumAt {
		pkt[len(pkt)-2]++
	}
	return pkt
}

// Frames returns a copy of every frame the host wrote.
func (v *VirtualUCam) Frames() []FrameLogEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]FrameLogEntry, len(v.frames))
	copy(out, v.frames)
	return out
}

// FramesOf returns the host frames with the given command id.
func (v *VirtualUCam) FramesOf(cmd byte) []FrameLogEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []FrameLogEntry
	for _, e := range v.frames {
		if e.Frame.Type() == cmd {
			out = append(out, e)
		}
	}
	return out
}

// LastFrame returns the most recent host frame.
func (v *VirtualUCam) LastFrame() (frame.Frame, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.frames) == 0 {
		return frame.Frame{}, false
	}
	return v.frames[len(v.frames)-1].Frame, true
}

// ClearFrames drops the host frame log.
func (v *VirtualUCam) ClearFrames() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.frames = nil
}

// SyncCount returns the number of SYNC frames seen since the last reset.
func (v *VirtualUCam) SyncCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.syncCount
}

// Synced reports whether the host acknowledged the SYNC echo.
func (v *VirtualUCam) Synced() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.synced
}

// PackageSize returns the size last requested with SET_PACKAGE_SIZE.
func (v *VirtualUCam) PackageSize() uint16 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.packageSize
}

// TransferComplete reports whether the host sent the closing ACK.
func (v *VirtualUCam) TransferComplete() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.completed
}

// BaudRate returns the host-side rate last set.
func (v *VirtualUCam) BaudRate() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.baudRate
}

// Closed reports whether Close was called.
func (v *VirtualUCam) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}
