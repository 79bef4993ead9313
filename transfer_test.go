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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidcdh/go-ucam/internal/frame"
	virt "github.com/rapidcdh/go-ucam/internal/testing"
)

// packageACKs returns the p3/p4 pairs of every transfer ACK sent.
func packageACKs(sim *virt.VirtualUCam) [][2]byte {
	var out [][2]byte
	for _, e := range sim.FramesOf(virt.CmdACK) {
		if e.Frame[2] == 0x00 {
			out = append(out, [2]byte{e.Frame[4], e.Frame[5]})
		}
	}
	return out
}

func startJPEG(t *testing.T, device *Device) uint32 {
	t.Helper()
	length, err := device.GetPicture(t.Context(), PictureJPEG)
	require.NoError(t, err)
	return length
}

func TestTransferJPEG_RoundTrip(t *testing.T) {
	t.Parallel()

	image := virt.TestImage(1000)
	device, sim, _ := newReadyDevice(t, 512)
	sim.SetJPEG(image)

	length := startJPEG(t, device)
	require.Equal(t, uint32(1000), length)

	count, err := frame.PackageCount(length, device.PackageSize())
	require.NoError(t, err)
	assert.Equal(t, uint16(2), count)

	sink := &sinkBuffer{}
	require.NoError(t, device.TransferJPEG(t.Context(), length, sink))
	assert.Equal(t, image, sink.data)
	assert.Len(t, sink.writes, 2)

	assert.Equal(t, [][2]byte{{0x00, 0x00}, {0x02, 0x00}, {0xF0, 0xF0}}, packageACKs(sim))
	last, _ := sim.LastFrame()
	assert.Equal(t, []byte{0xAA, 0x0E, 0x00, 0x00, 0xF0, 0xF0}, last.Bytes())
	assert.True(t, sim.TransferComplete())
}

func TestTransferJPEG_Lengths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		length      int
		packageSize uint16
		packages    int
	}{
		{name: "single byte", length: 1, packageSize: 512, packages: 1},
		{name: "exactly one package", length: 506, packageSize: 512, packages: 1},
		{name: "one byte over", length: 507, packageSize: 512, packages: 2},
		{name: "small packages", length: 5000, packageSize: 64, packages: 87},
		{name: "vga sized", length: 48213, packageSize: 512, packages: 96},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			image := virt.TestImage(tt.length)
			device, sim, _ := newReadyDevice(t, tt.packageSize)
			sim.SetJPEG(image)

			length := startJPEG(t, device)
			sink := &sinkBuffer{}
			require.NoError(t, device.TransferJPEG(t.Context(), length, sink))
			assert.Equal(t, image, sink.data)
			assert.Len(t, sink.writes, tt.packages)

			acks := packageACKs(sim)
			require.Len(t, acks, tt.packages+1)
			for i := 1; i < tt.packages; i++ {
				assert.Equal(t, frame.Uint16(acks[i][0], acks[i][1]), uint16(i+1))
			}
			assert.Equal(t, [2]byte{0xF0, 0xF0}, acks[len(acks)-1])
		})
	}
}

func TestTransferJPEG_SequenceError(t *testing.T) {
	t.Parallel()

	image := virt.TestImage(1000)
	device, sim, _ := newReadyDevice(t, 512)
	sim.SetJPEG(image)
	sim.CorruptPackageID(2)

	length := startJPEG(t, device)
	sink := &sinkBuffer{}
	err := device.TransferJPEG(t.Context(), length, sink)
	require.ErrorIs(t, err, ErrPacketSequence)

	var pe *PacketError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, uint32(2), pe.Package)
	assert.Equal(t, uint16(2), pe.Expected)
	assert.Equal(t, uint16(3), pe.Got)

	// only package 1 reached the sink
	assert.Equal(t, image[:506], sink.data)
	assert.Len(t, sink.writes, 1)
	assert.NotContains(t, packageACKs(sim), [2]byte{0xF0, 0xF0})
	assert.False(t, sim.TransferComplete())
	assert.True(t, IsRetryable(err))
	assert.NotNil(t, GetTrace(err))
}

func TestTransferJPEG_ChecksumError(t *testing.T) {
	t.Parallel()

	device, sim, _ := newReadyDevice(t, 512)
	sim.SetJPEG(virt.TestImage(1000))
	sim.CorruptChecksum(1)

	length := startJPEG(t, device)
	sink := &sinkBuffer{}
	err := device.TransferJPEG(t.Context(), length, sink)
	require.ErrorIs(t, err, ErrPacketChecksum)
	assert.NotErrorIs(t, err, ErrPacketSequence)
	assert.Empty(t, sink.data)
	assert.Equal(t, [][2]byte{{0x00, 0x00}}, packageACKs(sim))
}

func TestTransferJPEG_ChecksumIgnoresHighByte(t *testing.T) {
	t.Parallel()

	payload := []byte{0x10, 0x20, 0x30}
	pkt := frame.BuildPackage(1, payload)
	pkt[len(pkt)-1] = 0x7F

	device, sim, _ := newReadyDevice(t, 64)
	sim.PushRX(pkt...)

	sink := &sinkBuffer{}
	require.NoError(t, device.TransferJPEG(t.Context(), uint32(len(payload)), sink))
	assert.Equal(t, payload, sink.data)
}

func TestTransferJPEG_PackageSizeUnset(t *testing.T) {
	t.Parallel()

	device, sim, _ := newReadyDevice(t, 0)
	err := device.TransferJPEG(t.Context(), 1000, &sinkBuffer{})
	require.ErrorIs(t, err, ErrPackageSizeUnset)
	assert.Empty(t, sim.Frames())
}

func TestTransferJPEG_OversizedPackage(t *testing.T) {
	t.Parallel()

	device, sim, _ := newReadyDevice(t, 64)
	// claims 100 payload bytes in a 64-byte package
	sim.PushRX(0x01, 0x00, 0x64, 0x00)

	err := device.TransferJPEG(t.Context(), 100, &sinkBuffer{})
	require.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestTransferJPEG_ShortStream(t *testing.T) {
	t.Parallel()

	device, sim, _ := newReadyDevice(t, 512)
	sim.SetJPEG(virt.TestImage(1000))
	length := startJPEG(t, device)
	// camera sends less data than announced
	sim.SetJPEG(virt.TestImage(600))

	err := device.TransferJPEG(t.Context(), length, &sinkBuffer{})
	require.Error(t, err)
}

func TestTransferJPEG_SinkFailure(t *testing.T) {
	t.Parallel()

	device, sim, _ := newReadyDevice(t, 512)
	sim.SetJPEG(virt.TestImage(1000))
	length := startJPEG(t, device)

	sink := &sinkBuffer{failAt: 2}
	err := device.TransferJPEG(t.Context(), length, sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink full")
	assert.Len(t, sink.writes, 1)
}

func TestGetPicture_DataMismatch(t *testing.T) {
	t.Parallel()

	device, sim, _ := newReadyDevice(t, 512)
	sim.SetReply(virt.CmdGetPicture, virt.BuildACK(virt.CmdGetPicture), virt.BuildData(byte(PictureRaw), 10))

	_, err := device.GetPicture(t.Context(), PictureSnapshot)
	require.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestGetPicture_LengthDecoding(t *testing.T) {
	t.Parallel()

	device, sim, _ := newReadyDevice(t, 512)
	sim.SetReply(virt.CmdGetPicture, virt.BuildACK(virt.CmdGetPicture), virt.BuildData(byte(PictureJPEG), 0x0A0B0C))

	length, err := device.GetPicture(t.Context(), PictureJPEG)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0A0B0C), length)
}

func TestSnapshot_Settles(t *testing.T) {
	t.Parallel()

	device, sim, clock := newReadyDevice(t, 512)
	start := clock.Now()
	require.NoError(t, device.Snapshot(t.Context(), SnapshotUncompressed, 0x0102))

	f, _ := sim.LastFrame()
	assert.Equal(t, []byte{0xAA, 0x05, 0x01, 0x02, 0x01, 0x00}, f.Bytes())
	assert.GreaterOrEqual(t, clock.Now().Sub(start), DefaultSnapshotSettle)
}

func TestTransferRaw(t *testing.T) {
	t.Parallel()

	size, ok := FrameSize(FormatRawGray8, RawRes80x60)
	require.True(t, ok)
	image := virt.TestImage(size)

	device, sim, _ := newReadyDevice(t, 0, WithImageFormat(FormatRawGray8, RawRes80x60))
	sim.SetRaw(image)

	sink := &sinkBuffer{}
	n, err := device.Capture(t.Context(), sink)
	require.NoError(t, err)
	assert.Equal(t, uint32(size), n)
	assert.Equal(t, image, sink.data)

	last, _ := sim.LastFrame()
	assert.Equal(t, []byte{0xAA, 0x0E, 0x0A, 0x00, 0x01, 0x00}, last.Bytes())
	assert.True(t, sim.TransferComplete())
}

func TestTransferRaw_Jittery(t *testing.T) {
	t.Parallel()

	size, _ := FrameSize(FormatRawRGB565, RawRes160x120)
	image := virt.TestImage(size)

	sim := virt.NewVirtualUCam()
	sim.SetRaw(image)
	clock := virt.NewVirtualClock()
	link := virt.NewJitteryTransport(sim, virt.JitterConfig{Seed: 99, FragmentReads: true, StallPolls: 4})

	device, err := New(link, WithClock(clock), WithImageFormat(FormatRawRGB565, RawRes160x120))
	require.NoError(t, err)
	ctx := t.Context()
	require.NoError(t, device.Init(ctx))

	sink := &sinkBuffer{}
	n, err := device.Capture(ctx, sink)
	require.NoError(t, err)
	assert.Equal(t, uint32(size), n)
	assert.Equal(t, image, sink.data)
	assert.Contains(t, clock.Sleeps(), DefaultRawPollInterval)
}

func TestCapture_JPEG(t *testing.T) {
	t.Parallel()

	image := virt.TestImage(3000)
	device, sim, _ := newReadyDevice(t, 256, WithImageFormat(FormatJPEG, JPEGRes160x128))
	sim.SetJPEG(image)

	sink := &sinkBuffer{}
	n, err := device.Capture(t.Context(), sink)
	require.NoError(t, err)
	assert.Equal(t, uint32(3000), n)
	assert.Equal(t, image, sink.data)

	snap := sim.FramesOf(virt.CmdSnapshot)
	require.Len(t, snap, 1)
	assert.Equal(t, byte(SnapshotCompressed), snap[0].Frame[2])
}

func TestCapture_JPEGNeedsPackageSize(t *testing.T) {
	t.Parallel()

	device, sim, _ := newReadyDevice(t, 0)
	_, err := device.Capture(t.Context(), &sinkBuffer{})
	require.ErrorIs(t, err, ErrPackageSizeUnset)
	assert.Empty(t, sim.Frames())
}

func TestCapture_SnapshotRejected(t *testing.T) {
	t.Parallel()

	device, sim, _ := newReadyDevice(t, 512)
	sim.SetReply(virt.CmdSnapshot, virt.BuildNAK(byte(NAKPictureNotReady)))

	_, err := device.Capture(t.Context(), &sinkBuffer{})
	nak, ok := IsDeviceRejected(err)
	require.True(t, ok)
	assert.Equal(t, NAKPictureNotReady, nak.Code)
	assert.True(t, IsRetryable(err))
	assert.Empty(t, sim.FramesOf(virt.CmdGetPicture))
}

func TestTransferJPEG_EmptyImage(t *testing.T) {
	t.Parallel()

	device, sim, _ := newReadyDevice(t, 512)
	length := startJPEG(t, device)
	require.Zero(t, length)
	sim.ClearFrames()

	sink := &sinkBuffer{}
	require.NoError(t, device.TransferJPEG(t.Context(), length, sink))
	assert.Empty(t, sink.data)
	assert.Equal(t, [][2]byte{{0x00, 0x00}, {0xF0, 0xF0}}, packageACKs(sim))
	assert.True(t, sim.TransferComplete())

	n, err := sim.Available()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTransferJPEG_TooManyPackages(t *testing.T) {
	t.Parallel()

	device, sim, _ := newReadyDevice(t, 64)

	err := device.TransferJPEG(t.Context(), 0xFFFFFF, &sinkBuffer{})
	require.ErrorIs(t, err, ErrInvalidParameter)
	assert.Contains(t, err.Error(), "16-bit package id")
	assert.Empty(t, sim.Frames())
}

