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

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/rapidcdh/go-ucam/internal/frame"
)

func drain(t *testing.T, v ByteTransport) []byte {
	t.Helper()
	n, err := v.Available()
	require.NoError(t, err)
	out := make([]byte, n)
	for i := range out {
		out[i], err = v.ReadByte()
		require.NoError(t, err)
	}
	return out
}

func TestVirtualUCam_SyncOnAttempt(t *testing.T) {
	t.Parallel()

	sim := NewVirtualUCam()
	sim.SyncOnAttempt(3)
	syncFrame := frame.New(CmdSync).Bytes()

	for range 2 {
		_, err := sim.Write(syncFrame)
		require.NoError(t, err)
		assert.Empty(t, drain(t, sim))
	}

	_, err := sim.Write(syncFrame)
	require.NoError(t, err)
	got := drain(t, sim)
	want := append(BuildACK(CmdSync), BuildSync()...)
	assert.Equal(t, want, got)

	_, err = sim.Write(frame.New(CmdACK, CmdSync).Bytes())
	require.NoError(t, err)
	assert.True(t, sim.Synced())
	assert.Equal(t, 3, sim.SyncCount())
}

func TestVirtualUCam_NeverSyncs(t *testing.T) {
	t.Parallel()

	sim := NewVirtualUCam()
	sim.SyncOnAttempt(0)
	for range 100 {
		_, err := sim.Write(frame.New(CmdSync).Bytes())
		require.NoError(t, err)
	}
	assert.Empty(t, drain(t, sim))
	assert.Len(t, sim.FramesOf(CmdSync), 100)
}

func TestVirtualUCam_SplitWrites(t *testing.T) {
	t.Parallel()

	sim := NewVirtualUCam()
	f := frame.New(CmdSnapshot, 0x00).Bytes()
	_, err := sim.Write(f[:2])
	require.NoError(t, err)
	assert.Empty(t, sim.Frames())

	_, err = sim.Write(f[2:])
	require.NoError(t, err)
	require.Len(t, sim.Frames(), 1)
	assert.Equal(t, BuildACK(CmdSnapshot), drain(t, sim))
}

func TestVirtualUCam_SetReplyOverrides(t *testing.T) {
	t.Parallel()

	sim := NewVirtualUCam()
	sim.SetReply(CmdInitial, BuildNAK(0x07))
	_, err := sim.Write(frame.New(CmdInitial, 0x00, 0x07, 0x07, 0x07).Bytes())
	require.NoError(t, err)
	assert.Equal(t, BuildNAK(0x07), drain(t, sim))

	sim.ClearReply(CmdInitial)
	_, err = sim.Write(frame.New(CmdInitial, 0x00, 0x07, 0x07, 0x07).Bytes())
	require.NoError(t, err)
	assert.Equal(t, BuildACK(CmdInitial), drain(t, sim))
}

func TestVirtualUCam_UnknownCommandNAK(t *testing.T) {
	t.Parallel()

	sim := NewVirtualUCam()
	_, err := sim.Write(frame.New(0x42).Bytes())
	require.NoError(t, err)
	assert.Equal(t, BuildNAK(nakCommandID), drain(t, sim))
}

func TestVirtualUCam_JPEGTransfer(t *testing.T) {
	t.Parallel()

	image := TestImage(1000)
	sim := NewVirtualUCam()
	sim.SetJPEG(image)

	_, err := sim.Write(frame.New(CmdSetPackageSize, 0x08, 0x00, 0x02).Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint16(512), sim.PackageSize())
	drain(t, sim)

	_, err = sim.Write(frame.New(CmdGetPicture, 0x01).Bytes())
	require.NoError(t, err)
	got := drain(t, sim)
	require.Len(t, got, 12)
	assert.Equal(t, BuildData(0x01, 1000), got[6:])

	stream := BuildJPEGStream(image, 512)
	require.Len(t, stream, 2)

	_, err = sim.Write(frame.New(CmdACK, 0x00, 0x00, 0x00, 0x00).Bytes())
	require.NoError(t, err)
	assert.Equal(t, stream[0], drain(t, sim))

	_, err = sim.Write(frame.New(CmdACK, 0x00, 0x00, 0x02, 0x00).Bytes())
	require.NoError(t, err)
	assert.Equal(t, stream[1], drain(t, sim))

	_, err = sim.Write(frame.New(CmdACK, 0x00, 0x00, 0xF0, 0xF0).Bytes())
	require.NoError(t, err)
	assert.True(t, sim.TransferComplete())
}

func TestVirtualUCam_CorruptPackages(t *testing.T) {
	t.Parallel()

	sim := NewVirtualUCam()
	sim.SetJPEG(TestImage(1000))
	sim.CorruptPackageID(2)
	sim.CorruptChecksum(1)
	_, err := sim.Write(frame.New(CmdSetPackageSize, 0x08, 0x00, 0x02).Bytes())
	require.NoError(t, err)
	_, err = sim.Write(frame.New(CmdGetPicture, 0x01).Bytes())
	require.NoError(t, err)
	drain(t, sim)

	_, err = sim.Write(frame.New(CmdACK).Bytes())
	require.NoError(t, err)
	first := drain(t, sim)
	good := BuildJPEGStream(TestImage(1000), 512)[0]
	assert.Equal(t, good[len(good)-2]+1, first[len(first)-2])

	_, err = sim.Write(frame.New(CmdACK, 0x00, 0x00, 0x02, 0x00).Bytes())
	require.NoError(t, err)
	second := drain(t, sim)
	assert.Equal(t, []byte{0x03, 0x00}, second[:2])
}

func TestVirtualUCam_RawTransfer(t *testing.T) {
	t.Parallel()

	image := TestImage(80 * 60)
	sim := NewVirtualUCam()
	sim.SetRaw(image)

	_, err := sim.Write(frame.New(CmdInitial, 0x00, 0x03, 0x01, 0x01).Bytes())
	require.NoError(t, err)
	_, err = sim.Write(frame.New(CmdGetPicture, 0x01).Bytes())
	require.NoError(t, err)
	got := drain(t, sim)
	assert.Equal(t, BuildData(0x01, 4800), got[12:])

	_, err = sim.Write(frame.New(CmdACK).Bytes())
	require.NoError(t, err)
	assert.Equal(t, image, drain(t, sim))

	_, err = sim.Write(frame.New(CmdACK, CmdData, 0x00, 0x01, 0x00).Bytes())
	require.NoError(t, err)
	assert.True(t, sim.TransferComplete())
}

func TestVirtualUCam_Close(t *testing.T) {
	t.Parallel()

	sim := NewVirtualUCam()
	require.NoError(t, sim.Close())
	require.NoError(t, sim.Close())

	_, err := sim.Write(frame.New(CmdSync).Bytes())
	require.ErrorIs(t, err, ErrSimulatorClosed)
	_, err = sim.Available()
	require.ErrorIs(t, err, ErrSimulatorClosed)
	_, err = sim.ReadByte()
	require.ErrorIs(t, err, ErrSimulatorClosed)
}

func TestVirtualUCam_EmptyReadIsEOF(t *testing.T) {
	t.Parallel()

	_, err := NewVirtualUCam().ReadByte()
	require.ErrorIs(t, err, io.EOF)
}

func TestVirtualClock(t *testing.T) {
	t.Parallel()

	clock := NewVirtualClock()
	start := clock.Now()
	clock.Sleep(5 * time.Millisecond)
	clock.Sleep(10 * time.Millisecond)
	clock.Advance(time.Second)

	assert.Equal(t, start.Add(time.Second+15*time.Millisecond), clock.Now())
	assert.Equal(t, []time.Duration{5 * time.Millisecond, 10 * time.Millisecond}, clock.Sleeps())
	assert.True(t, clock.SleptAtLeast(10*time.Millisecond))
	assert.False(t, clock.SleptAtLeast(time.Second))
}

func TestRecordingPin(t *testing.T) {
	t.Parallel()

	clock := NewVirtualClock()
	pin := NewRecordingPin("GPIO17", clock.Now)
	require.NoError(t, pin.Out(gpio.Low))
	clock.Sleep(10 * time.Millisecond)
	require.NoError(t, pin.In(gpio.PullUp, gpio.NoEdge))

	events := pin.Events()
	require.Len(t, events, 2)
	assert.Equal(t, gpio.Low, events[0].Level)
	assert.False(t, events[0].Input)
	assert.True(t, events[1].Input)
	assert.Equal(t, gpio.High, events[1].Level)
	assert.Equal(t, 10*time.Millisecond, events[1].At.Sub(events[0].At))
}
