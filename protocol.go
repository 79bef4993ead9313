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
	"context"
	"fmt"

	"github.com/rapidcdh/go-ucam/internal/frame"
)

// MinPackageSize is the smallest package size the camera accepts.
const MinPackageSize = 64

// sendAndVerify sends a command and requires an ACK echoing it. A NAK
// surfaces as *NAKError; any other frame is ErrUnexpectedResponse.
func (d *Device) sendAndVerify(ctx context.Context, cmd CommandID, params ...byte) error {
	if err := d.sendFrameUnchecked(cmd, params...); err != nil {
		return d.trace.wrap(err)
	}

	resp, err := d.receiveFrame(ctx, d.config.ReceiveTimeout)
	if err != nil {
		return d.trace.wrap(newCommandError("await ack", cmd, err, nil))
	}

	return d.trace.wrap(checkAck(cmd, resp))
}

func checkAck(cmd CommandID, resp frame.Frame) error {
	if resp.Matches(byte(CmdNAK), -1) {
		return newCommandError("send", cmd, &NAKError{Command: cmd, Code: NAKCode(resp.NAKCode())}, resp.Bytes())
	}
	if !resp.Matches(byte(CmdACK), int(cmd)) {
		return newCommandError("send", cmd, ErrUnexpectedResponse, resp.Bytes())
	}
	return nil
}

// Configure sends INITIAL with the image format and resolution. The
// resolution is sent in both the raw and JPEG slots.
func (d *Device) Configure(ctx context.Context, format ImageFormat, res Resolution) error {
	if _, ok := resolutionTable(format)[res]; !ok {
		return fmt.Errorf("%w: resolution 0x%02X invalid for %s", ErrInvalidParameter, byte(res), format)
	}
	if err := d.sendAndVerify(ctx, CmdInitial, 0x00, byte(format), byte(res), byte(res)); err != nil {
		return err
	}

	d.state.Format = format
	d.state.Resolution = res
	d.state.Configured = true
	Debugf("configured %s at resolution 0x%02X", format, byte(res))
	return nil
}

// SetPackageSize negotiates the JPEG package size. Sizes above 512 are
// clamped before sending; the clamped value is stored. Sizes below
// MinPackageSize are rejected with ErrInvalidParameter before any byte is
// sent.
func (d *Device) SetPackageSize(ctx context.Context, size uint16) error {
	if size < MinPackageSize {
		return fmt.Errorf("%w: package size %d below minimum %d", ErrInvalidParameter, size, MinPackageSize)
	}
	size = min(size, frame.MaxPackageSize)

	if err := d.sendAndVerify(ctx, CmdSetPackageSize, 0x08, frame.Low(size), frame.High(size)); err != nil {
		return err
	}

	d.state.PackageSize = size
	return nil
}

// SoftReset resets the camera. With immediate set the reset skips the
// graceful shutdown. The session must synchronize again afterwards.
func (d *Device) SoftReset(ctx context.Context, kind ResetType, immediate bool) error {
	params := []byte{byte(kind)}
	if immediate {
		params = append(params, 0x00, 0x00, 0xFF)
	}
	if err := d.sendAndVerify(ctx, CmdReset, params...); err != nil {
		return err
	}

	d.state.Synchronized = false
	d.state.Configured = false
	d.state.PackageSize = 0
	return nil
}

// SetTone sets contrast, brightness and exposure. The camera does not
// acknowledge it.
func (d *Device) SetTone(contrast, brightness, exposure Tone) error {
	for _, t := range []Tone{contrast, brightness, exposure} {
		if !t.valid() {
			return fmt.Errorf("%w: tone %d out of range", ErrInvalidParameter, t)
		}
	}
	if err := d.sendFrameUnchecked(CmdSetTone, byte(contrast), byte(brightness), byte(exposure)); err != nil {
		return err
	}

	d.state.Contrast = contrast
	d.state.Brightness = brightness
	d.state.Exposure = exposure
	return nil
}

// SetLightFrequency selects 50 or 60 Hz flicker rejection.
func (d *Device) SetLightFrequency(freq LightFrequency) error {
	if freq != Light50Hz && freq != Light60Hz {
		return fmt.Errorf("%w: light frequency 0x%02X", ErrInvalidParameter, byte(freq))
	}
	if err := d.sendFrameUnchecked(CmdLight, byte(freq)); err != nil {
		return err
	}

	d.state.LightFreq = freq
	return nil
}

// SetSleepTimeout sets the idle time in seconds before the camera sleeps.
// Zero disables sleep.
func (d *Device) SetSleepTimeout(seconds byte) error {
	if err := d.sendFrameUnchecked(CmdSleep, seconds); err != nil {
		return err
	}

	d.state.SleepTimeout = seconds
	return nil
}

// SetBaudRate switches the camera to a new rate. The reply arrives at the
// new rate, so the command goes unchecked. When the transport implements
// BaudRateSetter the host side follows. Whatever the camera sends back
// within BaudSwitchTimeout is discarded so the next command reads its own
// reply.
func (d *Device) SetBaudRate(ctx context.Context, rate uint32) error {
	first, second, err := BaudDividers(rate)
	if err != nil {
		return err
	}
	if err := d.sendFrameUnchecked(CmdSetBaudRate, first, second); err != nil {
		return err
	}

	d.state.BaudRate = rate
	if setter, ok := d.transport.(BaudRateSetter); ok {
		if err := setter.SetBaudRate(int(rate)); err != nil {
			return NewTransportError("set baud", d.state.Port, err)
		}
	}
	Debugf("baud rate now %d (dividers 0x%02X 0x%02X)", rate, first, second)
	return d.discardBaudReply(ctx)
}

// discardBaudReply consumes the ACK of SET_BAUD_RATE and any bytes garbled
// by the rate change. A missing reply is not an error.
func (d *Device) discardBaudReply(ctx context.Context) error {
	resp, err := d.receiveFrame(ctx, d.config.BaudSwitchTimeout)
	switch {
	case isTimeout(err):
		Debugln("no reply to SET_BAUD_RATE")
	case err != nil:
		return d.trace.wrap(err)
	case !resp.Matches(byte(CmdACK), int(CmdSetBaudRate)):
		Debugf("discarding %s after SET_BAUD_RATE", resp)
	}
	return d.trace.wrap(d.drainInput())
}
