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
	"io"

	"github.com/rapidcdh/go-ucam/internal/frame"
)

// Snapshot captures a frame into the camera buffer, skipping skipFrames
// frames first, then waits for the buffer to fill. The camera ACKs before
// the capture finishes.
func (d *Device) Snapshot(ctx context.Context, kind SnapshotType, skipFrames uint16) error {
	if err := d.sendAndVerify(ctx, CmdSnapshot, byte(kind), frame.Low(skipFrames), frame.High(skipFrames)); err != nil {
		return err
	}
	return d.sleep(ctx, d.config.SnapshotSettle)
}

// GetPicture requests a picture and returns its length in bytes from the
// DATA frame that follows the ACK.
func (d *Device) GetPicture(ctx context.Context, picture PictureType) (uint32, error) {
	if err := d.sendAndVerify(ctx, CmdGetPicture, byte(picture)); err != nil {
		return 0, err
	}

	resp, err := d.receiveFrame(ctx, d.config.ReceiveTimeout)
	if err != nil {
		return 0, d.trace.wrap(newCommandError("await data", CmdGetPicture, err, nil))
	}
	if !resp.Matches(byte(CmdData), int(picture)) {
		return 0, d.trace.wrap(newCommandError("await data", CmdGetPicture, ErrUnexpectedResponse, resp.Bytes()))
	}

	length := resp.DataLength()
	Debugf("picture type 0x%02X is %d bytes", byte(picture), length)
	return length, nil
}

// TransferJPEG streams total bytes of JPEG data in packages of the
// negotiated size, writing each verified payload to sink. Any sequence or
// checksum failure aborts the transfer before the bad payload is written.
func (d *Device) TransferJPEG(ctx context.Context, total uint32, sink io.Writer) error {
	size := d.state.PackageSize
	if size == 0 {
		return ErrPackageSizeUnset
	}
	count, err := frame.PackageCount(total, size)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	Debugf("JPEG transfer: %d bytes in %d packages of %d", total, count, size)

	if err := d.sendFrameUnchecked(CmdACK, 0x00, 0x00, 0x00, 0x00); err != nil {
		return d.trace.wrap(err)
	}
	if count == 0 {
		// nothing to fetch: close the stream and drop anything sent anyway
		if err := d.sendFrameUnchecked(CmdACK, 0x00, 0x00, frame.EndOfTransferLow, frame.EndOfTransferHigh); err != nil {
			return d.trace.wrap(err)
		}
		return d.trace.wrap(d.drainInput())
	}

	maxPayload := size - frame.PackageOverhead
	header := make([]byte, frame.PackageHeaderLength)
	verify := make([]byte, 2)
	payload := make([]byte, maxPayload)
	var written uint32

	for n := range count {
		i := n + 1
		if err := d.readFull(ctx, header); err != nil {
			return d.trace.wrap(err)
		}
		hdr, _ := frame.ParseHeader(header)
		if hdr.ID != i {
			return d.trace.wrap(&PacketError{
				Err: ErrPacketSequence, Package: uint32(i), Expected: i, Got: hdr.ID,
			})
		}
		if hdr.Length > maxPayload {
			return d.trace.wrap(fmt.Errorf("%w: package %d carries %d bytes, limit %d",
				ErrUnexpectedResponse, i, hdr.Length, maxPayload))
		}

		data := payload[:hdr.Length]
		if err := d.readFull(ctx, data); err != nil {
			return d.trace.wrap(err)
		}
		if err := d.readFull(ctx, verify); err != nil {
			return d.trace.wrap(err)
		}

		sum := frame.CalculateChecksum(header) + frame.CalculateChecksum(data)
		code := frame.Uint16(verify[0], verify[1])
		if !frame.VerifyCodeMatches(code, sum) {
			return d.trace.wrap(&PacketError{
				Err: ErrPacketChecksum, Package: uint32(i), Expected: uint16(sum), Got: code,
			})
		}

		if _, err := sink.Write(data); err != nil {
			return fmt.Errorf("write package %d: %w", i, err)
		}
		written += uint32(hdr.Length)

		lo, hi := byte(frame.EndOfTransferLow), byte(frame.EndOfTransferHigh)
		if i < count {
			lo, hi = frame.Low(i+1), frame.High(i+1)
		}
		if err := d.sendFrameUnchecked(CmdACK, 0x00, 0x00, lo, hi); err != nil {
			return d.trace.wrap(err)
		}
	}

	if written != total {
		return d.trace.wrap(fmt.Errorf("%w: received %d of %d bytes", ErrUnexpectedResponse, written, total))
	}
	return nil
}

// TransferRaw streams total bytes of unframed image data to sink, polling
// the link while it is idle, then acknowledges the whole transfer.
func (d *Device) TransferRaw(ctx context.Context, total uint32, sink io.Writer) error {
	if err := d.sendFrameUnchecked(CmdACK, 0x00, 0x00, 0x00, 0x00); err != nil {
		return d.trace.wrap(err)
	}

	chunk := make([]byte, 0, 256)
	var written uint32
	for written < total {
		n, err := d.transport.Available()
		if err != nil {
			return d.trace.wrap(NewTransportError("poll", d.state.Port, err))
		}
		if n == 0 {
			if err := d.sleep(ctx, d.config.RawPollInterval); err != nil {
				return err
			}
			continue
		}

		n = min(n, int(total-written), cap(chunk))
		chunk = chunk[:n]
		if err := d.readFull(ctx, chunk); err != nil {
			return d.trace.wrap(err)
		}
		if _, err := sink.Write(chunk); err != nil {
			return fmt.Errorf("write raw data: %w", err)
		}
		written += uint32(n) //nolint:gosec // n bounded by total-written
	}

	return d.trace.wrap(d.sendFrameUnchecked(CmdACK, byte(CmdData), 0x00, 0x01, 0x00))
}

// Capture runs snapshot, get picture and transfer for the session's image
// format and returns the number of bytes written to sink. JPEG capture
// needs a negotiated package size.
func (d *Device) Capture(ctx context.Context, sink io.Writer) (uint32, error) {
	if err := d.checkOpen(); err != nil {
		return 0, err
	}
	jpeg := d.state.Format.IsJPEG()
	if jpeg && d.state.PackageSize == 0 {
		return 0, ErrPackageSizeUnset
	}

	kind := SnapshotUncompressed
	if jpeg {
		kind = SnapshotCompressed
	}
	if err := d.Snapshot(ctx, kind, 0); err != nil {
		return 0, err
	}

	length, err := d.GetPicture(ctx, PictureSnapshot)
	if err != nil {
		return 0, err
	}

	if jpeg {
		err = d.TransferJPEG(ctx, length, sink)
	} else {
		if want, ok := FrameSize(d.state.Format, d.state.Resolution); ok && uint32(want) != length { //nolint:gosec // frame sizes are small
			Debugf("raw picture is %d bytes, expected %d", length, want)
		}
		err = d.TransferRaw(ctx, length, sink)
	}
	if err != nil {
		return 0, err
	}
	return length, nil
}
