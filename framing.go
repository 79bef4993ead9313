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
	"errors"
	"fmt"
	"time"

	"github.com/rapidcdh/go-ucam/internal/frame"
)

// sendFrameUnchecked writes one command frame without waiting for a reply.
// Write failures are returned, never retried.
func (d *Device) sendFrameUnchecked(cmd CommandID, params ...byte) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	f := frame.New(byte(cmd), params...)
	d.trace.tx(f)
	Debugf("TX %s: %s", cmd, f)

	n, err := d.transport.Write(f.Bytes())
	if err != nil {
		return NewTransportError("write", d.state.Port, err)
	}
	if n != frame.Length {
		return NewTransportError("write", d.state.Port,
			fmt.Errorf("short write: %d of %d bytes", n, frame.Length))
	}
	return nil
}

// receiveFrame collects exactly one frame before timeout elapses. Partial
// data is discarded on timeout.
func (d *Device) receiveFrame(ctx context.Context, timeout time.Duration) (frame.Frame, error) {
	var f frame.Frame
	if err := d.checkOpen(); err != nil {
		return f, err
	}

	buf := make([]byte, 0, frame.Length)
	deadline := d.clock.Now().Add(timeout)

	for len(buf) < frame.Length {
		if err := ctx.Err(); err != nil {
			return f, err
		}

		n, err := d.transport.Available()
		if err != nil {
			return f, NewTransportError("poll", d.state.Port, err)
		}
		for ; n > 0 && len(buf) < frame.Length; n-- {
			b, err := d.transport.ReadByte()
			if err != nil {
				return f, NewTransportError("read", d.state.Port, err)
			}
			buf = append(buf, b)
		}
		if len(buf) == frame.Length {
			break
		}

		if !d.clock.Now().Before(deadline) {
			d.trace.buf.RecordTimeout(buf, fmt.Sprintf("%d/%d bytes after %v", len(buf), frame.Length, timeout))
			return f, fmt.Errorf("%w: %d of %d bytes after %v", ErrTimeout, len(buf), frame.Length, timeout)
		}
		d.clock.Sleep(d.config.FramePollInterval)
	}

	f, _ = frame.FromBytes(buf)
	d.trace.rx(f)
	Debugf("RX %s", f)
	return f, nil
}

// drainInput discards any bytes already waiting on the link.
func (d *Device) drainInput() error {
	n, err := d.transport.Available()
	if err != nil {
		return NewTransportError("poll", d.state.Port, err)
	}
	dropped := 0
	for ; n > 0; n-- {
		if _, err := d.transport.ReadByte(); err != nil {
			return NewTransportError("read", d.state.Port, err)
		}
		dropped++
	}
	if dropped > 0 {
		Debugf("drained %d stale bytes", dropped)
	}
	return nil
}

// readByte is the blocking single-byte read used for package payloads.
func (d *Device) readByte(ctx context.Context) (byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b, err := d.transport.ReadByte()
	if err != nil {
		return 0, NewTransportError("read", d.state.Port, err)
	}
	return b, nil
}

func (d *Device) readFull(ctx context.Context, buf []byte) error {
	for i := range buf {
		b, err := d.readByte(ctx)
		if err != nil {
			return err
		}
		buf[i] = b
	}
	return nil
}

func isTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
