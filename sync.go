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
	"time"

	"github.com/rapidcdh/go-ucam/internal/frame"
)

type syncState int

const (
	syncReset syncState = iota
	syncAwaitAck
	syncAwaitEcho
	syncAcked
)

func (s syncState) String() string {
	switch s {
	case syncReset:
		return "reset"
	case syncAwaitAck:
		return "await-ack"
	case syncAwaitEcho:
		return "await-sync-echo"
	case syncAcked:
		return "acked"
	default:
		return fmt.Sprintf("syncState(%d)", int(s))
	}
}

// HardReset pulses the reset line low, releases it and waits for the
// camera to settle. Without a reset pin it does nothing.
func (d *Device) HardReset(ctx context.Context) error {
	if d.resetPin == nil {
		Debugln("no reset pin configured, skipping hardware reset")
		return nil
	}
	if err := d.resetPin.Low(); err != nil {
		return fmt.Errorf("assert reset: %w", err)
	}
	if err := d.sleep(ctx, d.config.ResetPulse); err != nil {
		_ = d.resetPin.Release()
		return err
	}
	if err := d.resetPin.Release(); err != nil {
		return fmt.Errorf("release reset: %w", err)
	}
	return d.sleep(ctx, d.config.ResetSettle)
}

// SyncTimeout returns the response wait for a zero-based SYNC attempt.
func (c *DeviceConfig) SyncTimeout(attempt int) time.Duration {
	return c.SyncBaseTimeout + time.Duration(attempt)*c.SyncTimeoutStep
}

// Synchronize resets the camera and runs the SYNC handshake. It returns the
// number of attempts used. Running out of attempts yields
// ErrSynchronizationFailed; transport failures abort immediately.
func (d *Device) Synchronize(ctx context.Context) (int, error) {
	if err := d.checkOpen(); err != nil {
		return 0, err
	}
	d.state.Synchronized = false
	d.state.Configured = false
	d.state.PackageSize = 0
	d.trace.buf.Clear()

	state := syncReset
	if err := d.HardReset(ctx); err != nil {
		return 0, err
	}

	for attempt := range d.config.SyncAttempts {
		timeout := d.config.SyncTimeout(attempt)

		if err := d.drainInput(); err != nil {
			return attempt, d.trace.wrap(err)
		}
		if err := d.sendFrameUnchecked(CmdSync); err != nil {
			return attempt, d.trace.wrap(err)
		}
		state = syncAwaitAck

		ok, err := d.awaitSyncFrame(ctx, timeout, byte(CmdACK), int(CmdSync))
		if err != nil {
			return attempt + 1, d.trace.wrap(err)
		}
		if ok {
			state = syncAwaitEcho
			ok, err = d.awaitSyncFrame(ctx, timeout, byte(CmdSync), -1)
			if err != nil {
				return attempt + 1, d.trace.wrap(err)
			}
		}
		if !ok {
			Debugf("sync attempt %d abandoned in state %s", attempt+1, state)
			continue
		}

		if err := d.sendFrameUnchecked(CmdACK, byte(CmdSync)); err != nil {
			return attempt + 1, d.trace.wrap(err)
		}
		state = syncAcked
		d.state.Synchronized = true
		Debugf("synchronized after %d attempts (%s)", attempt+1, state)
		return attempt + 1, nil
	}

	return d.config.SyncAttempts, d.trace.wrap(fmt.Errorf("%w after %d attempts",
		ErrSynchronizationFailed, d.config.SyncAttempts))
}

// awaitSyncFrame waits for a frame of the given type and echo. A timeout or
// a mismatched frame reports false with no error.
func (d *Device) awaitSyncFrame(ctx context.Context, timeout time.Duration, typ byte, echo int) (bool, error) {
	f, err := d.receiveFrame(ctx, timeout)
	if err != nil {
		if isTimeout(err) {
			return false, nil
		}
		return false, err
	}
	if !f.Matches(typ, echo) {
		Debugf("sync: ignoring %s", frameDescription(f))
		return false, nil
	}
	return true, nil
}

func frameDescription(f frame.Frame) string {
	return fmt.Sprintf("%s [%s]", frameNote(f), f)
}
