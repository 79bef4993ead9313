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

// Default protocol timing.
const (
	DefaultReceiveTimeout    = 500 * time.Millisecond
	DefaultSyncAttempts      = 60
	DefaultSyncBaseTimeout   = 5 * time.Millisecond
	DefaultSyncTimeoutStep   = 1 * time.Millisecond
	DefaultResetPulse        = 10 * time.Millisecond
	DefaultResetSettle       = 10 * time.Millisecond
	DefaultStabilizeDelay    = 1 * time.Second
	DefaultSnapshotSettle    = 500 * time.Millisecond
	DefaultBaudSwitchTimeout = 100 * time.Millisecond
	DefaultFramePollInterval = 1 * time.Millisecond
	DefaultRawPollInterval   = 5 * time.Millisecond
	DefaultSleepTimeout      = 15 // seconds
	DefaultBaudRate          = 115200
	DefaultTraceSize         = 32
)

// DeviceConfig contains timing options for the Device
type DeviceConfig struct {
	// ReceiveTimeout bounds a single response frame
	ReceiveTimeout time.Duration
	// SyncBaseTimeout and SyncTimeoutStep give the per-attempt SYNC wait:
	// base + attempt*step
	SyncBaseTimeout time.Duration
	SyncTimeoutStep time.Duration
	// ResetPulse is how long reset is held low; ResetSettle follows release
	ResetPulse  time.Duration
	ResetSettle time.Duration
	// StabilizeDelay lets gain and exposure control settle after SYNC
	StabilizeDelay time.Duration
	// SnapshotSettle waits for the frame to land in the camera buffer
	SnapshotSettle time.Duration
	// BaudSwitchTimeout bounds the wait for the SET_BAUD_RATE reply at the
	// new rate
	BaudSwitchTimeout time.Duration
	// FramePollInterval is the sleep between available-byte polls while
	// waiting for a frame
	FramePollInterval time.Duration
	// RawPollInterval is the sleep between polls during a raw transfer
	RawPollInterval time.Duration
	// SyncAttempts is the SYNC retry budget
	SyncAttempts int
	// TraceSize is the number of wire trace entries kept for errors
	TraceSize int
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		ReceiveTimeout:    DefaultReceiveTimeout,
		SyncAttempts:      DefaultSyncAttempts,
		SyncBaseTimeout:   DefaultSyncBaseTimeout,
		SyncTimeoutStep:   DefaultSyncTimeoutStep,
		ResetPulse:        DefaultResetPulse,
		ResetSettle:       DefaultResetSettle,
		StabilizeDelay:    DefaultStabilizeDelay,
		SnapshotSettle:    DefaultSnapshotSettle,
		BaudSwitchTimeout: DefaultBaudSwitchTimeout,
		FramePollInterval: DefaultFramePollInterval,
		RawPollInterval:   DefaultRawPollInterval,
		TraceSize:         DefaultTraceSize,
	}
}

// State is a copy of the settings mirrored from the camera. Fields change
// only after the corresponding command succeeded.
type State struct {
	Port         string
	BaudRate     uint32
	PackageSize  uint16
	Format       ImageFormat
	Resolution   Resolution
	Contrast     Tone
	Brightness   Tone
	Exposure     Tone
	LightFreq    LightFrequency
	SleepTimeout byte
	Synchronized bool
	Configured   bool
}

// Device is one open session with a uCAM-III camera.
//
// Thread Safety: Device is NOT thread-safe. The protocol is strictly one
// request at a time; all methods must be called from a single goroutine.
// Closing the transport is the only way to unblock a pending read.
type Device struct {
	transport Transport
	resetPin  ResetPin
	clock     Clock
	config    *DeviceConfig
	trace     *frameTrace
	state     State
	closed    bool
}

// Option configures a Device at construction.
type Option func(*Device) error

// WithConfig replaces the timing configuration.
func WithConfig(cfg *DeviceConfig) Option {
	return func(d *Device) error {
		if cfg == nil {
			return fmt.Errorf("%w: nil device config", ErrInvalidParameter)
		}
		if cfg.SyncAttempts < 1 {
			return fmt.Errorf("%w: sync attempts must be at least 1, got %d", ErrInvalidParameter, cfg.SyncAttempts)
		}
		c := *cfg
		d.config = &c
		return nil
	}
}

// WithClock sets the time source used by all timing loops.
func WithClock(c Clock) Option {
	return func(d *Device) error {
		if c == nil {
			return fmt.Errorf("%w: nil clock", ErrInvalidParameter)
		}
		d.clock = c
		return nil
	}
}

// WithResetPin attaches the hardware reset line. Without one, Synchronize
// skips the reset pulse.
func WithResetPin(p ResetPin) Option {
	return func(d *Device) error {
		d.resetPin = p
		return nil
	}
}

// WithImageFormat sets the format and resolution applied by Init.
func WithImageFormat(format ImageFormat, res Resolution) Option {
	return func(d *Device) error {
		if _, ok := resolutionTable(format)[res]; !ok {
			return fmt.Errorf("%w: resolution 0x%02X invalid for %s", ErrInvalidParameter, byte(res), format)
		}
		d.state.Format = format
		d.state.Resolution = res
		return nil
	}
}

// WithBaudRate records the rate the transport was opened at.
func WithBaudRate(rate uint32) Option {
	return func(d *Device) error {
		d.state.BaudRate = rate
		return nil
	}
}

// WithPortName labels the session for logs and wire traces.
func WithPortName(name string) Option {
	return func(d *Device) error {
		d.state.Port = name
		return nil
	}
}

// New creates a session over an already opened transport. The session owns
// the transport from here on and releases it in Close.
func New(transport Transport, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}

	device := &Device{
		transport: transport,
		clock:     DefaultClock(),
		config:    DefaultDeviceConfig(),
		state: State{
			BaudRate:     DefaultBaudRate,
			Format:       FormatJPEG,
			Resolution:   JPEGRes640x480,
			Contrast:     ToneNormal,
			Brightness:   ToneNormal,
			Exposure:     ToneNormal,
			LightFreq:    Light50Hz,
			SleepTimeout: DefaultSleepTimeout,
		},
	}
	if pn, ok := transport.(PortNamer); ok {
		device.state.Port = pn.PortName()
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}
	device.trace = newFrameTrace(device.state.Port, device.config.TraceSize)

	return device, nil
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// Config returns a copy of the timing configuration.
func (d *Device) Config() DeviceConfig {
	return *d.config
}

// State returns a copy of the mirrored camera settings.
func (d *Device) State() State {
	return d.state
}

// PackageSize returns the negotiated JPEG package size, 0 when unset.
func (d *Device) PackageSize() uint16 {
	return d.state.PackageSize
}

// Trace returns the recent wire trace, oldest first.
func (d *Device) Trace() []TraceEntry {
	return d.trace.buf.Entries()
}

// Init brings the camera from power-on to configured: hardware reset,
// synchronization, the stabilization delay, then INITIAL with the session's
// format and resolution.
func (d *Device) Init(ctx context.Context) error {
	if _, err := d.Synchronize(ctx); err != nil {
		return err
	}

	Debugf("waiting %v for AGC/AEC to settle", d.config.StabilizeDelay)
	if err := d.sleep(ctx, d.config.StabilizeDelay); err != nil {
		return err
	}

	return d.Configure(ctx, d.state.Format, d.state.Resolution)
}

// Close releases the transport. It is safe to call more than once and on a
// session that never synchronized.
func (d *Device) Close() error {
	if d.closed || d.transport == nil {
		return nil
	}
	d.closed = true
	d.state.Synchronized = false
	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

func (d *Device) checkOpen() error {
	if d.closed {
		return ErrTransportClosed
	}
	return nil
}

// sleep waits on the session clock, returning early if ctx is done.
func (d *Device) sleep(ctx context.Context, dur time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.clock.Sleep(dur)
	return ctx.Err()
}

// frameTrace pairs the wire trace with frame-aware helpers.
type frameTrace struct {
	buf *TraceBuffer
}

func newFrameTrace(port string, size int) *frameTrace {
	return &frameTrace{buf: NewTraceBuffer(port, size)}
}

func (t *frameTrace) tx(f frame.Frame) {
	t.buf.RecordTX(f.Bytes(), frameNote(f))
}

func (t *frameTrace) rx(f frame.Frame) {
	t.buf.RecordRX(f.Bytes(), frameNote(f))
}

func (t *frameTrace) wrap(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	return t.buf.WrapError(err)
}
