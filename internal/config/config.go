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

// Package config loads ucamctl settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/rapidcdh/go-ucam"
	"github.com/rapidcdh/go-ucam/sensor/ads7828"
	"github.com/rapidcdh/go-ucam/sensor/ina260"
	"github.com/rapidcdh/go-ucam/transport/resetpin"
)

// Config is the top-level file layout.
type Config struct {
	Device  Device  `yaml:"device"`
	Camera  Camera  `yaml:"camera"`
	Timing  Timing  `yaml:"timing"`
	Log     Log     `yaml:"log"`
	Sensors Sensors `yaml:"sensors"`
	Output  string  `yaml:"output"`
}

// Device describes the serial link and reset wiring.
type Device struct {
	Port       string `yaml:"port"`
	ResetPin   string `yaml:"reset_pin"`
	ResetMode  string `yaml:"reset_mode"`
	Baud       uint32 `yaml:"baud"`
	TargetBaud uint32 `yaml:"target_baud"`
	Retries    int    `yaml:"retries"`
}

// Camera holds the image settings applied after synchronization.
type Camera struct {
	Format       string `yaml:"format"`
	Resolution   string `yaml:"resolution"`
	Light        string `yaml:"light"`
	Contrast     *int   `yaml:"contrast"`
	Brightness   *int   `yaml:"brightness"`
	Exposure     *int   `yaml:"exposure"`
	SleepTimeout *int   `yaml:"sleep_timeout"`
	PackageSize  uint16 `yaml:"package_size"`
}

// Timing overrides protocol delays. Zero values keep the defaults.
type Timing struct {
	ReceiveTimeout time.Duration `yaml:"receive_timeout"`
	StabilizeDelay time.Duration `yaml:"stabilize_delay"`
	SnapshotSettle time.Duration `yaml:"snapshot_settle"`
	SyncAttempts   int           `yaml:"sync_attempts"`
}

// Log selects debug output and the session log directory.
type Log struct {
	Dir   string `yaml:"dir"`
	Debug bool   `yaml:"debug"`
}

// Sensors describes the I2C housekeeping sensors.
type Sensors struct {
	Bus          string  `yaml:"bus"`
	Reference    float64 `yaml:"reference_volts"`
	INA260Addr   uint16  `yaml:"ina260_addr"`
	TMP36Channel int     `yaml:"tmp36_channel"`
	ADS7828A0    bool    `yaml:"ads7828_a0"`
	ADS7828A1    bool    `yaml:"ads7828_a1"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Device: Device{
			Port:      "/dev/ttyUSB0",
			Baud:      ucam.DefaultBaudRate,
			ResetMode: resetpin.ModeDriveHigh.String(),
			Retries:   ucam.DefaultConnectionRetries,
		},
		Camera: Camera{
			Format:      "jpeg",
			Resolution:  "640x480",
			Light:       "50hz",
			PackageSize: 512,
		},
		Sensors: Sensors{
			INA260Addr: ina260.DefaultAddr,
			Reference:  float64(ads7828.DefaultReference) / float64(physic.Volt),
		},
		Output: "capture.jpg",
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg and validates the result. Unknown keys are
// rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg.Validate()
}

// Validate checks every field that has a restricted range.
func (c *Config) Validate() error {
	var errs []error

	if c.Device.Port == "" {
		errs = append(errs, errors.New("device.port is required"))
	}
	if _, _, err := ucam.BaudDividers(c.Device.Baud); err != nil {
		errs = append(errs, fmt.Errorf("device.baud: %w", err))
	}
	if c.Device.TargetBaud != 0 {
		if _, _, err := ucam.BaudDividers(c.Device.TargetBaud); err != nil {
			errs = append(errs, fmt.Errorf("device.target_baud: %w", err))
		}
	}
	if _, err := resetpin.ParseMode(c.Device.ResetMode); err != nil {
		errs = append(errs, fmt.Errorf("device.reset_mode: %w", err))
	}
	if c.Device.Retries < 1 {
		errs = append(errs, fmt.Errorf("device.retries must be at least 1, got %d", c.Device.Retries))
	}

	if _, _, err := c.ImageFormat(); err != nil {
		errs = append(errs, fmt.Errorf("camera: %w", err))
	}
	if _, err := c.LightFrequency(); err != nil {
		errs = append(errs, fmt.Errorf("camera.light: %w", err))
	}
	if p := c.Camera.PackageSize; p != 0 && (p < ucam.MinPackageSize || p > 512) {
		errs = append(errs, fmt.Errorf("camera.package_size %d outside %d..512", p, ucam.MinPackageSize))
	}
	for name, v := range map[string]*int{
		"contrast": c.Camera.Contrast, "brightness": c.Camera.Brightness, "exposure": c.Camera.Exposure,
	} {
		if v != nil && (*v < int(ucam.ToneMin) || *v > int(ucam.ToneMax)) {
			errs = append(errs, fmt.Errorf("camera.%s %d outside %d..%d", name, *v, ucam.ToneMin, ucam.ToneMax))
		}
	}
	if v := c.Camera.SleepTimeout; v != nil && (*v < 0 || *v > 255) {
		errs = append(errs, fmt.Errorf("camera.sleep_timeout %d outside 0..255", *v))
	}

	if c.Timing.SyncAttempts < 0 {
		errs = append(errs, errors.New("timing.sync_attempts must not be negative"))
	}

	if ch := c.Sensors.TMP36Channel; ch < 0 || ch > 7 {
		errs = append(errs, fmt.Errorf("sensors.tmp36_channel %d outside 0..7", ch))
	}
	if c.Sensors.Reference <= 0 {
		errs = append(errs, errors.New("sensors.reference_volts must be positive"))
	}

	return errors.Join(errs...)
}

// ImageFormat resolves the camera format and resolution names.
func (c *Config) ImageFormat() (ucam.ImageFormat, ucam.Resolution, error) {
	format, err := ucam.ParseImageFormat(c.Camera.Format)
	if err != nil {
		return 0, 0, err
	}
	res, err := ucam.ParseResolution(format, c.Camera.Resolution)
	if err != nil {
		return 0, 0, err
	}
	return format, res, nil
}

// LightFrequency resolves "50hz" or "60hz".
func (c *Config) LightFrequency() (ucam.LightFrequency, error) {
	switch strings.ToLower(strings.TrimSpace(c.Camera.Light)) {
	case "50hz", "50":
		return ucam.Light50Hz, nil
	case "60hz", "60":
		return ucam.Light60Hz, nil
	default:
		return 0, fmt.Errorf("%w: light frequency %q", ucam.ErrInvalidParameter, c.Camera.Light)
	}
}

// ResetMode resolves the reset release mode.
func (c *Config) ResetMode() resetpin.Mode {
	m, _ := resetpin.ParseMode(c.Device.ResetMode)
	return m
}

// DeviceConfig applies timing overrides to the driver defaults.
func (c *Config) DeviceConfig() *ucam.DeviceConfig {
	dc := ucam.DefaultDeviceConfig()
	if c.Timing.ReceiveTimeout > 0 {
		dc.ReceiveTimeout = c.Timing.ReceiveTimeout
	}
	if c.Timing.StabilizeDelay > 0 {
		dc.StabilizeDelay = c.Timing.StabilizeDelay
	}
	if c.Timing.SnapshotSettle > 0 {
		dc.SnapshotSettle = c.Timing.SnapshotSettle
	}
	if c.Timing.SyncAttempts > 0 {
		dc.SyncAttempts = c.Timing.SyncAttempts
	}
	return dc
}

// DeviceOptions returns the session options described by the file. The
// configuration must have been validated.
func (c *Config) DeviceOptions() ([]ucam.Option, error) {
	format, res, err := c.ImageFormat()
	if err != nil {
		return nil, err
	}
	return []ucam.Option{
		ucam.WithConfig(c.DeviceConfig()),
		ucam.WithImageFormat(format, res),
	}, nil
}

// ADS7828Reference returns the ADC reference as a physical quantity.
func (c *Config) ADS7828Reference() physic.ElectricPotential {
	return physic.ElectricPotential(math.Round(c.Sensors.Reference * float64(physic.Volt)))
}
