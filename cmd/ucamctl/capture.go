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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rapidcdh/go-ucam"
)

type captureFlags struct {
	output      string
	format      string
	resolution  string
	light       string
	contrast    int
	brightness  int
	exposure    int
	sleep       int
	packageSize uint16
	targetBaud  uint32
}

func newCaptureCmd(a *app) *cobra.Command {
	var f captureFlags
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Take a snapshot and save it to a file",
		Long: `Connect to the camera, apply the configured settings and save one
snapshot. JPEG images are transferred in packages; RAW images are streamed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := f.apply(cmd, a); err != nil {
				return err
			}
			return a.runCapture(cmd.Context())
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.output, "output", "o", "", "Output file")
	fl.StringVar(&f.format, "format", "", "Image format: jpeg, gray8, rgb565, crycby")
	fl.StringVar(&f.resolution, "resolution", "", "Resolution, e.g. 640x480")
	fl.StringVar(&f.light, "light", "", "Mains frequency: 50hz or 60hz")
	fl.IntVar(&f.contrast, "contrast", 0, "Contrast level 0..4")
	fl.IntVar(&f.brightness, "brightness", 0, "Brightness level 0..4")
	fl.IntVar(&f.exposure, "exposure", 0, "Exposure level 0..4")
	fl.IntVar(&f.sleep, "sleep", 0, "Sleep timeout in seconds, 0 disables")
	fl.Uint16Var(&f.packageSize, "package-size", 0, "JPEG package size 64..512")
	fl.Uint32Var(&f.targetBaud, "target-baud", 0, "Switch to this baud rate before capturing")
	return cmd
}

func (f *captureFlags) apply(cmd *cobra.Command, a *app) error {
	fl := cmd.Flags()
	c := a.cfg
	if fl.Changed("output") {
		c.Output = f.output
	}
	if fl.Changed("format") {
		c.Camera.Format = f.format
	}
	if fl.Changed("resolution") {
		c.Camera.Resolution = f.resolution
	}
	if fl.Changed("light") {
		c.Camera.Light = f.light
	}
	if fl.Changed("contrast") {
		c.Camera.Contrast = &f.contrast
	}
	if fl.Changed("brightness") {
		c.Camera.Brightness = &f.brightness
	}
	if fl.Changed("exposure") {
		c.Camera.Exposure = &f.exposure
	}
	if fl.Changed("sleep") {
		c.Camera.SleepTimeout = &f.sleep
	}
	if fl.Changed("package-size") {
		c.Camera.PackageSize = f.packageSize
	}
	if fl.Changed("target-baud") {
		c.Device.TargetBaud = f.targetBaud
	}
	if c.Output == "" {
		return errors.New("no output file given")
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (a *app) runCapture(ctx context.Context) (err error) {
	device, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := device.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := a.applySettings(ctx, device); err != nil {
		return describe(err)
	}

	file, err := os.Create(a.cfg.Output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	n, err := device.Capture(ctx, file)
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to write output file: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(a.cfg.Output)
		return describe(err)
	}

	state := device.State()
	a.printf("Captured %d bytes (%s) to %s\n", n, state.Format, a.cfg.Output)
	return nil
}

// applySettings sends the optional camera settings after bring-up.
func (a *app) applySettings(ctx context.Context, device *ucam.Device) error {
	c := a.cfg.Camera

	if c.PackageSize != 0 {
		if err := device.SetPackageSize(ctx, c.PackageSize); err != nil {
			return err
		}
	}

	if c.Contrast != nil || c.Brightness != nil || c.Exposure != nil {
		if err := device.SetTone(toneOrNormal(c.Contrast), toneOrNormal(c.Brightness), toneOrNormal(c.Exposure)); err != nil {
			return err
		}
	}

	light, err := a.cfg.LightFrequency()
	if err != nil {
		return err
	}
	if err := device.SetLightFrequency(light); err != nil {
		return err
	}

	if c.SleepTimeout != nil {
		if err := device.SetSleepTimeout(byte(*c.SleepTimeout)); err != nil { //nolint:gosec // validated 0..255
			return err
		}
	}

	if target := a.cfg.Device.TargetBaud; target != 0 && target != a.cfg.Device.Baud {
		if err := device.SetBaudRate(ctx, target); err != nil {
			return err
		}
	}
	return nil
}

func toneOrNormal(v *int) ucam.Tone {
	if v == nil {
		return ucam.ToneNormal
	}
	return ucam.Tone(*v) //nolint:gosec // validated 0..4
}
