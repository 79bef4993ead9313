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
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rapidcdh/go-ucam"
	"github.com/rapidcdh/go-ucam/detection"
	"github.com/rapidcdh/go-ucam/internal/config"
	"github.com/rapidcdh/go-ucam/transport/i2c"
	"github.com/rapidcdh/go-ucam/transport/resetpin"
	"github.com/rapidcdh/go-ucam/transport/uart"
)

// app carries the loaded configuration and the hardware constructors, which
// tests replace with simulators.
type app struct {
	cfg           *config.Config
	out           io.Writer
	openTransport ucam.TransportFactory
	openResetPin  func(name string, mode resetpin.Mode) (ucam.ResetPin, error)
	openBus       func(name string) (*i2c.Bus, error)
	detect        func(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error)
	extraOptions  []ucam.Option
	flags         globalFlags
}

type globalFlags struct {
	configPath string
	port       string
	resetPin   string
	resetMode  string
	logDir     string
	baud       uint32
	debug      bool
}

func newApp() *app {
	return &app{
		openTransport: uart.Factory,
		openResetPin: func(name string, mode resetpin.Mode) (ucam.ResetPin, error) {
			pin, err := resetpin.Open(name, mode)
			if err != nil {
				return nil, err
			}
			return pin, nil
		},
		openBus: i2c.Open,
		detect:  detection.Detect,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "ucamctl",
		Short: "uCAM-III serial camera control",
		Long: `ucamctl - capture images from a uCAM-III serial camera and read the
housekeeping sensors on the payload board.

Settings come from an optional YAML file (--config); flags override it.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return ucam.CloseSessionLog()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.configPath, "config", "c", "", "YAML configuration file")
	pf.StringVarP(&a.flags.port, "port", "p", "", "Serial port device")
	pf.Uint32VarP(&a.flags.baud, "baud", "b", ucam.DefaultBaudRate, "Baud rate the camera is opened at")
	pf.StringVar(&a.flags.resetPin, "reset-pin", "", "GPIO wired to the camera reset line")
	pf.StringVar(&a.flags.resetMode, "reset-mode", "", "Reset release: drive-high or hi-z")
	pf.BoolVarP(&a.flags.debug, "debug", "d", false, "Print protocol debug output")
	pf.StringVar(&a.flags.logDir, "log-dir", "", "Write a session log to this directory")

	root.AddCommand(
		newCaptureCmd(a),
		newSyncCmd(a),
		newBaudCmd(a),
		newPortsCmd(a),
		newSenseCmd(a),
	)
	return root
}

// setup loads the configuration file and applies flag overrides.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.out = cmd.OutOrStdout()

	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Device.Port = a.flags.port
	}
	if flags.Changed("baud") {
		cfg.Device.Baud = a.flags.baud
	}
	if flags.Changed("reset-pin") {
		cfg.Device.ResetPin = a.flags.resetPin
	}
	if flags.Changed("reset-mode") {
		cfg.Device.ResetMode = a.flags.resetMode
	}
	if flags.Changed("debug") {
		cfg.Log.Debug = a.flags.debug
	}
	if flags.Changed("log-dir") {
		cfg.Log.Dir = a.flags.logDir
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	if cfg.Log.Debug {
		ucam.SetDebugEnabled(true)
	}
	if cfg.Log.Dir != "" {
		path, err := ucam.InitSessionLog(cfg.Log.Dir)
		if err != nil {
			return err
		}
		ucam.Debugf("session log %s", path)
	}
	return nil
}

// deviceOptions builds the session options, opening the reset pin when one
// is configured.
func (a *app) deviceOptions() ([]ucam.Option, error) {
	opts, err := a.cfg.DeviceOptions()
	if err != nil {
		return nil, err
	}
	if a.cfg.Device.ResetPin != "" {
		pin, err := a.openResetPin(a.cfg.Device.ResetPin, a.cfg.ResetMode())
		if err != nil {
			return nil, fmt.Errorf("failed to open reset pin: %w", err)
		}
		opts = append(opts, ucam.WithResetPin(pin))
	}
	return append(opts, a.extraOptions...), nil
}

// connect opens the camera and runs the full bring-up with retries.
func (a *app) connect(ctx context.Context) (*ucam.Device, error) {
	opts, err := a.deviceOptions()
	if err != nil {
		return nil, err
	}
	device, err := ucam.ConnectDevice(ctx, a.cfg.Device.Port,
		ucam.WithTransportFactory(a.openTransport),
		ucam.WithConnectBaudRate(a.cfg.Device.Baud),
		ucam.WithConnectionRetries(a.cfg.Device.Retries),
		ucam.WithDeviceOptions(opts...))
	if err != nil {
		return nil, describe(err)
	}
	return device, nil
}

func (a *app) printf(format string, args ...any) {
	a.fprintf(a.out, format, args...)
}

func (*app) fprintf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

// describe appends the wire trace to protocol failures.
func describe(err error) error {
	if te := ucam.GetTrace(err); te != nil && len(te.Trace) > 0 {
		return fmt.Errorf("%w\n%s", err, te.FormatTrace())
	}
	return err
}
