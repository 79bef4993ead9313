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

	"github.com/spf13/cobra"

	"github.com/rapidcdh/go-ucam"
)

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reset the camera and run the SYNC handshake",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSync(cmd.Context())
		},
	}
}

// runSync performs a single handshake without configuring the camera.
func (a *app) runSync(ctx context.Context) error {
	opts, err := a.deviceOptions()
	if err != nil {
		return err
	}

	transport, err := a.openTransport(a.cfg.Device.Port, a.cfg.Device.Baud)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", a.cfg.Device.Port, err)
	}

	opts = append([]ucam.Option{ucam.WithPortName(a.cfg.Device.Port), ucam.WithBaudRate(a.cfg.Device.Baud)}, opts...)
	device, err := ucam.New(transport, opts...)
	if err != nil {
		_ = transport.Close()
		return err
	}
	defer func() { _ = device.Close() }()

	attempts, err := device.Synchronize(ctx)
	if err != nil {
		return describe(err)
	}
	a.printf("Synchronized with %s after %d attempt(s)\n", a.cfg.Device.Port, attempts)
	return nil
}
