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
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/rapidcdh/go-ucam/detection"
)

type portsFlags struct {
	probe   bool
	timeout time.Duration
	ignore  []string
}

func newPortsCmd(a *app) *cobra.Command {
	var f portsFlags
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports that may have a camera attached",
		Long: `List serial ports ranked by how likely they carry a camera. With --probe
each port is opened and a SYNC handshake is attempted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPorts(cmd.Context(), &f)
		},
	}

	fl := cmd.Flags()
	fl.BoolVar(&f.probe, "probe", false, "Attempt a SYNC handshake on each port")
	fl.DurationVar(&f.timeout, "probe-timeout", 2*time.Second, "Handshake timeout per port")
	fl.StringSliceVar(&f.ignore, "ignore", nil, "Ports to skip")
	return cmd
}

func (a *app) runPorts(ctx context.Context, f *portsFlags) error {
	opts := detection.DefaultOptions()
	opts.IgnorePaths = f.ignore
	opts.ProbeTimeout = f.timeout
	opts.ProbeBaud = a.cfg.Device.Baud
	if a.cfg.Timing.SyncAttempts > 0 {
		opts.ProbeAttempts = a.cfg.Timing.SyncAttempts
	}
	if f.probe {
		opts.Mode = detection.Probe
	}

	devices, err := a.detect(ctx, &opts)
	if errors.Is(err, detection.ErrNoDevicesFound) {
		a.printf("No serial ports found\n")
		return nil
	}
	if err != nil {
		return err
	}

	for _, d := range devices {
		a.printf("%s\n", d)
		keys := make([]string, 0, len(d.Metadata))
		for k := range d.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			a.printf("  %s: %s\n", k, d.Metadata[k])
		}
	}
	a.printf("%d port(s)\n", len(devices))
	return nil
}
