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

// Package detection finds serial ports a uCAM-III is likely attached to.
package detection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"

	"github.com/rapidcdh/go-ucam"
	"github.com/rapidcdh/go-ucam/transport/uart"
)

// Mode controls how aggressively ports are examined.
type Mode int

const (
	// Passive lists ports without opening them.
	Passive Mode = iota
	// Probe opens each candidate and attempts a short SYNC handshake.
	Probe
)

// Confidence ranks how likely a port is to have a camera attached.
type Confidence int

const (
	Low Confidence = iota
	Medium
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// DeviceInfo describes one candidate port.
type DeviceInfo struct {
	Metadata   map[string]string
	Path       string
	Name       string
	Confidence Confidence
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("serial port %s (confidence: %s)", d.Path, d.Confidence)
}

// Options configures Detect.
type Options struct {
	Blocklist   []string
	IgnorePaths []string
	// ProbeTimeout bounds the handshake on each port in Probe mode.
	ProbeTimeout time.Duration
	// ProbeBaud is the rate ports are opened at for probing.
	ProbeBaud uint32
	// ProbeAttempts is the SYNC attempt budget per port in Probe mode.
	ProbeAttempts int
	Mode          Mode
}

// DefaultOptions returns passive detection with the default blocklist.
func DefaultOptions() Options {
	return Options{
		Mode:          Passive,
		Blocklist:     DefaultBlocklist(),
		ProbeTimeout:  2 * time.Second,
		ProbeBaud:     ucam.DefaultBaudRate,
		ProbeAttempts: 25,
	}
}

// ErrNoDevicesFound is returned when no port survives filtering.
var ErrNoDevicesFound = errors.New("no serial ports found")

// Indirections for tests.
var (
	listPortsFn   = enumerator.GetDetailedPortsList
	probeDeviceFn = probeDevice
)

// Detect enumerates serial ports and ranks them. Results are ordered by
// confidence, highest first, then by path.
func Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	ports, err := listPortsFn()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var devices []DeviceInfo
	for _, port := range ports {
		select {
		case <-ctx.Done():
			return devices, ctx.Err()
		default:
		}

		if device, ok := processPort(ctx, port, opts); ok {
			devices = append(devices, device)
		}
	}

	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}

	sort.SliceStable(devices, func(i, j int) bool {
		if devices[i].Confidence != devices[j].Confidence {
			return devices[i].Confidence > devices[j].Confidence
		}
		return devices[i].Path < devices[j].Path
	})
	return devices, nil
}

func processPort(ctx context.Context, port *enumerator.PortDetails, opts *Options) (DeviceInfo, bool) {
	vidpid := ""
	if port.IsUSB && port.VID != "" {
		vidpid = strings.ToUpper(port.VID + ":" + port.PID)
	}
	if vidpid != "" && IsBlocked(vidpid, opts.Blocklist) {
		return DeviceInfo{}, false
	}
	if IsPathIgnored(port.Name, opts.IgnorePaths) {
		return DeviceInfo{}, false
	}

	device := DeviceInfo{
		Path:       port.Name,
		Name:       port.Product,
		Confidence: Low,
		Metadata:   make(map[string]string),
	}
	if device.Name == "" {
		device.Name = port.Name
	}
	if vidpid != "" {
		device.Metadata["vidpid"] = vidpid
	}
	if port.SerialNumber != "" {
		device.Metadata["serial"] = port.SerialNumber
	}
	if port.Product != "" {
		device.Metadata["product"] = port.Product
	}
	if isLikelyCameraAdapter(vidpid, port.Product) {
		device.Confidence = Medium
	}

	if opts.Mode == Probe {
		if !probeDeviceFn(ctx, port.Name, opts) {
			return DeviceInfo{}, false
		}
		device.Confidence = High
	}
	return device, true
}

// isLikelyCameraAdapter reports whether the port belongs to a USB-UART
// bridge commonly used with the camera's programming cable.
func isLikelyCameraAdapter(vidpid, product string) bool {
	known := []string{
		"0403:6001", // FTDI FT232R
		"0403:6015", // FTDI FT231X
		"10C4:EA60", // Silicon Labs CP210x (4D Systems uUSB-PA5)
		"1A86:7523", // QinHeng CH340
		"067B:2303", // Prolific PL2303
	}
	for _, k := range known {
		if vidpid == k {
			return true
		}
	}

	lower := strings.ToLower(product)
	for _, keyword := range []string{"4d systems", "ucam", "upa5", "pa5"} {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// probeDevice opens path and tries a short SYNC handshake. A single
// attempt is made per port.
func probeDevice(ctx context.Context, path string, opts *Options) bool {
	transport, err := uart.New(path, int(opts.ProbeBaud))
	if err != nil {
		ucam.Debugf("probe %s: %v", path, err)
		return false
	}

	cfg := ucam.DefaultDeviceConfig()
	if opts.ProbeAttempts > 0 {
		cfg.SyncAttempts = opts.ProbeAttempts
	}
	device, err := ucam.New(transport, ucam.WithConfig(cfg))
	if err != nil {
		_ = transport.Close()
		return false
	}
	defer func() { _ = device.Close() }()

	probeCtx, cancel := context.WithTimeout(ctx, opts.ProbeTimeout)
	defer cancel()

	attempts, err := device.Synchronize(probeCtx)
	if err != nil {
		ucam.Debugf("probe %s: %v", path, err)
		return false
	}
	ucam.Debugf("probe %s: synchronized after %d attempts", path, attempts)
	return true
}
