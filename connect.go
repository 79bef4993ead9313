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
)

// TransportFactory opens a transport for a device path at a baud rate.
type TransportFactory func(path string, baud uint32) (Transport, error)

// ConnectOption represents a functional option for ConnectDevice
type ConnectOption func(*connectConfig) error

type connectConfig struct {
	transportFactory  TransportFactory
	deviceOptions     []Option
	retry             *RetryConfig
	baudRate          uint32
	connectionRetries int
}

// WithTransportFactory sets the transport factory function
func WithTransportFactory(factory TransportFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportFactory = factory
		return nil
	}
}

// WithDeviceOptions adds device-level options
func WithDeviceOptions(opts ...Option) ConnectOption {
	return func(c *connectConfig) error {
		c.deviceOptions = append(c.deviceOptions, opts...)
		return nil
	}
}

// WithConnectBaudRate sets the rate the transport is opened at.
func WithConnectBaudRate(rate uint32) ConnectOption {
	return func(c *connectConfig) error {
		if rate == 0 {
			return fmt.Errorf("%w: baud rate must be positive", ErrInvalidParameter)
		}
		c.baudRate = rate
		return nil
	}
}

// WithConnectionRetries sets the number of session bring-up attempts
func WithConnectionRetries(maxAttempts int) ConnectOption {
	return func(c *connectConfig) error {
		if maxAttempts < 1 {
			return fmt.Errorf("connection retries must be at least 1, got %d", maxAttempts)
		}
		c.connectionRetries = maxAttempts
		return nil
	}
}

// WithRetryConfig replaces the backoff policy between bring-up attempts.
func WithRetryConfig(cfg *RetryConfig) ConnectOption {
	return func(c *connectConfig) error {
		c.retry = cfg
		return nil
	}
}

func applyConnectOptions(opts []ConnectOption) (*connectConfig, error) {
	config := &connectConfig{
		baudRate:          DefaultBaudRate,
		connectionRetries: DefaultConnectionRetries,
	}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply connect option: %w", err)
		}
	}

	return config, nil
}

// ConnectDevice opens the transport at path and brings the camera up to the
// configured state. A failed bring-up is retried while the error is
// retryable; the transport is closed if every attempt fails.
//
// Example usage:
//
//	device, err := ucam.ConnectDevice(ctx, "/dev/ttyUSB0",
//	    ucam.WithTransportFactory(uartFactory),
//	    ucam.WithDeviceOptions(ucam.WithResetPin(pin)))
func ConnectDevice(ctx context.Context, path string, opts ...ConnectOption) (*Device, error) {
	config, err := applyConnectOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to apply connect options: %w", err)
	}

	if config.transportFactory == nil {
		return nil, errors.New("transport factory not provided")
	}

	transport, err := config.transportFactory(path, config.baudRate)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport for path %s: %w", path, err)
	}

	device, err := setupDeviceWithRetry(ctx, transport, path, config)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}

	return device, nil
}

func setupDeviceWithRetry(ctx context.Context, transport Transport, path string, config *connectConfig) (*Device, error) {
	retryConfig := DefaultRetryConfig()
	if config.retry != nil {
		c := *config.retry
		retryConfig = &c
	}
	retryConfig.MaxAttempts = config.connectionRetries

	opts := append([]Option{WithPortName(path), WithBaudRate(config.baudRate)}, config.deviceOptions...)
	device, err := New(transport, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	err = RetryWithConfig(ctx, retryConfig, device.Init)
	if err != nil {
		return nil, fmt.Errorf("failed to setup device after %d attempts: %w", config.connectionRetries, err)
	}

	return device, nil
}
