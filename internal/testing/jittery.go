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

package testing

import (
	"math/rand/v2"
)

// ByteTransport is the byte-level link shape shared by the simulator and
// the driver's transports.
type ByteTransport interface {
	Write(data []byte) (int, error)
	Available() (int, error)
	ReadByte() (byte, error)
	Close() error
}

// JitterConfig configures the behavior of JitteryTransport.
type JitterConfig struct {
	// Seed makes fragmentation reproducible; zero picks a random seed.
	Seed uint64
	// FragmentMinBytes is the fewest bytes reported available at once.
	FragmentMinBytes int
	// StallPolls makes every n-th Available call report nothing.
	StallPolls int
	// FragmentReads limits Available to a random fragment of what is queued.
	FragmentReads bool
}

// DefaultJitterConfig returns a sensible default configuration for testing.
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{
		FragmentReads:    true,
		FragmentMinBytes: 1,
		StallPolls:       3,
	}
}

// JitteryTransport wraps a ByteTransport to simulate a USB-UART bridge that
// delivers bytes in uneven bursts with idle gaps. Only the available count
// is distorted; bytes are never lost or reordered.
type JitteryTransport struct {
	backend ByteTransport
	rng     *rand.Rand
	config  JitterConfig
	granted int
	polls   int
}

// NewJitteryTransport wraps backend with jitter simulation.
func NewJitteryTransport(backend ByteTransport, config JitterConfig) *JitteryTransport {
	var rng *rand.Rand
	if config.Seed != 0 {
		rng = rand.New(rand.NewPCG(config.Seed, config.Seed^0xDEADBEEF)) //nolint:gosec // Test code, not crypto
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // Test code, not crypto
	}

	if config.FragmentMinBytes < 1 {
		config.FragmentMinBytes = 1
	}

	return &JitteryTransport{
		backend: backend,
		config:  config,
		rng:     rng,
	}
}

// Write passes writes through to the backend without modification.
func (j *JitteryTransport) Write(data []byte) (int, error) {
	return j.backend.Write(data) //nolint:wrapcheck // Pass-through wrapper
}

// Available reports a fragment of the backend's queued bytes.
func (j *JitteryTransport) Available() (int, error) {
	j.polls++
	if j.granted > 0 {
		return j.granted, nil
	}
	if j.config.StallPolls > 0 && j.polls%j.config.StallPolls == 0 {
		return 0, nil
	}

	n, err := j.backend.Available()
	if err != nil || n == 0 {
		return n, err //nolint:wrapcheck // Pass-through wrapper
	}

	if j.config.FragmentReads && n > j.config.FragmentMinBytes {
		n = j.config.FragmentMinBytes + j.rng.IntN(n-j.config.FragmentMinBytes+1)
	}
	j.granted = n
	return n, nil
}

// ReadByte reads from the backend, consuming the granted fragment.
func (j *JitteryTransport) ReadByte() (byte, error) {
	if j.granted > 0 {
		j.granted--
	}
	return j.backend.ReadByte() //nolint:wrapcheck // Pass-through wrapper
}

// Close closes the backend.
func (j *JitteryTransport) Close() error {
	return j.backend.Close() //nolint:wrapcheck // Pass-through wrapper
}
