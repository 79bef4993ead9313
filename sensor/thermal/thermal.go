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

// Package thermal converts analog sensor outputs to temperature.
package thermal

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// TMP36 transfer function.
const (
	TMP36Offset = 500 * physic.MilliVolt
	TMP36Slope  = 10 * physic.MilliVolt // per °C
)

// PT1000 parameters.
const (
	PT1000R0    = 1000 * physic.Ohm
	PT1000Alpha = 3850e-6 // per °C
)

// ErrNoCurrent is returned when a resistance cannot be derived.
var ErrNoCurrent = errors.New("no excitation current")

// TMP36 returns the temperature for a TMP36 output voltage.
func TMP36(v physic.ElectricPotential) physic.Temperature {
	// nanokelvin per nanovolt above the offset is Celsius/TMP36Slope
	return physic.ZeroCelsius + physic.Temperature(int64(v-TMP36Offset)*int64(physic.Celsius)/int64(TMP36Slope))
}

// PT1000 returns the temperature for a PT1000 RTD resistance using the
// linear approximation R = R0 * (1 + alpha*T).
func PT1000(r physic.ElectricResistance) physic.Temperature {
	celsius := (float64(r)/float64(PT1000R0) - 1) / PT1000Alpha
	return physic.ZeroCelsius + physic.Temperature(celsius*float64(physic.Celsius))
}

// Resistance derives a resistance from the voltage across it and the
// current through it.
func Resistance(v physic.ElectricPotential, i physic.ElectricCurrent) (physic.ElectricResistance, error) {
	if i == 0 {
		return 0, fmt.Errorf("resistance at %s: %w", v, ErrNoCurrent)
	}
	// nV / nA = Ω; scale to nΩ
	return physic.ElectricResistance(float64(v) / float64(i) * float64(physic.Ohm)), nil
}
