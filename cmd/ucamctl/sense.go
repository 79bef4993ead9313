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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rapidcdh/go-ucam/sensor/ads7828"
	"github.com/rapidcdh/go-ucam/sensor/ina260"
	"github.com/rapidcdh/go-ucam/sensor/thermal"
)

type senseFlags struct {
	verify bool
	rtd    bool
}

func newSenseCmd(a *app) *cobra.Command {
	var f senseFlags
	cmd := &cobra.Command{
		Use:   "sense",
		Short: "Read camera supply power and board temperature",
		Long: `Read the INA260 on the camera supply rail and the TMP36 behind the
ADS7828. With --rtd the INA260 rail is treated as the excitation of a PT1000
and its temperature is printed as well.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.runSense(&f)
		},
	}

	fl := cmd.Flags()
	fl.BoolVar(&f.verify, "verify", false, "Check the INA260 manufacturer id first")
	fl.BoolVar(&f.rtd, "rtd", false, "Derive a PT1000 temperature from the INA260 reading")
	return cmd
}

func (a *app) runSense(f *senseFlags) (err error) {
	s := a.cfg.Sensors
	bus, err := a.openBus(s.Bus)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := bus.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	power := ina260.New(bus.Dev(s.INA260Addr))
	if f.verify {
		if err := power.Verify(); err != nil {
			return err
		}
	}
	m, err := power.Sense()
	if err != nil {
		return err
	}
	a.printf("supply:  %s  %s  %s\n", m.Voltage, m.Current, m.Power)

	adc := ads7828.New(bus.Dev(ads7828.Addr(s.ADS7828A1, s.ADS7828A0)), a.cfg.ADS7828Reference())
	v, err := adc.ReadSingleEnded(s.TMP36Channel)
	if err != nil {
		return err
	}
	a.printf("board:   %s (%s on CH%d)\n", thermal.TMP36(v), v, s.TMP36Channel)

	if f.rtd {
		r, err := thermal.Resistance(m.Voltage, m.Current)
		if err != nil {
			return fmt.Errorf("rtd: %w", err)
		}
		a.printf("rtd:     %s (%s)\n", thermal.PT1000(r), r)
	}
	return nil
}
