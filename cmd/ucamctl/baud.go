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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rapidcdh/go-ucam"
)

func newBaudCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "baud",
		Short: "List supported baud rates and their divider bytes",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.runBaud()
		},
	}
}

func (a *app) runBaud() error {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	a.fprintf(w, "RATE\tFIRST\tSECOND\t\n")
	for _, rate := range ucam.SupportedBaudRates() {
		first, second, err := ucam.BaudDividers(rate)
		if err != nil {
			return err
		}
		a.fprintf(w, "%d\t0x%02X\t0x%02X\t\n", rate, first, second)
	}
	return w.Flush()
}
