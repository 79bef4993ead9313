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
	"fmt"
	"io"
	"os"

	"github.com/rapidcdh/go-ucam/internal/syncutil"
	"github.com/rs/zerolog"
)

var (
	logMu        syncutil.RWMutex
	debugEnabled bool
	console      io.Writer = os.Stderr
	logger                 = zerolog.Nop()
)

func init() {
	// Enable debug logging if UCAM_DEBUG or DEBUG is set
	if os.Getenv("UCAM_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
	rebuildLogger()
}

// rebuildLogger must be called with logMu held for writing (or from init).
func rebuildLogger() {
	var writers []io.Writer
	if debugEnabled {
		writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05.000"})
	}
	if sessionLogWriter != nil {
		writers = append(writers, sessionLogWriter)
	}
	if len(writers) == 0 {
		logger = zerolog.Nop()
		return
	}
	logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(zerolog.DebugLevel).
		With().Timestamp().Str("component", "ucam").
		Logger()
}

func currentLogger() *zerolog.Logger {
	logMu.RLock()
	l := logger
	logMu.RUnlock()
	return &l
}

// Debugf prints debug information.
// Always writes to the session log file (if initialized); only prints to the
// console when debug mode is enabled.
func Debugf(format string, args ...any) {
	currentLogger().Debug().Msgf(format, args...)
}

// Debugln prints debug information, formatting args like fmt.Sprint.
func Debugln(args ...any) {
	currentLogger().Debug().Msg(fmt.Sprint(args...))
}

// SetDebugEnabled allows programmatic control of console debug logging.
func SetDebugEnabled(enabled bool) {
	logMu.Lock()
	debugEnabled = enabled
	rebuildLogger()
	logMu.Unlock()
}

// SetConsoleOutput redirects console debug output. Passing nil restores
// stderr.
func SetConsoleOutput(w io.Writer) {
	logMu.Lock()
	if w == nil {
		w = os.Stderr
	}
	console = w
	rebuildLogger()
	logMu.Unlock()
}
