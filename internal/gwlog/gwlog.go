// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

// Package gwlog is the gateway's logging surface. It deliberately stays on
// top of the standard "log" package, printing timestamped lines the same
// way the rate-limiter demo does ("[%s] ...", time.Now().Format(time.RFC3339)),
// gated by a verbosity level read from the PINGSIX_LOG environment variable.
package gwlog

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Level is a logging verbosity level, ordered from most to least verbose.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var current atomic.Int32

func init() {
	current.Store(int32(levelFromString(os.Getenv("PINGSIX_LOG"))))
}

func levelFromString(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "info", "":
		return LevelInfo
	default:
		return LevelInfo
	}
}

// SetLevel overrides the process-wide log level (e.g. from a -log-level flag).
func SetLevel(l Level) { current.Store(int32(l)) }

func enabled(l Level) bool { return l >= Level(current.Load()) }

func logf(l Level, format string, args ...interface{}) {
	if !enabled(l) {
		return
	}
	ts := time.Now().Format(time.RFC3339)
	msg := fmt.Sprintf(format, args...)
	log.Printf("[%s] %-5s %s", ts, l, msg)
}

func Debugf(format string, args ...interface{}) { logf(LevelDebug, format, args...) }
func Infof(format string, args ...interface{})  { logf(LevelInfo, format, args...) }
func Warnf(format string, args ...interface{})  { logf(LevelWarn, format, args...) }
func Errorf(format string, args ...interface{}) { logf(LevelError, format, args...) }

// Fatalf logs at error level and terminates the process, mirroring log.Fatalf
// in cmd/ratelimiter-api/main.go.
func Fatalf(format string, args ...interface{}) {
	logf(LevelError, format, args...)
	os.Exit(1)
}
