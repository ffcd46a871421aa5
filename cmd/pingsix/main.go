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

// Package main is the pingsix gateway entry point: a single binary that
// loads a config file, wires the dynamic config plane, plugin registry,
// upstream/cache/healthcheck subsystems and the SNI terminator into one
// proxy.Gateway, and serves it until signaled to stop.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pingsix/internal/gwlog"
)

var (
	confPath string
	daemon   bool
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "pingsix",
	Short: "pingsix is an L7 HTTP/HTTPS reverse proxy and API gateway",
	RunE:  runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&confPath, "conf", "c", "conf/pingsix.yaml", "path to the process config file")
	rootCmd.PersistentFlags().BoolVarP(&daemon, "daemon", "d", false, "run detached in the background")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug|info|warn|error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func applyLogLevel() {
	if logLevel == "" {
		return
	}
	switch logLevel {
	case "debug":
		gwlog.SetLevel(gwlog.LevelDebug)
	case "info":
		gwlog.SetLevel(gwlog.LevelInfo)
	case "warn", "warning":
		gwlog.SetLevel(gwlog.LevelWarn)
	case "error":
		gwlog.SetLevel(gwlog.LevelError)
	default:
		gwlog.Warnf("main: unknown log level %q, keeping configured default", logLevel)
	}
}
