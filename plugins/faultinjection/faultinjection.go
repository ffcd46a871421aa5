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

// Package faultinjection implements the fault-injection plugin: an
// abort (fixed status/body) or a delay, each gated by a percentage roll,
// for chaos testing of a route's resilience (spec.md §4 supplemented
// features from original_source/src/plugins).
package faultinjection

import (
	"math/rand"
	"time"

	"pingsix/pkg/plugin"
	"pingsix/pkg/reqctx"
)

const Name = "fault-injection"

// Priority runs this ahead of everything else in the request_filter
// chain so an aborted request never reaches auth or rate-limiting.
const Priority = 11000

func init() {
	plugin.Global().Register(Name, New)
}

type faultInjection struct {
	plugin.Base
	abortPercent int
	abortStatus  int
	abortBody    string
	delay        time.Duration
	delayPercent int
}

// New builds a fault-injection instance from {abort: {http_status,
// body, percentage}, delay: {duration_ms, percentage}}.
func New(cfg map[string]interface{}) (plugin.Plugin, error) {
	f := &faultInjection{Base: plugin.Base{PluginName: Name, PluginPriority: Priority}}
	if abort, ok := cfg["abort"].(map[string]interface{}); ok {
		f.abortStatus = plugin.CfgInt(abort, "http_status", 500)
		f.abortBody = plugin.CfgString(abort, "body", "")
		f.abortPercent = plugin.CfgInt(abort, "percentage", 100)
	}
	if delay, ok := cfg["delay"].(map[string]interface{}); ok {
		f.delay = time.Duration(plugin.CfgInt(delay, "duration_ms", 0)) * time.Millisecond
		f.delayPercent = plugin.CfgInt(delay, "percentage", 100)
	}
	return f, nil
}

func (f *faultInjection) RequestFilter(ctx *reqctx.Context) error {
	if f.delay > 0 && roll(f.delayPercent) {
		time.Sleep(f.delay)
	}
	if f.abortStatus != 0 && roll(f.abortPercent) {
		ctx.ResponseWriter.WriteHeader(f.abortStatus)
		if f.abortBody != "" {
			ctx.ResponseWriter.Write([]byte(f.abortBody))
		}
		ctx.ShortCircuited = true
		ctx.StatusCode = f.abortStatus
	}
	return nil
}

func roll(percent int) bool {
	if percent >= 100 {
		return true
	}
	if percent <= 0 {
		return false
	}
	return rand.Intn(100) < percent
}
