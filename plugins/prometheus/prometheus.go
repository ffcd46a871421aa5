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

// Package prometheus implements the prometheus plugin: it stamps the
// per-route requests_total counter on the shared internal/metrics
// registry during the logging phase, so it counts every request exactly
// once regardless of which phase short-circuited it (spec.md §9
// "observability/logging (~399-500)").
package prometheus

import (
	"strconv"

	"pingsix/internal/metrics"
	"pingsix/pkg/plugin"
	"pingsix/pkg/reqctx"
)

const Name = "prometheus"
const Priority = 500

func init() {
	plugin.Global().Register(Name, New)
}

// Default is set once by cmd/pingsix at startup to the process-wide
// metrics registry; plugin factories run before that wiring exists, so
// instances resolve it lazily on first use rather than at construction.
var Default *metrics.Registry

type prom struct {
	plugin.Base
}

func New(map[string]interface{}) (plugin.Plugin, error) {
	return &prom{Base: plugin.Base{PluginName: Name, PluginPriority: Priority}}, nil
}

func (p *prom) Logging(ctx *reqctx.Context) {
	if Default == nil {
		return
	}
	status := ctx.StatusCode
	if status == 0 {
		status = 200
	}
	Default.RequestsTotal.WithLabelValues(ctx.RouteID, strconv.Itoa(status)).Inc()
	Default.RequestDuration.WithLabelValues(ctx.RouteID).Observe(ctx.Elapsed().Seconds())
}
