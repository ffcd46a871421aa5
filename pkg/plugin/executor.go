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

package plugin

import (
	"sort"

	"pingsix/pkg/reqctx"
)

// Executor is an immutable, priority-sorted list of plugin instances
// built once per (route, service) pair and reused across requests
// (spec.md §4.2 "Chain construction and caching").
type Executor struct {
	instances []Plugin
}

// NewExecutor sorts plugins by descending priority, breaking ties by name
// ascending for determinism (spec.md §4.2 "Ordering").
func NewExecutor(plugins []Plugin) *Executor {
	sorted := make([]Plugin, len(plugins))
	copy(sorted, plugins)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority() != sorted[j].Priority() {
			return sorted[i].Priority() > sorted[j].Priority()
		}
		return sorted[i].Name() < sorted[j].Name()
	})
	return &Executor{instances: sorted}
}

// Empty is the zero-plugin executor, used when a route/service/global
// rule carries no plugins at all.
var Empty = &Executor{}

// RunEarlyRequestFilter runs every instance's hook in order, stopping (but
// not erroring) the moment ctx.ShortCircuited is set by a prior plugin.
func (e *Executor) RunEarlyRequestFilter(ctx *reqctx.Context) error {
	return e.run(ctx, func(p Plugin, c *reqctx.Context) error { return p.EarlyRequestFilter(c) })
}

func (e *Executor) RunRequestFilter(ctx *reqctx.Context) error {
	return e.run(ctx, func(p Plugin, c *reqctx.Context) error { return p.RequestFilter(c) })
}

func (e *Executor) RunUpstreamRequestFilter(ctx *reqctx.Context) error {
	return e.run(ctx, func(p Plugin, c *reqctx.Context) error { return p.UpstreamRequestFilter(c) })
}

func (e *Executor) RunResponseFilter(ctx *reqctx.Context) error {
	return e.run(ctx, func(p Plugin, c *reqctx.Context) error { return p.ResponseFilter(c) })
}

// RunResponseBodyFilter threads chunk through every instance in order,
// letting each rewrite or pass it through unchanged.
func (e *Executor) RunResponseBodyFilter(ctx *reqctx.Context, chunk []byte) ([]byte, error) {
	for _, p := range e.instances {
		var err error
		chunk, err = p.ResponseBodyFilter(ctx, chunk)
		if err != nil {
			return nil, err
		}
	}
	return chunk, nil
}

// RunLogging runs every instance's logging hook unconditionally, even if
// the request short-circuited earlier (spec.md §4.2 "logging always
// runs").
func (e *Executor) RunLogging(ctx *reqctx.Context) {
	for _, p := range e.instances {
		p.Logging(ctx)
	}
}

func (e *Executor) run(ctx *reqctx.Context, hook func(Plugin, *reqctx.Context) error) error {
	for _, p := range e.instances {
		if ctx.ShortCircuited {
			return nil
		}
		if err := hook(p, ctx); err != nil {
			return err
		}
	}
	return nil
}
