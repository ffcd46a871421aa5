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

// Package plugin defines the plugin pipeline contract: phases, the
// registry mapping a plugin name to a configured instance, and the
// priority-ordered executor that runs instances within a phase (spec.md
// §4.2 "Plugin pipeline").
package plugin

import "pingsix/pkg/reqctx"

// Phase identifies one of the six points in the request lifecycle a
// plugin may hook (spec.md §4.2 "Phases").
type Phase int

const (
	PhaseEarlyRequestFilter Phase = iota
	PhaseRequestFilter
	PhaseUpstreamRequestFilter
	PhaseResponseFilter
	PhaseResponseBodyFilter
	PhaseLogging
)

func (p Phase) String() string {
	switch p {
	case PhaseEarlyRequestFilter:
		return "early_request_filter"
	case PhaseRequestFilter:
		return "request_filter"
	case PhaseUpstreamRequestFilter:
		return "upstream_request_filter"
	case PhaseResponseFilter:
		return "response_filter"
	case PhaseResponseBodyFilter:
		return "response_body_filter"
	case PhaseLogging:
		return "logging"
	default:
		return "unknown"
	}
}

// Plugin is a configured, stateless-between-requests plugin instance. Any
// hook it doesn't implement is a no-op; concrete plugins embed Base to get
// no-op defaults for free and override only what they need.
type Plugin interface {
	// Name is the plugin's registry name, used for ordering ties and
	// logging.
	Name() string
	// Priority controls run order within a phase: higher runs first
	// (spec.md §4.2 "Ordering": "descending priority, ties broken by
	// plugin name ascending").
	Priority() int

	EarlyRequestFilter(ctx *reqctx.Context) error
	RequestFilter(ctx *reqctx.Context) error
	UpstreamRequestFilter(ctx *reqctx.Context) error
	ResponseFilter(ctx *reqctx.Context) error
	// ResponseBodyFilter transforms one body chunk. A nil chunk (as
	// opposed to a non-nil empty slice) signals end-of-stream, so a
	// stateful filter (e.g. a streaming compressor) knows to flush and
	// close; its return value on that final call is the trailing bytes
	// to emit, if any.
	ResponseBodyFilter(ctx *reqctx.Context, chunk []byte) ([]byte, error)
	Logging(ctx *reqctx.Context)
}

// Base gives concrete plugins no-op defaults for every hook, so a plugin
// that only cares about request_filter need not implement the rest.
type Base struct {
	PluginName     string
	PluginPriority int
}

func (b Base) Name() string  { return b.PluginName }
func (b Base) Priority() int { return b.PluginPriority }

func (Base) EarlyRequestFilter(*reqctx.Context) error { return nil }
func (Base) RequestFilter(*reqctx.Context) error      { return nil }
func (Base) UpstreamRequestFilter(*reqctx.Context) error { return nil }
func (Base) ResponseFilter(*reqctx.Context) error        { return nil }
func (Base) ResponseBodyFilter(_ *reqctx.Context, chunk []byte) ([]byte, error) {
	return chunk, nil
}
func (Base) Logging(*reqctx.Context) {}

// Factory builds a Plugin instance from its decoded configuration
// document. Factories are pure: the same config always yields an
// equivalent instance, so built instances can be cached per (route,
// service) pair (spec.md §4.2 "Chain construction and caching").
type Factory func(config map[string]interface{}) (Plugin, error)
