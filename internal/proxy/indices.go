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

package proxy

import (
	"context"

	"pingsix/internal/config"
	"pingsix/internal/healthcheck"
	"pingsix/pkg/plugin"
	"pingsix/pkg/router"
	"pingsix/pkg/upstream"
)

// indices is the full set of derived, request-path structures built
// off-line from one config.Snapshot and published behind a single atomic
// pointer (spec.md §9 "Shared-ownership and hot-swap of indices"):
// bundling them together means a reader either sees all of them from
// snapshot Sn or all of them from Sn+1, never a mix.
type indices struct {
	snapshot *config.Snapshot
	router   *router.Router
	global   *plugin.Executor
	chains   *plugin.Cache

	// runtimes is keyed by the *config.Upstream pointer, not its ID: since
	// config.Snapshot.Clone keeps the same pointer for an entity untouched
	// by a reload, pointer identity doubles as the "structurally unchanged"
	// signal (spec.md §4.5 "reuse or rebuild") without a deep-equal pass.
	runtimes map[*config.Upstream]*upstream.Runtime
}

// buildIndices constructs a fresh indices value from next, reusing runtime
// objects (and therefore their health-check registrations and discovery
// refresh loops) from prev wherever the *config.Upstream pointer is
// unchanged.
func buildIndices(prev *indices, next *config.Snapshot, registry *plugin.Registry, health *upstream.HealthState, scheduler *healthcheck.Scheduler) *indices {
	rb := router.NewBuilder()
	for _, r := range next.EffectiveRoutes() {
		rb.Add(r)
	}

	globalSources := make([]plugin.ConfigSource, 0, len(next.GlobalRules))
	for _, g := range next.GlobalRules {
		globalSources = append(globalSources, g)
	}
	global, err := plugin.BuildGlobal(registry, globalSources)
	if err != nil {
		global = plugin.Empty
	}

	runtimes := make(map[*config.Upstream]*upstream.Runtime, len(next.Upstreams))
	for _, u := range next.Upstreams {
		if prev != nil {
			if rt, ok := prev.runtimes[u]; ok {
				runtimes[u] = rt
				continue
			}
		}
		rt := upstream.NewRuntimeForUpstream(u, health)
		rt.StartRefresh(context.Background())
		scheduler.Register(u, rt.Nodes(), health)
		runtimes[u] = rt
	}
	if prev != nil {
		for u, rt := range prev.runtimes {
			if _, stillPresent := runtimes[u]; !stillPresent {
				rt.Stop()
				scheduler.Unregister(u.ID)
			}
		}
	}

	return &indices{
		snapshot: next,
		router:   rb.Build(),
		global:   global,
		chains:   plugin.NewCache(),
		runtimes: runtimes,
	}
}

// resolveUpstream follows the precedence inline > upstream_id > service_id
// (spec.md §9), honoring a traffic-split override id when overrideID is
// non-empty.
func (ix *indices) resolveUpstream(route *config.Route, overrideID string) *config.Upstream {
	if overrideID != "" {
		if u, ok := ix.snapshot.Upstreams[overrideID]; ok {
			return u
		}
	}
	return ix.snapshot.ResolveUpstream(route)
}

// runtimeFor returns the live Runtime for an upstream entity, building one
// on the fly for an inline upstream that carries no stable pointer identity
// across requests other than its own value (inline upstreams are rare and
// not worth caching indefinitely; the common path is an id-addressed,
// cached Runtime built at reload time).
func (ix *indices) runtimeFor(u *config.Upstream, health *upstream.HealthState) *upstream.Runtime {
	if rt, ok := ix.runtimes[u]; ok {
		return rt
	}
	return upstream.NewRuntimeForUpstream(u, health)
}
