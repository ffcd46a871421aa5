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

package config

// Snapshot is the immutable, fully-resolved configuration set held behind
// an atomic pointer and swapped wholesale on reload (spec.md §3
// "Lifecycle", §9 "Shared-ownership and hot-swap of indices").
type Snapshot struct {
	Routes      map[string]*Route
	Services    map[string]*Service
	Upstreams   map[string]*Upstream
	GlobalRules map[string]*GlobalRule
	SSLCerts    map[string]*SSLCert
}

// NewEmptySnapshot returns a snapshot with no entities, the state a
// dynamic-config process starts in before its first successful list.
func NewEmptySnapshot() *Snapshot {
	return &Snapshot{
		Routes:      make(map[string]*Route),
		Services:    make(map[string]*Service),
		Upstreams:   make(map[string]*Upstream),
		GlobalRules: make(map[string]*GlobalRule),
		SSLCerts:    make(map[string]*SSLCert),
	}
}

// Clone makes a shallow copy of the snapshot's maps so a reload can mutate
// the copy while the previous snapshot keeps serving in-flight requests
// (spec.md §3 "Lifecycle": "A replaced entity continues to serve existing
// references until last reader drops it").
func (s *Snapshot) Clone() *Snapshot {
	c := NewEmptySnapshot()
	for k, v := range s.Routes {
		c.Routes[k] = v
	}
	for k, v := range s.Services {
		c.Services[k] = v
	}
	for k, v := range s.Upstreams {
		c.Upstreams[k] = v
	}
	for k, v := range s.GlobalRules {
		c.GlobalRules[k] = v
	}
	for k, v := range s.SSLCerts {
		c.SSLCerts[k] = v
	}
	return c
}

// ResolveUpstream follows the precedence inline > upstream_id > service_id
// (spec.md §9 "Cyclic relationships"): "inline > upstream_id > service_id.upstream".
func (s *Snapshot) ResolveUpstream(r *Route) *Upstream {
	if r.Upstream != nil {
		return r.Upstream
	}
	if r.UpstreamID != "" {
		return s.Upstreams[r.UpstreamID]
	}
	if r.ServiceID != "" {
		if svc, ok := s.Services[r.ServiceID]; ok {
			if svc.Upstream != nil {
				return svc.Upstream
			}
			if svc.UpstreamID != "" {
				return s.Upstreams[svc.UpstreamID]
			}
		}
	}
	return nil
}

// ResolveHosts returns the route's own hosts, falling back to its owning
// service's default host set when the route itself declares none.
func (s *Snapshot) ResolveHosts(r *Route) []string {
	if len(r.HostList) > 0 {
		return r.HostList
	}
	if r.ServiceID != "" {
		if svc, ok := s.Services[r.ServiceID]; ok {
			return svc.Hosts
		}
	}
	return nil
}

// EffectiveRoute wraps a *Route so router.Route sees hosts resolved
// through the owning service, without mutating the stored Route.
type EffectiveRoute struct {
	*Route
	hosts []string
}

func (e *EffectiveRoute) Hosts() []string { return e.hosts }

// EffectiveRoutes materializes every route with its resolved host set, for
// feeding into router.Builder.
func (s *Snapshot) EffectiveRoutes() []*EffectiveRoute {
	out := make([]*EffectiveRoute, 0, len(s.Routes))
	for _, r := range s.Routes {
		out = append(out, &EffectiveRoute{Route: r, hosts: s.ResolveHosts(r)})
	}
	return out
}
