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

package upstream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"pingsix/internal/gwerr"
	"pingsix/pkg/upstream/lb"
)

// Peer is the resolved backend a request will be proxied to: the dial
// address, the scheme to speak, and the Host header to present (spec.md
// §4.3 "pass_host").
type Peer struct {
	Addr         string
	TLS          bool
	SNI          string
	ForwardedFor string
}

// HealthState is read by the shared health-check scheduler and by
// Runtime.Select to exclude unhealthy nodes (spec.md CORE subsystem 3).
type HealthState struct {
	mu      sync.RWMutex
	healthy map[string]bool
}

func NewHealthState() *HealthState { return &HealthState{healthy: make(map[string]bool)} }

func (h *HealthState) Set(addr string, healthy bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.healthy[addr] = healthy
}

func (h *HealthState) IsHealthy(addr string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	healthy, known := h.healthy[addr]
	return !known || healthy // unknown (no active check configured) = healthy
}

// Runtime is the live, discovery-backed selection unit for one Upstream
// entity: it re-resolves its node set on a timer, filters out nodes the
// shared health checker has marked down, and selects one node per request
// via the configured lb.Selector.
type Runtime struct {
	ID        string
	Scheme    string
	PassHost  string
	HostValue string
	Retries   int
	RetryTO   time.Duration

	discovery *Discovery
	selector  lb.Selector
	health    *HealthState

	nodes atomic.Pointer[[]lb.Node]

	stop chan struct{}
	once sync.Once
}

// NewRuntime builds a Runtime and performs its first synchronous
// discovery pass so Select works immediately after construction.
func NewRuntime(id, selectionType, scheme, passHost, hostValue string, retries int, retryTimeout time.Duration, discovery *Discovery, health *HealthState) *Runtime {
	r := &Runtime{
		ID:        id,
		Scheme:    scheme,
		PassHost:  passHost,
		HostValue: hostValue,
		Retries:   retries,
		RetryTO:   retryTimeout,
		discovery: discovery,
		selector:  lb.ForType(selectionType),
		health:    health,
		stop:      make(chan struct{}),
	}
	initial := discovery.Discover(context.Background())
	r.nodes.Store(&initial)
	return r
}

// StartRefresh launches the periodic re-discovery loop for upstreams
// with DNS-backed nodes; static-only upstreams never need it.
func (r *Runtime) StartRefresh(ctx context.Context) {
	if !r.discovery.HasDynamicNodes() {
		return
	}
	go func() {
		ticker := time.NewTicker(RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.C:
				nodes := r.discovery.Discover(ctx)
				r.nodes.Store(&nodes)
			}
		}
	}()
}

// Stop halts the refresh loop, idempotently.
func (r *Runtime) Stop() {
	r.once.Do(func() { close(r.stop) })
}

// Select resolves a request's Peer, excluding nodes the health checker
// has marked unhealthy. Returns a gwerr.KindUpstreamSelection error when
// no healthy node remains.
func (r *Runtime) Select(key string) (Peer, error) {
	all := *r.nodes.Load()
	healthy := make([]lb.Node, 0, len(all))
	for _, n := range all {
		if r.health == nil || r.health.IsHealthy(n.Addr) {
			healthy = append(healthy, n)
		}
	}
	node, ok := r.selector.Select(key, healthy)
	if !ok {
		return Peer{}, gwerr.New(gwerr.KindUpstreamSelection, 502, "no healthy upstream node for "+r.ID)
	}
	return r.peerFor(node), nil
}

func (r *Runtime) peerFor(n lb.Node) Peer {
	p := Peer{Addr: n.Addr, TLS: r.Scheme == "https"}
	switch r.PassHost {
	case "rewrite":
		p.ForwardedFor = r.HostValue
	case "rewrite_selected":
		p.ForwardedFor = n.Addr
	default:
		p.ForwardedFor = ""
	}
	return p
}

// Nodes returns the current resolved node set, for the health-check
// scheduler's registration pass.
func (r *Runtime) Nodes() []lb.Node { return *r.nodes.Load() }
