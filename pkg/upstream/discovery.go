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

// Package upstream is the runtime backend-selection layer: hybrid
// (static address + DNS) discovery feeding a weighted node list, one of
// the four lb.Selector policies, and the retry contract around a single
// request attempt (spec.md CORE subsystem 3; grounded on
// original_source/src/proxy/discovery.rs's HybridDiscovery).
package upstream

import (
	"context"
	"net"
	"strconv"
	"time"

	"pingsix/pkg/upstream/lb"
)

// Node mirrors lb.Node plus the information the health checker and
// retry logic need per backend.
type Node = lb.Node

// staticNode is a literal address:port entry from the upstream's node
// map, used as-is with no resolution.
type staticNode struct {
	addr   string
	weight int
}

// dnsNode is a hostname:port entry resolved on every Discover call.
type dnsNode struct {
	host   string
	port   int
	weight int
}

// Discovery resolves an Upstream's configured nodes into a concrete,
// ordered Node list (spec.md §4.3 "Hybrid discovery": static entries used
// verbatim, hostnames re-resolved via DNS on every refresh).
type Discovery struct {
	statics []staticNode
	dnses   []dnsNode
	resolver *net.Resolver
}

// NewDiscovery classifies each "host:port" -> weight entry as a literal
// IP or a hostname requiring DNS resolution.
func NewDiscovery(nodes map[string]int, defaultPort int) *Discovery {
	d := &Discovery{resolver: net.DefaultResolver}
	for addr, weight := range nodes {
		host, portStr, err := net.SplitHostPort(addr)
		port := defaultPort
		if err == nil {
			if p, perr := strconv.Atoi(portStr); perr == nil {
				port = p
			}
		} else {
			host = addr
		}
		if net.ParseIP(host) != nil {
			d.statics = append(d.statics, staticNode{addr: net.JoinHostPort(host, strconv.Itoa(port)), weight: weight})
		} else {
			d.dnses = append(d.dnses, dnsNode{host: host, port: port, weight: weight})
		}
	}
	return d
}

// Discover resolves the full node set, re-querying DNS for hostname
// entries. A DNS lookup failure drops that entry rather than failing the
// whole discovery pass, so one bad hostname doesn't take the upstream
// down (spec.md §4.3 "Failure model").
func (d *Discovery) Discover(ctx context.Context) []Node {
	out := make([]Node, 0, len(d.statics)+len(d.dnses))
	for _, s := range d.statics {
		out = append(out, Node{Addr: s.addr, Weight: s.weight})
	}
	for _, dn := range d.dnses {
		ips, err := d.resolver.LookupIPAddr(ctx, dn.host)
		if err != nil {
			continue
		}
		for _, ip := range ips {
			out = append(out, Node{Addr: net.JoinHostPort(ip.IP.String(), strconv.Itoa(dn.port)), Weight: dn.weight})
		}
	}
	return out
}

// RefreshInterval is how often dynamic (DNS-backed) upstreams should be
// re-discovered in the background, mirroring the original source's
// one-second health-check/discovery cadence.
const RefreshInterval = time.Second

// HasDynamicNodes reports whether any configured node requires periodic
// re-discovery, so the caller can skip starting a refresh loop for a
// fully-static upstream.
func (d *Discovery) HasDynamicNodes() bool { return len(d.dnses) > 0 }

// IsLiteralAddr reports whether s (optionally "host:port") parses as a
// bare IP, used by callers classifying upstream_host rewrite targets.
func IsLiteralAddr(s string) bool {
	host := s
	if h, _, err := net.SplitHostPort(s); err == nil {
		host = h
	}
	return net.ParseIP(host) != nil
}
