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

import "pingsix/internal/config"

// defaultPort returns the port a bare hostname node should resolve on when
// the node string itself carries none, based on the upstream's scheme.
func defaultPort(scheme config.UpstreamScheme) int {
	if scheme == config.SchemeHTTPS {
		return 443
	}
	return 80
}

// NewRuntimeForUpstream builds a Runtime from a config.Upstream entity,
// wiring its node map through Discovery and its declared selection policy
// through lb.ForType (spec.md §3 "Upstream", §4.3).
func NewRuntimeForUpstream(u *config.Upstream, health *HealthState) *Runtime {
	discovery := NewDiscovery(u.Nodes, defaultPort(u.Scheme))
	return NewRuntime(
		u.ID,
		string(u.Type),
		string(u.Scheme),
		string(u.PassHost),
		u.UpstreamHost,
		u.Retries,
		u.RetryTimeout,
		discovery,
		health,
	)
}
