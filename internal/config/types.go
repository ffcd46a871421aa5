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

// Package config holds the declarative data model (spec.md §3): Route,
// Service, Upstream, HealthCheck, GlobalRule, and SSL certificate entries,
// plus the validation that runs at load time (static file or dynamic KV
// put), matching the "Configuration"/"Validation" error kinds of spec.md §7.
package config

import (
	"fmt"
	"time"
)

// PluginConfig is an opaque, plugin-specific JSON document, decoded lazily
// by the plugin factory that owns "name".
type PluginConfig map[string]interface{}

// PluginMap is the name -> config mapping carried by routes, services, and
// global rules.
type PluginMap map[string]PluginConfig

func (m PluginMap) names() []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	return out
}

func (m PluginMap) config(name string) map[string]interface{} {
	return m[name]
}

// Timeouts is the connect/read/send timeout triple bound to a route.
type Timeouts struct {
	Connect time.Duration `yaml:"connect" json:"connect"`
	Read    time.Duration `yaml:"read" json:"read"`
	Send    time.Duration `yaml:"send" json:"send"`
}

// Route is a match rule plus its bindings to upstream/service/plugins
// (spec.md §3 "Route").
type Route struct {
	ID          string    `yaml:"id" json:"id"`
	HostList    []string  `yaml:"hosts" json:"hosts"`
	URIs        []string  `yaml:"uris" json:"uris"`
	MethodList  []string  `yaml:"methods" json:"methods"`
	Priority    int       `yaml:"priority" json:"priority"`
	Upstream    *Upstream `yaml:"upstream" json:"upstream"`
	UpstreamID  string    `yaml:"upstream_id" json:"upstream_id"`
	ServiceID   string    `yaml:"service_id" json:"service_id"`
	Plugins     PluginMap `yaml:"plugins" json:"plugins"`
	Timeout     Timeouts  `yaml:"timeout" json:"timeout"`
}

// RouteID, Hosts, URIPatterns, Methods, and RoutePriority implement
// router.Route without the router package depending on config.
func (r *Route) RouteID() string       { return r.ID }
func (r *Route) URIPatterns() []string { return r.URIs }
func (r *Route) RoutePriority() int    { return r.Priority }
func (r *Route) Hosts() []string       { return r.HostList }
func (r *Route) Methods() []string     { return r.MethodList }

// PluginNames and PluginConfig implement plugin.ConfigSource.
func (r *Route) PluginNames() []string { return r.Plugins.names() }
func (r *Route) PluginConfig(name string) map[string]interface{} {
	return r.Plugins.config(name)
}

// Validate enforces "a route supplies at least one URI pattern and
// resolves to exactly one upstream at match time" (spec.md §3 invariant).
// Upstream resolution itself (inline > upstream_id > service.upstream) is
// checked against a snapshot, not here, since service_id may reference an
// entity that loads later in the same batch.
func (r *Route) Validate() error {
	if r.ID == "" {
		return errf("route: id is required")
	}
	if len(r.URIs) == 0 {
		return errf("route %s: at least one uri pattern is required", r.ID)
	}
	bindings := 0
	if r.Upstream != nil {
		bindings++
	}
	if r.UpstreamID != "" {
		bindings++
	}
	if r.ServiceID == "" && bindings == 0 {
		return errf("route %s: must bind an inline upstream, upstream_id, or service_id", r.ID)
	}
	if r.Upstream != nil {
		if err := r.Upstream.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Service is a reusable bundle of an upstream and plugins that routes may
// reference (spec.md §3 "Service").
type Service struct {
	ID         string    `yaml:"id" json:"id"`
	Hosts      []string  `yaml:"hosts" json:"hosts"`
	Upstream   *Upstream `yaml:"upstream" json:"upstream"`
	UpstreamID string    `yaml:"upstream_id" json:"upstream_id"`
	Plugins    PluginMap `yaml:"plugins" json:"plugins"`
}

func (s *Service) PluginNames() []string { return s.Plugins.names() }
func (s *Service) PluginConfig(name string) map[string]interface{} {
	return s.Plugins.config(name)
}

func (s *Service) Validate() error {
	if s.ID == "" {
		return errf("service: id is required")
	}
	if s.Upstream != nil {
		return s.Upstream.Validate()
	}
	return nil
}

// SelectionType is the load-balancing policy of an Upstream.
type SelectionType string

const (
	SelectionRoundRobin SelectionType = "round_robin"
	SelectionRandom     SelectionType = "random"
	SelectionFNV        SelectionType = "fnv"
	SelectionKetama     SelectionType = "ketama"
)

// HashOn identifies the variable source used by hash-based LB policies.
type HashOn string

const (
	HashOnVars   HashOn = "vars"
	HashOnHeader HashOn = "header"
	HashOnCookie HashOn = "cookie"
)

// UpstreamScheme is the wire scheme spoken to the selected backend.
type UpstreamScheme string

const (
	SchemeHTTP  UpstreamScheme = "http"
	SchemeHTTPS UpstreamScheme = "https"
)

// PassHost controls how the Host header is forwarded upstream.
type PassHost string

const (
	PassHostPass            PassHost = "pass"
	PassHostRewrite         PassHost = "rewrite"
	PassHostRewriteSelected PassHost = "rewrite_selected"
)

// Upstream is a set of backend nodes plus selection policy, health check,
// and forwarding options (spec.md §3 "Upstream").
type Upstream struct {
	ID            string         `yaml:"id" json:"id"`
	Nodes         map[string]int `yaml:"nodes" json:"nodes"` // address -> weight
	Type          SelectionType  `yaml:"type" json:"type"`
	HashOn        HashOn         `yaml:"hash_on" json:"hash_on"`
	Key           string         `yaml:"key" json:"key"`
	Scheme        UpstreamScheme `yaml:"scheme" json:"scheme"`
	PassHost      PassHost       `yaml:"pass_host" json:"pass_host"`
	UpstreamHost  string         `yaml:"upstream_host" json:"upstream_host"`
	Checks        *HealthCheck   `yaml:"checks" json:"checks"`
	Retries       int            `yaml:"retries" json:"retries"`
	RetryTimeout  time.Duration  `yaml:"retry_timeout" json:"retry_timeout"`
}

func (u *Upstream) Validate() error {
	if len(u.Nodes) == 0 {
		return errf("upstream %s: at least one node is required", u.ID)
	}
	switch u.Type {
	case "", SelectionRoundRobin, SelectionRandom, SelectionFNV, SelectionKetama:
	default:
		return errf("upstream %s: unknown selection type %q", u.ID, u.Type)
	}
	if u.HashOn != "" {
		switch u.HashOn {
		case HashOnVars, HashOnHeader, HashOnCookie:
		default:
			return errf("upstream %s: unknown hash_on %q", u.ID, u.HashOn)
		}
		if u.Key == "" {
			return errf("upstream %s: hash_on requires a key", u.ID)
		}
	}
	switch u.Scheme {
	case "", SchemeHTTP, SchemeHTTPS:
	default:
		return errf("upstream %s: unknown scheme %q", u.ID, u.Scheme)
	}
	return nil
}

// ActiveCheckType is the probe transport of a HealthCheck.
type ActiveCheckType string

const (
	CheckTCP   ActiveCheckType = "tcp"
	CheckHTTP  ActiveCheckType = "http"
	CheckHTTPS ActiveCheckType = "https"
)

// HealthCheck configures the active probe loop for an upstream (spec.md §3
// "HealthCheck", §4.4).
type HealthCheck struct {
	Type                ActiveCheckType   `yaml:"type" json:"type"`
	Interval            time.Duration     `yaml:"interval" json:"interval"`
	Timeout             time.Duration     `yaml:"timeout" json:"timeout"`
	HTTPPath            string            `yaml:"http_path" json:"http_path"`
	Headers             map[string]string `yaml:"headers" json:"headers"`
	HealthyStatuses     []int             `yaml:"healthy_statuses" json:"healthy_statuses"`
	VerifyCert          bool              `yaml:"verify_cert" json:"verify_cert"`
	HealthySuccesses    int               `yaml:"healthy_successes" json:"healthy_successes"`
	UnhealthyFailures   int               `yaml:"unhealthy_failures" json:"unhealthy_failures"`
}

// GlobalRule applies a plugin map to every request, independent of route
// (spec.md §3 "GlobalRule").
type GlobalRule struct {
	ID      string    `yaml:"id" json:"id"`
	Plugins PluginMap `yaml:"plugins" json:"plugins"`
}

func (g *GlobalRule) PluginNames() []string { return g.Plugins.names() }
func (g *GlobalRule) PluginConfig(name string) map[string]interface{} {
	return g.Plugins.config(name)
}

func (g *GlobalRule) Validate() error {
	if g.ID == "" {
		return errf("global_rule: id is required")
	}
	return nil
}

// SSLCert is a certificate chain plus private key bound to one or more SNI
// patterns (spec.md §3 "SSL certificate entry").
type SSLCert struct {
	ID    string   `yaml:"id" json:"id"`
	Cert  string   `yaml:"cert" json:"cert"`
	Key   string   `yaml:"key" json:"key"`
	SNIs  []string `yaml:"snis" json:"snis"`
}

func (s *SSLCert) Validate() error {
	if s.ID == "" {
		return errf("ssl: id is required")
	}
	if s.Cert == "" || s.Key == "" {
		return errf("ssl %s: cert and key are required", s.ID)
	}
	if len(s.SNIs) == 0 {
		return errf("ssl %s: at least one sni pattern is required", s.ID)
	}
	return nil
}

func errf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
