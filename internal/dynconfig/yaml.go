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

package dynconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pingsix/internal/config"
)

// document is the top-level shape of a static pingsix.yaml (spec.md §6).
type document struct {
	Routes      []*config.Route      `yaml:"routes"`
	Services    []*config.Service    `yaml:"services"`
	Upstreams   []*config.Upstream   `yaml:"upstreams"`
	GlobalRules []*config.GlobalRule `yaml:"global_rules"`
	SSLs        []*config.SSLCert    `yaml:"ssls"`
}

// LoadYAMLFile parses path into a fully-validated Snapshot (spec.md §4.5
// "Static: load a YAML document at startup"). A malformed document is a
// hard error; an individual entity that fails validation is skipped with
// the error recorded, matching the per-entry skip-and-continue posture the
// dynamic KV path uses for parse errors.
func LoadYAMLFile(path string) (*config.Snapshot, []error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{fmt.Errorf("dynconfig: read %s: %w", path, err)}
	}
	return LoadYAML(raw)
}

// LoadYAML parses raw YAML bytes into a Snapshot.
func LoadYAML(raw []byte) (*config.Snapshot, []error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, []error{fmt.Errorf("dynconfig: parse yaml: %w", err)}
	}

	snap := config.NewEmptySnapshot()
	var errs []error

	for _, u := range doc.Upstreams {
		if err := u.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		snap.Upstreams[u.ID] = u
	}
	for _, svc := range doc.Services {
		if err := svc.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		snap.Services[svc.ID] = svc
	}
	for _, r := range doc.Routes {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		snap.Routes[r.ID] = r
	}
	for _, g := range doc.GlobalRules {
		if err := g.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		snap.GlobalRules[g.ID] = g
	}
	for _, cert := range doc.SSLs {
		if err := cert.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		snap.SSLCerts[cert.ID] = cert
	}

	return snap, errs
}
