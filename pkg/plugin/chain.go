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

import "sync"

// ConfigSource is the minimal shape the chain builder needs from a route,
// service, or global rule: an ordered plugin-name -> config map. Defined
// here (rather than importing internal/config) to keep this package free
// of a dependency on the config entity model.
type ConfigSource interface {
	PluginNames() []string
	PluginConfig(name string) map[string]interface{}
}

// Build resolves a route's plugin chain against its owning service,
// deduplicating by name with route-level config taking precedence over
// service-level config for the same plugin name (spec.md §4.2 "Route and
// service plugins merge; a name present on both uses the route's
// config").
func Build(registry *Registry, route, service ConfigSource) (*Executor, error) {
	merged := make(map[string]map[string]interface{})
	if service != nil {
		for _, name := range service.PluginNames() {
			merged[name] = service.PluginConfig(name)
		}
	}
	if route != nil {
		for _, name := range route.PluginNames() {
			merged[name] = route.PluginConfig(name)
		}
	}
	return buildFromMerged(registry, merged)
}

// BuildGlobal resolves the plugin set applied to every request regardless
// of route, from the union of active global rules (spec.md §4.2 "Global
// rules").
func BuildGlobal(registry *Registry, rules []ConfigSource) (*Executor, error) {
	merged := make(map[string]map[string]interface{})
	for _, rule := range rules {
		if rule == nil {
			continue
		}
		for _, name := range rule.PluginNames() {
			merged[name] = rule.PluginConfig(name)
		}
	}
	return buildFromMerged(registry, merged)
}

func buildFromMerged(registry *Registry, merged map[string]map[string]interface{}) (*Executor, error) {
	if len(merged) == 0 {
		return Empty, nil
	}
	instances := make([]Plugin, 0, len(merged))
	for name, cfg := range merged {
		p, err := registry.Build(name, cfg)
		if err != nil {
			return nil, err
		}
		instances = append(instances, p)
	}
	return NewExecutor(instances), nil
}

// Cache memoizes built executors keyed by a caller-supplied identity
// (spec.md §4.2 "Chain construction and caching": "rebuilt only when the
// route or its owning service's plugin map changes, not on every
// request"). The orchestrator holds one Cache per active snapshot and
// discards it wholesale on reload, so staleness cannot leak across a
// config swap.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Executor
}

func NewCache() *Cache { return &Cache{entries: make(map[string]*Executor)} }

// GetOrBuild returns the cached executor for key, building and storing it
// via build if absent. Safe for concurrent use: concurrent first-callers
// for the same key block on the same build rather than racing the map.
func (c *Cache) GetOrBuild(key string, build func() (*Executor, error)) (*Executor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e, nil
	}
	e, err := build()
	if err != nil {
		return nil, err
	}
	c.entries[key] = e
	return e, nil
}
