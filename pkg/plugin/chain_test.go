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
	"testing"

	"pingsix/pkg/reqctx"
)

type fakeSource struct {
	plugins map[string]map[string]interface{}
}

func (f *fakeSource) PluginNames() []string {
	out := make([]string, 0, len(f.plugins))
	for n := range f.plugins {
		out = append(out, n)
	}
	return out
}

func (f *fakeSource) PluginConfig(name string) map[string]interface{} { return f.plugins[name] }

type recordingPlugin struct {
	Base
	calls *[]string
}

func (p *recordingPlugin) RequestFilter(ctx *reqctx.Context) error {
	*p.calls = append(*p.calls, p.Name())
	return nil
}

func newTestRegistry(calls *[]string) *Registry {
	r := NewRegistry()
	r.Register("low", func(map[string]interface{}) (Plugin, error) {
		return &recordingPlugin{Base: Base{PluginName: "low", PluginPriority: 1}, calls: calls}, nil
	})
	r.Register("high", func(map[string]interface{}) (Plugin, error) {
		return &recordingPlugin{Base: Base{PluginName: "high", PluginPriority: 100}, calls: calls}, nil
	})
	return r
}

func TestBuildOrdersByPriority(t *testing.T) {
	var calls []string
	registry := newTestRegistry(&calls)
	route := &fakeSource{plugins: map[string]map[string]interface{}{"low": {}, "high": {}}}

	exec, err := Build(registry, route, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := reqctx.New(nil, nil)
	if err := exec.RunRequestFilter(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 2 || calls[0] != "high" || calls[1] != "low" {
		t.Fatalf("expected [high low], got %v", calls)
	}
}

func TestBuildRouteOverridesService(t *testing.T) {
	var calls []string
	registry := newTestRegistry(&calls)
	service := &fakeSource{plugins: map[string]map[string]interface{}{"low": {"x": 1}}}
	route := &fakeSource{plugins: map[string]map[string]interface{}{"low": {"x": 2}}}

	exec, err := Build(registry, route, service)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exec.instances) != 1 {
		t.Fatalf("expected dedup to one instance, got %d", len(exec.instances))
	}
}

func TestShortCircuitStopsChain(t *testing.T) {
	var calls []string
	registry := NewRegistry()
	registry.Register("short", func(map[string]interface{}) (Plugin, error) {
		return &shortCircuitPlugin{Base: Base{PluginName: "short", PluginPriority: 100}}, nil
	})
	registry.Register("after", func(map[string]interface{}) (Plugin, error) {
		return &recordingPlugin{Base: Base{PluginName: "after", PluginPriority: 1}, calls: &calls}, nil
	})
	route := &fakeSource{plugins: map[string]map[string]interface{}{"short": {}, "after": {}}}

	exec, err := Build(registry, route, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := reqctx.New(nil, nil)
	if err := exec.RunRequestFilter(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 0 {
		t.Fatalf("expected short-circuit to prevent lower-priority plugin, got %v", calls)
	}
}

type shortCircuitPlugin struct{ Base }

func (p *shortCircuitPlugin) RequestFilter(ctx *reqctx.Context) error {
	ctx.ShortCircuited = true
	return nil
}

func TestCacheReusesExecutor(t *testing.T) {
	registry := newTestRegistry(&[]string{})
	route := &fakeSource{plugins: map[string]map[string]interface{}{"low": {}}}
	cache := NewCache()

	build := func() (*Executor, error) { return Build(registry, route, nil) }
	e1, err := cache.GetOrBuild("r1", build)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e2, err := cache.GetOrBuild("r1", build)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e1 != e2 {
		t.Fatal("expected cached executor to be reused")
	}
}
