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

package trafficsplit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"pingsix/pkg/reqctx"
)

// TestTrafficSplitWeightedDistribution exercises spec.md §8 scenario S5:
// upstream A:1 / B:3 should land B at roughly 75% of a large sample.
func TestTrafficSplitWeightedDistribution(t *testing.T) {
	p, err := New(map[string]interface{}{
		"rules": []interface{}{
			map[string]interface{}{"upstream_id": "a", "weight": 1},
			map[string]interface{}{"upstream_id": "b", "weight": 3},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const n = 20000
	counts := map[string]int{}
	for i := 0; i < n; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		ctx := reqctx.New(req, rec)
		if err := p.RequestFilter(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		id, ok := ctx.GetString(reqctx.KeyUpstreamOverride)
		if !ok {
			t.Fatal("expected an upstream override to be set")
		}
		counts[id]++
	}

	bFraction := float64(counts["b"]) / float64(n)
	if bFraction < 0.70 || bFraction > 0.80 {
		t.Fatalf("expected B's share near 75%%, got %.2f%% (counts=%v)", bFraction*100, counts)
	}
}

func TestTrafficSplitIgnoresInvalidRules(t *testing.T) {
	p, err := New(map[string]interface{}{
		"rules": []interface{}{
			map[string]interface{}{"upstream_id": "", "weight": 5},
			map[string]interface{}{"upstream_id": "ok", "weight": 0},
			map[string]interface{}{"upstream_id": "valid", "weight": 2},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ctx := reqctx.New(req, rec)
	if err := p.RequestFilter(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id, ok := ctx.GetString(reqctx.KeyUpstreamOverride)
	if !ok || id != "valid" {
		t.Fatalf("expected only the valid rule to be eligible, got %q (ok=%v)", id, ok)
	}
}

func TestTrafficSplitNoRulesIsNoop(t *testing.T) {
	p, err := New(map[string]interface{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ctx := reqctx.New(req, rec)
	if err := p.RequestFilter(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ctx.GetString(reqctx.KeyUpstreamOverride); ok {
		t.Fatal("expected no upstream override with zero rules")
	}
}
