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

package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"pingsix/pkg/reqctx"
)

// TestCORSPreflightShortCircuits exercises spec.md §8's round-trip
// property: "CORS preflight OPTIONS to an allowed origin returns 204 with
// the configured Access-Control-* headers and the original request is not
// forwarded."
func TestCORSPreflightShortCircuits(t *testing.T) {
	p, err := New(map[string]interface{}{"allow_origins": []interface{}{"https://example.com"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	ctx := reqctx.New(req, rec)

	if err := p.RequestFilter(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ctx.ShortCircuited {
		t.Fatal("expected preflight to short-circuit")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://example.com" {
		t.Fatal("expected Access-Control-Allow-Origin to be set")
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatal("expected Access-Control-Allow-Methods to be set")
	}
}

func TestCORSDisallowedOriginIsIgnored(t *testing.T) {
	p, err := New(map[string]interface{}{"allow_origins": []interface{}{"https://example.com"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://evil.test")
	rec := httptest.NewRecorder()
	ctx := reqctx.New(req, rec)

	if err := p.RequestFilter(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.ShortCircuited {
		t.Fatal("expected disallowed origin not to short-circuit")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("expected no CORS headers for a disallowed origin")
	}
}

func TestCORSNonPreflightSetsHeadersButForwards(t *testing.T) {
	p, err := New(map[string]interface{}{"allow_origins": []interface{}{"*"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	ctx := reqctx.New(req, rec)

	if err := p.RequestFilter(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.ShortCircuited {
		t.Fatal("expected a simple GET request to still be forwarded")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected wildcard origin to be echoed")
	}
}

func TestCORSNoOriginIsNoop(t *testing.T) {
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
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("expected no CORS headers when Origin is absent")
	}
}
