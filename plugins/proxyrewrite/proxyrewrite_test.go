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

package proxyrewrite

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"pingsix/pkg/reqctx"
)

// TestProxyRewriteIdentityRegexIsNoop exercises spec.md §8's round-trip
// property: "Applying the proxy-rewrite plugin with an identity regex
// pair is a no-op on the URI."
func TestProxyRewriteIdentityRegexIsNoop(t *testing.T) {
	p, err := New(map[string]interface{}{
		"regex_uri": []interface{}{"^(.*)$", "$1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/foo/bar", nil)
	ctx := reqctx.New(req, httptest.NewRecorder())

	if err := p.UpstreamRequestFilter(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.Request.URL.Path != "/api/foo/bar" {
		t.Fatalf("expected path unchanged, got %q", ctx.Request.URL.Path)
	}
}

func TestProxyRewriteAppliesCapture(t *testing.T) {
	p, err := New(map[string]interface{}{
		"regex_uri": []interface{}{"^/api/(.*)$", "/internal/$1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/foo", nil)
	ctx := reqctx.New(req, httptest.NewRecorder())

	if err := p.UpstreamRequestFilter(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.Request.URL.Path != "/internal/foo" {
		t.Fatalf("expected rewritten path, got %q", ctx.Request.URL.Path)
	}
}

func TestProxyRewriteHeaders(t *testing.T) {
	p, err := New(map[string]interface{}{
		"headers": map[string]interface{}{
			"set":    map[string]interface{}{"X-Forwarded-By": "pingsix"},
			"remove": []interface{}{"X-Drop-Me"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Drop-Me", "secret")
	ctx := reqctx.New(req, httptest.NewRecorder())

	if err := p.UpstreamRequestFilter(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.Request.Header.Get("X-Forwarded-By") != "pingsix" {
		t.Fatal("expected X-Forwarded-By header to be set")
	}
	if ctx.Request.Header.Get("X-Drop-Me") != "" {
		t.Fatal("expected X-Drop-Me header to be removed")
	}
}

func TestProxyRewriteInvalidRegexErrors(t *testing.T) {
	_, err := New(map[string]interface{}{
		"regex_uri": []interface{}{"(unterminated", "x"},
	})
	if err == nil {
		t.Fatal("expected an error building an invalid regex")
	}
}
