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

package cache

import (
	"net/http"
	"sort"
	"testing"
	"time"
)

func TestVaryFieldsFromHeader(t *testing.T) {
	h := http.Header{}
	h.Set("Vary", "Accept-Encoding, X-Custom")
	got := VaryFieldsFromHeader(h)
	sort.Strings(got)
	want := []string{"Accept-Encoding", "X-Custom"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestVaryFieldsFromHeaderWildcardIgnored(t *testing.T) {
	h := http.Header{}
	h.Set("Vary", "*")
	if got := VaryFieldsFromHeader(h); len(got) != 0 {
		t.Fatalf("expected '*' to be dropped, got %v", got)
	}
}

func TestUnionVaryDedupsCaseInsensitively(t *testing.T) {
	got := UnionVary([]string{"Accept"}, []string{"accept", "Origin"})
	if len(got) != 2 {
		t.Fatalf("expected 2 deduped entries, got %v", got)
	}
}

// TestKeyDiffersOnUnionedVaryField exercises spec.md §4.7's "Vary-key
// derivation: union of the origin's Vary header list and the plugin's
// configured vary list" — two requests that only differ in a header the
// origin's own Vary declared (not the plugin's configured vary list) must
// still produce different cache keys once that header is part of the key.
func TestKeyDiffersOnUnionedVaryField(t *testing.T) {
	pluginVary := []string{"Accept-Encoding"}
	originVary := VaryFieldsFromHeader(http.Header{"Vary": []string{"X-Tenant"}})
	union := UnionVary(pluginVary, originVary)

	h1 := http.Header{"X-Tenant": []string{"a"}}
	h2 := http.Header{"X-Tenant": []string{"b"}}

	k1 := Key(http.MethodGet, "/p", h1, union)
	k2 := Key(http.MethodGet, "/p", h2, union)
	if k1 == k2 {
		t.Fatal("expected keys to differ once X-Tenant is part of the unioned vary set")
	}

	withoutUnion1 := Key(http.MethodGet, "/p", h1, pluginVary)
	withoutUnion2 := Key(http.MethodGet, "/p", h2, pluginVary)
	if withoutUnion1 != withoutUnion2 {
		t.Fatal("sanity check failed: plugin-only vary should have collapsed these two requests")
	}
}

func TestFilterRememberVaryRoundTrip(t *testing.T) {
	f := NewFilter(NewLRU(16))
	if got := f.VaryFields(http.MethodGet, "/p"); got != nil {
		t.Fatalf("expected no remembered vary fields yet, got %v", got)
	}
	f.RememberVary(http.MethodGet, "/p", []string{"X-Tenant"})
	got := f.VaryFields(http.MethodGet, "/p")
	if len(got) != 1 || got[0] != "X-Tenant" {
		t.Fatalf("expected remembered vary fields, got %v", got)
	}
}

// TestFetchStoresUnderOriginOverriddenKey verifies Fetch stores the entry
// under the key origin returns rather than the key Fetch was called with,
// and that a subsequent Lookup against that override key hits.
func TestFetchStoresUnderOriginOverriddenKey(t *testing.T) {
	f := NewFilter(NewLRU(16))
	calls := 0
	entry, err := f.Fetch("lookup-key", http.MethodGet, time.Minute, func() (*Entry, string, error) {
		calls++
		return &Entry{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte("ok")}, "store-key", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.StatusCode != http.StatusOK {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if _, ok := f.Lookup("lookup-key"); ok {
		t.Fatal("expected nothing stored under the original lookup key")
	}
	if _, ok := f.Lookup("store-key"); !ok {
		t.Fatal("expected the entry to be stored under the origin's override key")
	}
	if calls != 1 {
		t.Fatalf("expected origin to be called exactly once, got %d", calls)
	}
}
