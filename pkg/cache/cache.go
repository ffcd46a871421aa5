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

// Package cache implements the HTTP response cache integration: key
// derivation from method+URI+Vary headers, single-flight collapsing of
// concurrent misses for the same key, and a pluggable storage backend
// (in-memory LRU, or Redis via the teacher's go-redis dependency)
// (spec.md CORE subsystem 5).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Settings is the per-route cache configuration recorded by the
// cache-enable plugin into the request context (spec.md §4.7
// "CacheSettings { ttl, statuses, vary, hide_headers, max_size }").
type Settings struct {
	TTL         time.Duration
	VaryKeys    []string
	Statuses    []int
	HideHeaders bool
	MaxSize     int64
}

// StatusAllowed reports whether status is in the plugin-configured
// allow-set, defaulting to "200 only" when the set is empty (spec.md §4.7
// "Cacheability of the response... otherwise default (typically 200)
// applies").
func (s Settings) StatusAllowed(status int) bool {
	if len(s.Statuses) == 0 {
		return status == http.StatusOK
	}
	for _, want := range s.Statuses {
		if want == status {
			return true
		}
	}
	return false
}

// Entry is a stored response: status, header snapshot, and body bytes.
type Entry struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	StoredAt   time.Time
	TTL        time.Duration
}

// Expired reports whether e is past its TTL as of now.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.StoredAt.Add(e.TTL))
}

// Key derives the cache key from method, path, and the values of varyKeys,
// sorted for determinism (spec.md §4.7 "Key derivation"). Callers are
// expected to pass the union of the plugin's configured vary list and the
// origin's Vary header field names (see UnionVary/VaryFieldsFromHeader).
func Key(method, path string, header http.Header, varyKeys []string) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	sorted := append([]string(nil), varyKeys...)
	sort.Strings(sorted)
	for _, k := range sorted {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(header.Get(k)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// VaryFieldsFromHeader parses an origin response's Vary header into its
// comma-separated field-name list (spec.md §4.7 "the union of the origin's
// Vary header list and the plugin's configured vary list").
func VaryFieldsFromHeader(h http.Header) []string {
	raw := h.Get("Vary")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || p == "*" {
			continue
		}
		fields = append(fields, p)
	}
	return fields
}

// UnionVary merges two vary-field lists, deduplicating case-insensitively
// (HTTP header names are case-insensitive).
func UnionVary(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	add := func(list []string) {
		for _, v := range list {
			key := strings.ToLower(v)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, v)
		}
	}
	add(a)
	add(b)
	return out
}

// Cacheable reports whether method/status are eligible for caching at
// all, independent of route-level settings.
func Cacheable(method string, status int) bool {
	if method != http.MethodGet && method != http.MethodHead {
		return false
	}
	switch status {
	case http.StatusOK, http.StatusNonAuthoritativeInfo, http.StatusNoContent,
		http.StatusPartialContent, http.StatusMultipleChoices, http.StatusMovedPermanently,
		http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusGone,
		http.StatusRequestURITooLong:
		return true
	}
	return false
}

// StatusHeader is the header name filters set to report cache outcome
// (spec.md §4.7 "X-Cache-Status").
const StatusHeader = "X-Cache-Status"

const (
	StatusHit    = "HIT"
	StatusMiss   = "MISS"
	StatusBypass = "BYPASS"
	// StatusStale, StatusExpired and StatusRevalidated are part of the
	// status vocabulary spec.md §4.7 reserves for a background
	// revalidation pass; this gateway's cache is miss-or-hit only, so
	// they are declared for forward compatibility but never emitted.
	StatusStale       = "STALE"
	StatusExpired     = "EXPIRED"
	StatusRevalidated = "REVALIDATED"
)
