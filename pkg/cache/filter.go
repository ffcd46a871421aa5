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
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Filter is the orchestrator-facing cache integration: it looks up a
// cached entry, and on a miss, collapses concurrent identical requests
// into a single origin fetch via singleflight (spec.md §4.7 "Single-flight
// on miss").
type Filter struct {
	backend Backend
	group   singleflight.Group

	varyMu sync.RWMutex
	// vary remembers, per method+path, the vary field set a representative
	// origin response last declared (spec.md §4.7 "Vary-key derivation: union
	// of the origin's Vary header list and the plugin's configured vary
	// list"). The actual Vary header is only known once the origin has been
	// fetched, so this is how a *later* request's Lookup can derive the same
	// key a prior Fetch stored its entry under, without re-fetching first.
	vary map[string][]string
}

// NewFilter builds a cache filter over backend (NewLRU or NewRedisBackend).
func NewFilter(backend Backend) *Filter {
	return &Filter{backend: backend, vary: make(map[string][]string)}
}

// VaryFields returns the vary field names a prior origin fetch for
// method+path declared via its Vary header, if any have been observed yet.
func (f *Filter) VaryFields(method, path string) []string {
	f.varyMu.RLock()
	defer f.varyMu.RUnlock()
	return f.vary[method+" "+path]
}

// RememberVary records the vary field set a representative origin response
// for method+path declared, for later Lookup calls to key off of.
func (f *Filter) RememberVary(method, path string, fields []string) {
	f.varyMu.Lock()
	defer f.varyMu.Unlock()
	f.vary[method+" "+path] = fields
}

// Store installs entry under key directly, bypassing single-flight. Used
// by callers that already hold a freshly fetched, streamed response and
// only want it remembered for the next request rather than re-fetched
// through Fetch's origin closure.
func (f *Filter) Store(key string, entry *Entry) {
	f.backend.Set(key, entry)
}

// Evict removes key, used when a route's cache_http_status allow-list
// rejects a status Fetch's default (non-route-aware) Cacheable check just
// stored.
func (f *Filter) Evict(key string) {
	f.backend.Delete(key)
}

// Lookup returns a cached, non-expired entry for key, if any.
func (f *Filter) Lookup(key string) (*Entry, bool) {
	entry, ok := f.backend.Get(key)
	if !ok {
		return nil, false
	}
	if entry.Expired(time.Now()) {
		f.backend.Delete(key)
		return nil, false
	}
	return entry, true
}

// Fetch resolves key via the cache, calling origin at most once across
// any number of concurrent callers sharing the same key (spec.md §4.7).
// The caller is responsible for only invoking Fetch on cacheable methods
// (Cacheable checks the method too, but only once the status is known).
//
// origin may return a non-empty storeKey to have the fetched entry stored
// under a different key than the one Fetch/Lookup were called with — the
// cache-key's Vary component can only be finalized once the origin's Vary
// header is known (spec.md §4.7), so the key used to de-duplicate the
// in-flight fetch (computed from the previously-observed vary set, or just
// the plugin's configured vary keys on a cold path) and the key the result
// is ultimately stored under can legitimately differ.
func (f *Filter) Fetch(key, method string, ttl time.Duration, origin func() (*Entry, string, error)) (*Entry, error) {
	if entry, ok := f.Lookup(key); ok {
		return entry, nil
	}
	v, err, _ := f.group.Do(key, func() (interface{}, error) {
		entry, storeKey, err := origin()
		if err != nil {
			return nil, err
		}
		entry.StoredAt = time.Now()
		entry.TTL = ttl
		if storeKey == "" {
			storeKey = key
		}
		if Cacheable(method, entry.StatusCode) {
			f.backend.Set(storeKey, entry)
		}
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}
