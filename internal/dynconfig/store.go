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

// Package dynconfig is the dynamic configuration plane (spec.md §4.5): a
// process-wide snapshot held behind an atomic pointer, fed by either a
// static YAML load or a watched key-value store, with a readiness flag
// that flips true exactly once after the first successful initial list.
package dynconfig

import (
	"sync"
	"sync/atomic"

	"pingsix/internal/config"
)

// Store holds the live *config.Snapshot behind an atomic pointer. Readers
// take a cheap Load on entry and operate on a stable snapshot for the
// duration of one request (spec.md §4.5 "Publication primitive").
type Store struct {
	snapshot atomic.Pointer[config.Snapshot]
	ready    atomic.Bool
	onSwap   []func(prev, next *config.Snapshot)
	mu       sync.Mutex
}

// NewStore returns a Store pre-populated with an empty snapshot so readers
// never observe a nil pointer.
func NewStore() *Store {
	s := &Store{}
	s.snapshot.Store(config.NewEmptySnapshot())
	return s
}

// Get returns the current snapshot. Safe for concurrent use.
func (s *Store) Get() *config.Snapshot { return s.snapshot.Load() }

// Ready reports whether the first successful list has completed.
func (s *Store) Ready() bool { return s.ready.Load() }

// OnSwap registers a callback invoked synchronously after every Swap, with
// the previous and new snapshot. Used to rebuild the derived indices
// (routing trie, SNI trie, global plugin executor) mentioned in spec.md
// §4.5: "After any mutation to routes/SSL/global-rules, rebuild the
// derived indices."
func (s *Store) OnSwap(fn func(prev, next *config.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSwap = append(s.onSwap, fn)
}

// Swap atomically installs next as the current snapshot and runs every
// registered OnSwap callback. The first Swap also flips the readiness flag.
func (s *Store) Swap(next *config.Snapshot) {
	prev := s.snapshot.Swap(next)
	s.ready.Store(true)
	s.mu.Lock()
	hooks := append([]func(prev, next *config.Snapshot){}, s.onSwap...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(prev, next)
	}
}
