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

// Package lb implements the four load-balancing policies an Upstream may
// select: round_robin, random, fnv, and ketama (spec.md §4.3 "Selection
// policy"), grounded on the original source's own
// round-robin/random/FVNHash/KetamaHashing enum (src/proxy/lb.rs).
package lb

import (
	"hash/fnv"
	"math/rand"
	"sync/atomic"

	"github.com/dgryski/go-rendezvous"
)

// Node is a weighted backend address.
type Node struct {
	Addr   string
	Weight int
}

// Selector picks one Node for a request given its hash/affinity key. Node
// sets are rebuilt wholesale on every discovery refresh or health-check
// transition; Selector implementations hold no long-lived per-node state
// beyond what's needed for the policy itself.
type Selector interface {
	Select(key string, nodes []Node) (Node, bool)
}

// RoundRobin cycles through nodes in weighted order, ignoring key.
type RoundRobin struct {
	counter atomic.Uint64
}

func NewRoundRobin() *RoundRobin { return &RoundRobin{} }

func (r *RoundRobin) Select(_ string, nodes []Node) (Node, bool) {
	expanded := expand(nodes)
	if len(expanded) == 0 {
		return Node{}, false
	}
	i := r.counter.Add(1) - 1
	return expanded[i%uint64(len(expanded))], true
}

// Random picks a weighted-random node, ignoring key.
type Random struct{}

func NewRandom() *Random { return &Random{} }

func (Random) Select(_ string, nodes []Node) (Node, bool) {
	expanded := expand(nodes)
	if len(expanded) == 0 {
		return Node{}, false
	}
	return expanded[rand.Intn(len(expanded))], true
}

// FNVHash picks a node by hashing key with FNV-1a modulo the expanded
// weighted node list, giving the same node for the same key as long as
// the node set is unchanged.
type FNVHash struct{}

func NewFNVHash() *FNVHash { return &FNVHash{} }

func (FNVHash) Select(key string, nodes []Node) (Node, bool) {
	expanded := expand(nodes)
	if len(expanded) == 0 {
		return Node{}, false
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return expanded[h.Sum32()%uint32(len(expanded))], true
}

// Ketama is a consistent-hash selector built on rendezvous hashing
// (github.com/dgryski/go-rendezvous), a well-known alternative to
// libmemcached-style Ketama that gives the same minimal-disruption
// property on node-set change (spec.md §4.3 "Ketama").
type Ketama struct{}

func NewKetama() *Ketama { return &Ketama{} }

func (Ketama) Select(key string, nodes []Node) (Node, bool) {
	if len(nodes) == 0 {
		return Node{}, false
	}
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Addr
	}
	r := rendezvous.New(names, hashString)
	picked := r.Lookup(key)
	for _, n := range nodes {
		if n.Addr == picked {
			return n, true
		}
	}
	return nodes[0], true
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// expand repeats each node Weight times (minimum 1) so round_robin/random
// naturally honor node weight without a separate accumulator.
func expand(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		w := n.Weight
		if w <= 0 {
			w = 1
		}
		for i := 0; i < w; i++ {
			out = append(out, n)
		}
	}
	return out
}

// ForType resolves a selection-type name to its Selector constructor.
func ForType(t string) Selector {
	switch t {
	case "random":
		return NewRandom()
	case "fnv":
		return NewFNVHash()
	case "ketama":
		return NewKetama()
	default:
		return NewRoundRobin()
	}
}
