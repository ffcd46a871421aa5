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

package router

import (
	"fmt"
	"sort"
	"strings"
)

// Entry is a single value stored at a trie cell. A cell can hold more than
// one Entry (duplicate pattern inserts extend the cell's vector rather
// than replacing it, per spec.md §4.1).
type Entry struct {
	Priority int
	Value    interface{}
	// seq preserves insertion order so that equal-priority entries keep a
	// stable "first inserted wins" tie-break (spec.md §8 invariant 2).
	seq int
}

// cell is a trie node's terminal payload: entries ordered by descending
// priority (ties broken by insertion order).
type cell struct {
	entries []Entry
}

func (c *cell) insert(e Entry) {
	c.entries = append(c.entries, e)
	sort.SliceStable(c.entries, func(i, j int) bool {
		return c.entries[i].Priority > c.entries[j].Priority
	})
}

// node is one segment of the trie, keyed by the separator-delimited
// segments of the inserted pattern.
type node struct {
	static    map[string]*node
	param     *node
	paramName string
	catchAll  *node
	catchName string
	term      *cell
}

func newNode() *node { return &node{static: make(map[string]*node)} }

// Trie is a segment trie supporting static segments, ":name" dynamic
// segments, and a terminal "*name" catch-all segment (spec.md §4.1, §9
// "Matcher library expectations").
type Trie struct {
	sep  byte
	root *node
	seq  int
}

// NewTrie builds an empty trie that splits patterns on sep ('/' for URI
// tries, '.' for the reversed-host trie).
func NewTrie(sep byte) *Trie {
	return &Trie{sep: sep, root: newNode()}
}

func (t *Trie) splitSegments(pattern string) []string {
	trimmed := strings.Trim(pattern, string(t.sep))
	if trimmed == "" {
		return []string{}
	}
	return strings.Split(trimmed, string(t.sep))
}

// Insert adds a pattern -> value mapping with the given priority. Returns
// an error if the pattern has a syntactic conflict the trie can't
// disambiguate (e.g. two different catch-all names at the same cell); the
// loader is expected to log and skip on error rather than abort
// (spec.md §4.1 "Failure model").
func (t *Trie) Insert(pattern string, priority int, value interface{}) error {
	segs := t.splitSegments(pattern)
	cur := t.root
	for i, seg := range segs {
		switch {
		case strings.HasPrefix(seg, "*"):
			name := strings.TrimPrefix(seg, "*")
			if i != len(segs)-1 {
				return fmt.Errorf("catch-all segment %q must be the last segment of %q", seg, pattern)
			}
			if cur.catchAll == nil {
				cur.catchAll = newNode()
				cur.catchName = name
			} else if cur.catchName != name {
				return fmt.Errorf("conflicting catch-all name at same cell: %q vs %q", cur.catchName, name)
			}
			cur = cur.catchAll
		case strings.HasPrefix(seg, ":"):
			name := strings.TrimPrefix(seg, ":")
			if cur.param == nil {
				cur.param = newNode()
				cur.paramName = name
			} else if cur.paramName != name {
				return fmt.Errorf("conflicting param name at same cell: %q vs %q", cur.paramName, name)
			}
			cur = cur.param
		default:
			child, ok := cur.static[seg]
			if !ok {
				child = newNode()
				cur.static[seg] = child
			}
			cur = child
		}
	}
	if cur.term == nil {
		cur.term = &cell{}
	}
	t.seq++
	cur.term.insert(Entry{Priority: priority, Value: value, seq: t.seq})
	return nil
}

// Match walks path against the trie. It returns the terminal cell's
// priority-ordered entries and any path/catch-all parameters captured
// along the winning walk, or ok=false if nothing matched.
func (t *Trie) Match(path string) (entries []Entry, params map[string]string, ok bool) {
	segs := t.splitSegments(path)
	params = make(map[string]string)
	c := t.matchNode(t.root, segs, params)
	if c == nil || c.term == nil {
		return nil, nil, false
	}
	return c.term.entries, params, true
}

// matchNode performs a backtracking walk: static segments are preferred,
// falling back to a param segment, falling back to a catch-all. This
// guarantees the longest concrete match wins before a wildcard absorbs the
// remainder, matching ordinary radix-router semantics.
func (t *Trie) matchNode(n *node, segs []string, params map[string]string) *node {
	if len(segs) == 0 {
		if n.term != nil {
			return n
		}
		// In a '/'-separated (URI) trie a catch-all may also match zero
		// trailing segments. In a '.'-separated (host) trie it needs at
		// least one label, so "*.example.com" does not match "example.com".
		if t.sep == '/' && n.catchAll != nil && n.catchAll.term != nil {
			params[n.catchName] = ""
			return n.catchAll
		}
		return nil
	}

	seg, rest := segs[0], segs[1:]

	if child, ok := n.static[seg]; ok {
		if res := t.matchNode(child, rest, params); res != nil {
			return res
		}
	}
	if n.param != nil {
		snapshot := params[n.paramName]
		hadKey := false
		if _, existed := params[n.paramName]; existed {
			hadKey = true
		}
		params[n.paramName] = seg
		if res := t.matchNode(n.param, rest, params); res != nil {
			return res
		}
		if hadKey {
			params[n.paramName] = snapshot
		} else {
			delete(params, n.paramName)
		}
	}
	if n.catchAll != nil {
		params[n.catchName] = strings.Join(segs, string(t.sep))
		return n.catchAll
	}
	return nil
}
