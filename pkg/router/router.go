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

// Package router implements the two-tier request matcher: a host-reversed
// prefix trie feeding per-host URI radix tries, plus a fallback trie for
// routes with no host patterns (spec.md §4.1).
package router

import (
	"strings"

	"pingsix/internal/gwlog"
)

// Route is the minimal shape the router needs from a routed entity. The
// concrete *config.Route satisfies this without the router package
// importing config (which would create a cycle: config needs to build the
// router, not the other way around).
type Route interface {
	RouteID() string
	Hosts() []string
	URIPatterns() []string
	Methods() []string
	RoutePriority() int
}

// Match is the result of a successful lookup: the matched route and any
// path/catch-all parameters captured from the URI pattern.
type Match struct {
	Route  Route
	Params map[string]string
}

// Router is an immutable, built-once index. A new Router is built off-line
// on every config reload and published behind an atomic pointer by the
// caller (spec.md §3 "Lifecycle", §9 "Shared-ownership and hot-swap").
type Router struct {
	hostOuter   *Trie // reversed host pattern -> hostURITrie, keyed by '.'
	hostURIs    map[string]*Trie
	nonHostURIs *Trie
}

// hostURITrie wraps a per-host URI trie so it can be stored as an Entry
// value inside hostOuter.
type hostURITrie struct{ trie *Trie }

// Builder accumulates routes before a single Build() produces an immutable
// Router, keeping insertion order stable for priority tie-breaks.
type Builder struct {
	routes []Route
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) Add(r Route) { b.routes = append(b.routes, r) }

// Build constructs the two-tier trie set. Patterns the trie library
// rejects are logged and skipped; the build never aborts (spec.md §4.1
// "Failure model").
func (b *Builder) Build() *Router {
	router := &Router{
		hostURIs:    make(map[string]*Trie),
		nonHostURIs: NewTrie('/'),
	}
	for _, route := range b.routes {
		hosts := route.Hosts()
		uris := route.URIPatterns()
		priority := route.RoutePriority()
		if len(hosts) == 0 {
			for _, uri := range uris {
				if err := router.nonHostURIs.Insert(uri, priority, route); err != nil {
					gwlog.Warnf("router: skipping route %s uri %q: %v", route.RouteID(), uri, err)
				}
			}
			continue
		}
		for _, host := range hosts {
			key := reverseHostPattern(host)
			trie, ok := router.hostURIs[key]
			if !ok {
				trie = NewTrie('/')
				router.hostURIs[key] = trie
			}
			for _, uri := range uris {
				if err := trie.Insert(uri, priority, route); err != nil {
					gwlog.Warnf("router: skipping route %s host %q uri %q: %v", route.RouteID(), host, uri, err)
				}
			}
		}
	}
	outer := NewTrie('.')
	for pattern, t := range router.hostURIs {
		if err := outer.Insert(pattern, 0, hostURITrie{trie: t}); err != nil {
			gwlog.Warnf("router: skipping host pattern %q: %v", pattern, err)
		}
	}
	router.hostOuter = outer
	return router
}

// lookupHostTrie resolves the request Host header to its per-host URI
// trie via the reversed-host outer trie (spec.md §4.1 "At lookup").
func (r *Router) lookupHostTrie(host string) (*Trie, map[string]string, bool) {
	if r.hostOuter == nil {
		return nil, nil, false
	}
	entries, params, ok := r.hostOuter.Match(reverseHostValue(host))
	if !ok || len(entries) == 0 {
		return nil, nil, false
	}
	w := entries[0].Value.(hostURITrie)
	return w.trie, params, true
}

// Match classifies (host, path, method) to at most one route (spec.md
// §4.1). Host lookup is tried first; on a host hit whose inner URI trie
// also matches, that result wins outright, even if the non-host trie would
// also have matched — a route bound to a host is always more specific than
// a hostless fallback.
func (r *Router) Match(host, path, method string) (*Match, bool) {
	if host != "" && len(r.hostURIs) > 0 {
		if trie, hostParams, ok := r.lookupHostTrie(host); ok {
			if entries, uriParams, ok := trie.Match(path); ok {
				if m, ok := selectByMethod(entries, method); ok {
					mergeParams(m.Params, hostParams, uriParams)
					return m, true
				}
			}
		}
	}
	if entries, uriParams, ok := r.nonHostURIs.Match(path); ok {
		if m, ok := selectByMethod(entries, method); ok {
			mergeParams(m.Params, nil, uriParams)
			return m, true
		}
	}
	return nil, false
}

func mergeParams(dst map[string]string, a, b map[string]string) {
	for k, v := range a {
		dst[k] = v
	}
	for k, v := range b {
		dst[k] = v
	}
}

// selectByMethod iterates priority-ordered entries and returns the first
// whose method set is empty or contains method (spec.md §4.1 "Matching").
func selectByMethod(entries []Entry, method string) (*Match, bool) {
	for _, e := range entries {
		route := e.Value.(Route)
		methods := route.Methods()
		if len(methods) == 0 || containsMethod(methods, method) {
			return &Match{Route: route, Params: make(map[string]string)}, true
		}
	}
	return nil, false
}

func containsMethod(methods []string, method string) bool {
	for _, m := range methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}
