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

import "testing"

type fakeRoute struct {
	id       string
	hosts    []string
	uris     []string
	methods  []string
	priority int
}

func (f *fakeRoute) RouteID() string       { return f.id }
func (f *fakeRoute) Hosts() []string       { return f.hosts }
func (f *fakeRoute) URIPatterns() []string { return f.uris }
func (f *fakeRoute) Methods() []string     { return f.methods }
func (f *fakeRoute) RoutePriority() int    { return f.priority }

var _ Route = (*fakeRoute)(nil)

func TestMatchBasicPrefix(t *testing.T) {
	b := NewBuilder()
	r1 := &fakeRoute{id: "r1", uris: []string{"/api/*tail"}}
	b.Add(r1)
	router := b.Build()

	m, ok := router.Match("", "/api/foo", "GET")
	if !ok {
		t.Fatal("expected match")
	}
	if m.Route.RouteID() != "r1" {
		t.Fatalf("got route %s", m.Route.RouteID())
	}
}

func TestHostWildcardAndPriority(t *testing.T) {
	b := NewBuilder()
	hi := &fakeRoute{id: "r_hi", hosts: []string{"*.example.com"}, uris: []string{"/"}, priority: 10}
	lo := &fakeRoute{id: "r_lo", uris: []string{"/"}, priority: 0}
	b.Add(hi)
	b.Add(lo)
	router := b.Build()

	m, ok := router.Match("a.example.com", "/", "GET")
	if !ok || m.Route.RouteID() != "r_hi" {
		t.Fatalf("expected r_hi, got %+v ok=%v", m, ok)
	}

	m, ok = router.Match("other.test", "/", "GET")
	if !ok || m.Route.RouteID() != "r_lo" {
		t.Fatalf("expected r_lo, got %+v ok=%v", m, ok)
	}

	// multi-label subdomain must also match
	m, ok = router.Match("a.b.example.com", "/", "GET")
	if !ok || m.Route.RouteID() != "r_hi" {
		t.Fatalf("expected r_hi for multi-label subdomain, got %+v ok=%v", m, ok)
	}

	// bare apex domain must not match the wildcard
	m, ok = router.Match("example.com", "/", "GET")
	if !ok || m.Route.RouteID() != "r_lo" {
		t.Fatalf("expected fallback r_lo for apex domain, got %+v ok=%v", m, ok)
	}
}

func TestPriorityTieBreakIsInsertionOrder(t *testing.T) {
	b := NewBuilder()
	first := &fakeRoute{id: "first", uris: []string{"/x"}, priority: 5}
	second := &fakeRoute{id: "second", uris: []string{"/x"}, priority: 5}
	b.Add(first)
	b.Add(second)
	router := b.Build()

	m, ok := router.Match("", "/x", "GET")
	if !ok || m.Route.RouteID() != "first" {
		t.Fatalf("expected first route to win tie, got %+v", m)
	}
}

func TestMethodFiltering(t *testing.T) {
	b := NewBuilder()
	getOnly := &fakeRoute{id: "get_only", uris: []string{"/x"}, methods: []string{"GET"}, priority: 10}
	anyMethod := &fakeRoute{id: "any", uris: []string{"/x"}, priority: 0}
	b.Add(getOnly)
	b.Add(anyMethod)
	router := b.Build()

	m, ok := router.Match("", "/x", "POST")
	if !ok || m.Route.RouteID() != "any" {
		t.Fatalf("expected fallback to any-method route, got %+v ok=%v", m, ok)
	}

	m, ok = router.Match("", "/x", "GET")
	if !ok || m.Route.RouteID() != "get_only" {
		t.Fatalf("expected get_only to win on GET, got %+v", m)
	}
}

func TestNoMatch(t *testing.T) {
	b := NewBuilder()
	b.Add(&fakeRoute{id: "r1", uris: []string{"/known"}})
	router := b.Build()

	if _, ok := router.Match("", "/unknown", "GET"); ok {
		t.Fatal("expected no match")
	}
}

func TestParamExtraction(t *testing.T) {
	b := NewBuilder()
	b.Add(&fakeRoute{id: "r1", uris: []string{"/users/:id/orders/:order_id"}})
	router := b.Build()

	m, ok := router.Match("", "/users/42/orders/99", "GET")
	if !ok {
		t.Fatal("expected match")
	}
	if m.Params["id"] != "42" || m.Params["order_id"] != "99" {
		t.Fatalf("unexpected params: %+v", m.Params)
	}
}

func TestMatchDeterminism(t *testing.T) {
	b := NewBuilder()
	b.Add(&fakeRoute{id: "r1", hosts: []string{"*.example.com"}, uris: []string{"/api/:id"}, priority: 1})
	b.Add(&fakeRoute{id: "r2", uris: []string{"/api/:id"}})
	router := b.Build()

	first, ok1 := router.Match("x.example.com", "/api/7", "GET")
	second, ok2 := router.Match("x.example.com", "/api/7", "GET")
	if ok1 != ok2 || first.Route.RouteID() != second.Route.RouteID() {
		t.Fatal("router match is not deterministic")
	}
}
