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

// Package admin implements the control-plane REST surface (spec.md §4.5
// "Admin API"): PUT/GET/DELETE under /apisix/admin/{resource}/{id},
// gated by a static X-API-Key header, validating any plugin_config
// referenced by a write against the process-wide plugin registry before
// it is ever admitted into the live snapshot.
package admin

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"pingsix/internal/config"
	"pingsix/internal/dynconfig"
	"pingsix/pkg/plugin"
)

// Server is the admin HTTP handler. One instance guards one Store: writes
// serialize through mu so a concurrent PUT/DELETE pair always Clone()s off
// a consistent base.
type Server struct {
	store    *dynconfig.Store
	registry *plugin.Registry
	apiKey   string

	mu sync.Mutex
}

// NewServer builds an admin Server requiring apiKey on every request.
func NewServer(store *dynconfig.Store, registry *plugin.Registry, apiKey string) *Server {
	return &Server{store: store, registry: registry, apiKey: apiKey}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.apiKey == "" || r.Header.Get("X-API-Key") != s.apiKey {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	resource, id, ok := parsePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, resource, id)
	case http.MethodPut:
		if id == "" {
			http.Error(w, "id is required", http.StatusBadRequest)
			return
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
			return
		}
		s.handlePut(w, r, resource, id)
	case http.MethodDelete:
		if id == "" {
			http.Error(w, "id is required", http.StatusBadRequest)
			return
		}
		s.handleDelete(w, resource, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// parsePath splits "/apisix/admin/{resource}[/{id}]" into its parts.
func parsePath(path string) (resource, id string, ok bool) {
	const prefix = "/apisix/admin/"
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return "", "", false
	}
	parts := strings.SplitN(rest, "/", 2)
	switch len(parts) {
	case 1:
		return parts[0], "", true
	case 2:
		return parts[0], parts[1], true
	default:
		return "", "", false
	}
}

func (s *Server) handleGet(w http.ResponseWriter, resource, id string) {
	snap := s.store.Get()
	var v interface{}
	var found bool
	switch resource {
	case "routes":
		v, found = lookupOrList(id, snap.Routes)
	case "services":
		v, found = lookupOrList(id, snap.Services)
	case "upstreams":
		v, found = lookupOrList(id, snap.Upstreams)
	case "global_rules":
		v, found = lookupOrList(id, snap.GlobalRules)
	case "ssls":
		v, found = lookupOrList(id, snap.SSLCerts)
	default:
		http.NotFound(w, nil)
		return
	}
	if !found {
		http.NotFound(w, nil)
		return
	}
	writeJSON(w, http.StatusOK, valueWrapper{Value: v})
}

// valueWrapper mirrors original_source/src/admin/mod.rs's ValueWrapper: a
// GET response always nests the stored entity under a "value" key rather
// than returning it bare.
type valueWrapper struct {
	Value interface{} `json:"value"`
}

func lookupOrList[T any](id string, m map[string]T) (interface{}, bool) {
	if id == "" {
		return m, true
	}
	v, ok := m[id]
	return v, ok
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request, resource, id string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.store.Get().Clone()

	switch resource {
	case "routes":
		entity := &config.Route{}
		if err := decodeAndValidate(body, entity, s.registry); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		entity.ID = id
		next.Routes[id] = entity
	case "services":
		entity := &config.Service{}
		if err := decodeAndValidate(body, entity, s.registry); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		entity.ID = id
		next.Services[id] = entity
	case "upstreams":
		entity := &config.Upstream{}
		if err := json.Unmarshal(body, entity); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		entity.ID = id
		if err := entity.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		next.Upstreams[id] = entity
	case "global_rules":
		entity := &config.GlobalRule{}
		if err := decodeAndValidate(body, entity, s.registry); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		entity.ID = id
		next.GlobalRules[id] = entity
	case "ssls":
		entity := &config.SSLCert{}
		if err := json.Unmarshal(body, entity); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		entity.ID = id
		if err := entity.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		next.SSLCerts[id] = entity
	default:
		http.NotFound(w, r)
		return
	}

	s.store.Swap(next)
	writeJSON(w, http.StatusOK, map[string]string{"action": "set", "id": id})
}

// pluginBearer is the minimal shape a route/service/global_rule PUT body
// needs for plugin validation, decoded generically so the admin
// package doesn't need a type switch per owning entity.
type pluginBearer interface {
	PluginNames() []string
	PluginConfig(name string) map[string]interface{}
}

func decodeAndValidate(body []byte, entity interface{}, registry *plugin.Registry) error {
	if err := json.Unmarshal(body, entity); err != nil {
		return err
	}
	type validator interface{ Validate() error }
	if v, ok := entity.(validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if pb, ok := entity.(pluginBearer); ok {
		for _, name := range pb.PluginNames() {
			if _, err := registry.Build(name, pb.PluginConfig(name)); err != nil {
				return fmt.Errorf("admin: plugin %q: %w", name, err)
			}
		}
	}
	return nil
}

func (s *Server) handleDelete(w http.ResponseWriter, resource, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.store.Get().Clone()

	switch resource {
	case "routes":
		delete(next.Routes, id)
	case "services":
		delete(next.Services, id)
	case "upstreams":
		delete(next.Upstreams, id)
	case "global_rules":
		delete(next.GlobalRules, id)
	case "ssls":
		delete(next.SSLCerts, id)
	default:
		http.NotFound(w, nil)
		return
	}

	s.store.Swap(next)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
