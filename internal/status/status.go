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

// Package status serves the gateway's readiness probe: a single
// /status/ready endpoint that flips from 503 to 200 the moment the
// dynamic config plane completes its first successful list (spec.md §4.5
// "Readiness").
package status

import (
	"encoding/json"
	"net/http"

	"pingsix/internal/dynconfig"
)

type payload struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Handler returns an http.Handler serving GET /status/ready off store's
// readiness flag, and a 404 for any other path.
func Handler(store *dynconfig.Store) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !store.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(payload{Status: "error", Error: "initial configuration not yet loaded"})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(payload{Status: "ok"})
	})
	return mux
}
