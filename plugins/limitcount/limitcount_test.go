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

package limitcount

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"pingsix/pkg/reqctx"
)

// TestLimitCountAdmitsUpToCount exercises spec.md §8 scenario S4: with
// count=2 the first two requests from the same key are admitted and the
// third is rejected with 503 and a remaining-quota header of 0.
func TestLimitCountAdmitsUpToCount(t *testing.T) {
	p, err := New(map[string]interface{}{
		"key_type":                 "VARS",
		"key":                      "remote_addr",
		"time_window":              60,
		"count":                    2,
		"show_limit_quota_header": true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results := make([]int, 3)
	remainders := make([]string, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		ctx := reqctx.New(req, rec)

		if err := p.RequestFilter(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		results[i] = ctx.StatusCode
		remainders[i] = rec.Header().Get("X-Rate-Limit-Remaining")
		if i < 2 && ctx.ShortCircuited {
			t.Fatalf("request %d: expected admission, got short-circuit", i)
		}
		if i == 2 && !ctx.ShortCircuited {
			t.Fatalf("request %d: expected rejection", i)
		}
	}

	if results[2] != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 on third request, got %d", results[2])
	}
	if remainders[2] != "0" {
		t.Fatalf("expected remaining quota 0 on rejection, got %q", remainders[2])
	}
}

// TestLimitCountKeysAreIndependent verifies that two distinct derived keys
// (here, two distinct client addresses) get independent windows.
func TestLimitCountKeysAreIndependent(t *testing.T) {
	p, err := New(map[string]interface{}{
		"key_type":    "VARS",
		"key":         "remote_addr",
		"time_window": 60,
		"count":       1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		ctx := reqctx.New(req, rec)
		if err := p.RequestFilter(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ctx.ShortCircuited {
			t.Fatalf("expected first request from %s to be admitted", addr)
		}
	}
}

// TestLimitCountMissingKeyFallsBackToDash exercises the "-" sentinel key
// used when the derived variable is empty (e.g. no remote_addr).
func TestLimitCountMissingKeyFallsBackToDash(t *testing.T) {
	inst, err := New(map[string]interface{}{
		"key_type":    "HEADER",
		"key":         "X-Not-Present",
		"time_window": 60,
		"count":       1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lc := inst.(*limitCount)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ctx := reqctx.New(req, rec)
	if err := lc.RequestFilter(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := lc.windows["-"]; !ok {
		t.Fatal("expected a window keyed on the '-' sentinel")
	}
}

func TestLimitCountDefaultConfig(t *testing.T) {
	p, err := New(map[string]interface{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lc := p.(*limitCount)
	if lc.count != 1 {
		t.Fatalf("expected default count 1, got %d", lc.count)
	}
	if lc.window.String() != "1m0s" {
		t.Fatalf("expected default window 60s, got %s", lc.window)
	}
}
