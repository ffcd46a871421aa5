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

package jwtauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pingsix/pkg/reqctx"
)

func sign(t *testing.T, secret string, claims map[string]interface{}) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payloadBytes, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(payloadBytes)
	signed := header + "." + payload
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signed))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return signed + "." + sig
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	p, err := New(map[string]interface{}{"secret": "s3cret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token := sign(t, "s3cret", map[string]interface{}{"sub": "alice"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	ctx := reqctx.New(req, rec)

	if err := p.RequestFilter(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.ShortCircuited {
		t.Fatal("expected valid token to be forwarded")
	}
}

func TestJWTAuthRejectsBadSignature(t *testing.T) {
	p, err := New(map[string]interface{}{"secret": "s3cret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token := sign(t, "wrong-secret", map[string]interface{}{"sub": "alice"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	ctx := reqctx.New(req, rec)

	if err := p.RequestFilter(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ctx.ShortCircuited || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 rejection, got short-circuit=%v code=%d", ctx.ShortCircuited, rec.Code)
	}
}

func TestJWTAuthRejectsExpiredToken(t *testing.T) {
	p, err := New(map[string]interface{}{"secret": "s3cret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token := sign(t, "s3cret", map[string]interface{}{"exp": time.Now().Add(-time.Hour).Unix()})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	ctx := reqctx.New(req, rec)

	if err := p.RequestFilter(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ctx.ShortCircuited {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestJWTAuthAcceptsQuerySource(t *testing.T) {
	p, err := New(map[string]interface{}{"secret": "s3cret", "key_source": "VARS", "key": "token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token := sign(t, "s3cret", map[string]interface{}{"sub": "alice"})

	req := httptest.NewRequest(http.MethodGet, "/?token="+token, nil)
	rec := httptest.NewRecorder()
	ctx := reqctx.New(req, rec)

	if err := p.RequestFilter(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.ShortCircuited {
		t.Fatal("expected valid query-sourced token to be forwarded")
	}
}

func TestJWTAuthHideCredentialsStripsHeader(t *testing.T) {
	p, err := New(map[string]interface{}{"secret": "s3cret", "hide_credentials": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token := sign(t, "s3cret", map[string]interface{}{"sub": "alice"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	ctx := reqctx.New(req, rec)

	if err := p.RequestFilter(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Header.Get("Authorization") != "" {
		t.Fatal("expected Authorization header to be stripped")
	}
}

func TestJWTAuthRejectsMissingToken(t *testing.T) {
	p, err := New(map[string]interface{}{"secret": "s3cret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ctx := reqctx.New(req, rec)

	if err := p.RequestFilter(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ctx.ShortCircuited {
		t.Fatal("expected missing token to be rejected")
	}
}
