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

// Package keyauth implements the key-auth plugin: a static API key carried
// in a configurable request header (spec.md §8 scenario S3).
package keyauth

import (
	"net/http"

	"pingsix/pkg/plugin"
	"pingsix/pkg/reqctx"
)

const Name = "key-auth"

// Priority sits in the auth reservation band (spec.md §9 "Plugin priority
// scale": "auth (~2500-2600)").
const Priority = 2500

func init() {
	plugin.Global().Register(Name, New)
}

type keyAuth struct {
	plugin.Base
	header string
	key    string
}

// New builds a key-auth instance from its decoded config: {header, key}.
func New(cfg map[string]interface{}) (plugin.Plugin, error) {
	return &keyAuth{
		Base:   plugin.Base{PluginName: Name, PluginPriority: Priority},
		header: plugin.CfgString(cfg, "header", "apikey"),
		key:    plugin.CfgString(cfg, "key", ""),
	}, nil
}

// RequestFilter rejects a request whose header value doesn't match the
// configured key, writing the 401 + WWW-Authenticate response spec.md §8
// S3 requires.
func (k *keyAuth) RequestFilter(ctx *reqctx.Context) error {
	got := ctx.Request.Header.Get(k.header)
	if got == "" || got != k.key {
		w := ctx.ResponseWriter
		w.Header().Set("WWW-Authenticate", `ApiKey error="invalid_key"`)
		w.WriteHeader(http.StatusUnauthorized)
		ctx.ShortCircuited = true
		ctx.StatusCode = http.StatusUnauthorized
		return nil
	}
	return nil
}
