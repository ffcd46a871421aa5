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

// Package basicauth implements HTTP Basic auth against a single
// configured username/password pair (spec.md §4 supplemented auth
// plugins).
package basicauth

import (
	"net/http"

	"pingsix/pkg/plugin"
	"pingsix/pkg/reqctx"
)

const Name = "basic-auth"
const Priority = 2520

func init() {
	plugin.Global().Register(Name, New)
}

type basicAuth struct {
	plugin.Base
	username string
	password string
}

func New(cfg map[string]interface{}) (plugin.Plugin, error) {
	return &basicAuth{
		Base:     plugin.Base{PluginName: Name, PluginPriority: Priority},
		username: plugin.CfgString(cfg, "username", ""),
		password: plugin.CfgString(cfg, "password", ""),
	}, nil
}

func (b *basicAuth) RequestFilter(ctx *reqctx.Context) error {
	user, pass, ok := ctx.Request.BasicAuth()
	if !ok || user != b.username || pass != b.password {
		w := ctx.ResponseWriter
		w.Header().Set("WWW-Authenticate", `Basic realm="pingsix"`)
		w.WriteHeader(http.StatusUnauthorized)
		ctx.ShortCircuited = true
		ctx.StatusCode = http.StatusUnauthorized
		return nil
	}
	return nil
}
