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

// Package csrf implements the csrf plugin: double-submit cookie
// verification for state-changing methods (spec.md §4 supplemented
// features from original_source/src/plugins/csrf.rs).
package csrf

import (
	"net/http"

	"pingsix/pkg/plugin"
	"pingsix/pkg/reqctx"
)

const Name = "csrf"

// Priority sits just below access control: it must run after CORS
// decides the origin is acceptable, but before the request reaches
// upstream (spec.md §9 "access control (~3000-4000)").
const Priority = 2980

var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

func init() {
	plugin.Global().Register(Name, New)
}

type csrf struct {
	plugin.Base
	cookieName string
	headerName string
}

func New(cfg map[string]interface{}) (plugin.Plugin, error) {
	return &csrf{
		Base:       plugin.Base{PluginName: Name, PluginPriority: Priority},
		cookieName: plugin.CfgString(cfg, "cookie_name", "pingsix-csrf-token"),
		headerName: plugin.CfgString(cfg, "header_name", "X-CSRF-Token"),
	}, nil
}

func (c *csrf) RequestFilter(ctx *reqctx.Context) error {
	if safeMethods[ctx.Request.Method] {
		return nil
	}
	cookie, err := ctx.Request.Cookie(c.cookieName)
	header := ctx.Request.Header.Get(c.headerName)
	if err != nil || cookie.Value == "" || header == "" || cookie.Value != header {
		ctx.ResponseWriter.WriteHeader(http.StatusForbidden)
		ctx.ShortCircuited = true
		ctx.StatusCode = http.StatusForbidden
	}
	return nil
}
