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

// Package cors implements the cors plugin, including the OPTIONS
// preflight short-circuit (spec.md §4 supplemented features).
package cors

import (
	"net/http"
	"strings"

	"pingsix/pkg/plugin"
	"pingsix/pkg/reqctx"
)

const Name = "cors"

// Priority sits at the top of the access-control band: CORS runs before
// auth or rate-limit plugins, so an allowed origin's preflight is answered
// without reaching them; a disallowed origin gets no CORS headers and
// continues down the chain (spec.md §9 "access control (~3000-4000)").
const Priority = 4000

func init() {
	plugin.Global().Register(Name, New)
}

type cors struct {
	plugin.Base
	allowOrigins []string
	allowMethods string
	allowHeaders string
	maxAge       string
}

func New(cfg map[string]interface{}) (plugin.Plugin, error) {
	origins := plugin.CfgStringSlice(cfg, "allow_origins")
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	methods := plugin.CfgStringSlice(cfg, "allow_methods")
	if len(methods) == 0 {
		methods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	return &cors{
		Base:         plugin.Base{PluginName: Name, PluginPriority: Priority},
		allowOrigins: origins,
		allowMethods: strings.Join(methods, ","),
		allowHeaders: plugin.CfgString(cfg, "allow_headers", "*"),
		maxAge:       plugin.CfgString(cfg, "max_age", "3600"),
	}, nil
}

func (c *cors) RequestFilter(ctx *reqctx.Context) error {
	origin := ctx.Request.Header.Get("Origin")
	if origin == "" {
		return nil
	}
	allowed := c.matchOrigin(origin)
	if allowed == "" {
		return nil
	}
	h := ctx.ResponseWriter.Header()
	h.Set("Access-Control-Allow-Origin", allowed)
	h.Set("Vary", "Origin")
	if ctx.Request.Method == http.MethodOptions {
		h.Set("Access-Control-Allow-Methods", c.allowMethods)
		h.Set("Access-Control-Allow-Headers", c.allowHeaders)
		h.Set("Access-Control-Max-Age", c.maxAge)
		ctx.ResponseWriter.WriteHeader(http.StatusNoContent)
		ctx.ShortCircuited = true
		ctx.StatusCode = http.StatusNoContent
	}
	return nil
}

func (c *cors) matchOrigin(origin string) string {
	for _, o := range c.allowOrigins {
		if o == "*" || o == origin {
			return o
		}
	}
	return ""
}
