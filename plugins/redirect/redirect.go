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

// Package redirect implements the redirect plugin: an unconditional
// redirect to a fixed URI, or an http-to-https upgrade (spec.md §9
// "rewrite (~900-1100)").
package redirect

import (
	"net/http"

	"pingsix/pkg/plugin"
	"pingsix/pkg/reqctx"
)

const Name = "redirect"
const Priority = 900

func init() {
	plugin.Global().Register(Name, New)
}

type redirect struct {
	plugin.Base
	uri        string
	httpToHTTPS bool
	statusCode int
}

func New(cfg map[string]interface{}) (plugin.Plugin, error) {
	code := plugin.CfgInt(cfg, "ret_code", http.StatusFound)
	return &redirect{
		Base:        plugin.Base{PluginName: Name, PluginPriority: Priority},
		uri:         plugin.CfgString(cfg, "uri", ""),
		httpToHTTPS: plugin.CfgBool(cfg, "http_to_https", false),
		statusCode:  code,
	}, nil
}

func (r *redirect) RequestFilter(ctx *reqctx.Context) error {
	target := r.uri
	if r.httpToHTTPS && ctx.Request.TLS == nil {
		target = "https://" + ctx.Request.Host + ctx.Request.URL.RequestURI()
	}
	if target == "" {
		return nil
	}
	http.Redirect(ctx.ResponseWriter, ctx.Request, target, r.statusCode)
	ctx.ShortCircuited = true
	ctx.StatusCode = r.statusCode
	return nil
}
