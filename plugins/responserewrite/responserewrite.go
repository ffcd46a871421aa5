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

// Package responserewrite implements the response-rewrite plugin:
// status-code override and header set/remove applied to the
// upstream's response before it reaches the client (spec.md §9 "rewrite
// (~900-1100)").
package responserewrite

import (
	"pingsix/pkg/plugin"
	"pingsix/pkg/reqctx"
)

const Name = "response-rewrite"
const Priority = 899

func init() {
	plugin.Global().Register(Name, New)
}

type responseRewrite struct {
	plugin.Base
	statusCode int
	setHeaders map[string]string
	delHeaders []string
}

func New(cfg map[string]interface{}) (plugin.Plugin, error) {
	r := &responseRewrite{
		Base:       plugin.Base{PluginName: Name, PluginPriority: Priority},
		statusCode: plugin.CfgInt(cfg, "status_code", 0),
	}
	if headers, ok := cfg["headers"].(map[string]interface{}); ok {
		if set, ok := headers["set"].(map[string]interface{}); ok {
			r.setHeaders = make(map[string]string, len(set))
			for k, v := range set {
				if s, ok := v.(string); ok {
					r.setHeaders[k] = s
				}
			}
		}
		if remove, ok := headers["remove"].([]interface{}); ok {
			for _, v := range remove {
				if s, ok := v.(string); ok {
					r.delHeaders = append(r.delHeaders, s)
				}
			}
		}
	}
	return r, nil
}

// ResponseFilter runs after the upstream response headers are received
// but before they're flushed to the client.
func (r *responseRewrite) ResponseFilter(ctx *reqctx.Context) error {
	h := ctx.ResponseWriter.Header()
	for k, v := range r.setHeaders {
		h.Set(k, v)
	}
	for _, k := range r.delHeaders {
		h.Del(k)
	}
	if r.statusCode != 0 {
		ctx.StatusCode = r.statusCode
	}
	return nil
}
