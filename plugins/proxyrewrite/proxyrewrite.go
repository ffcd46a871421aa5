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

// Package proxyrewrite implements the proxy-rewrite plugin: URI regex
// rewrite plus header set/remove, applied just before the request is
// forwarded upstream (spec.md §8 "Applying proxy-rewrite with an identity
// regex pair is a no-op on the URI").
package proxyrewrite

import (
	"regexp"

	"pingsix/pkg/plugin"
	"pingsix/pkg/reqctx"
)

const Name = "proxy-rewrite"

// Priority sits in the rewrite band (spec.md §9 "rewrite (~900-1100)").
const Priority = 1000

func init() {
	plugin.Global().Register(Name, New)
}

type proxyRewrite struct {
	plugin.Base
	uriPattern *regexp.Regexp
	uriReplace string
	setHeaders map[string]string
	delHeaders []string
}

// New builds a proxy-rewrite instance from {regex_uri: [pattern,
// replacement], headers: {set: {...}, remove: [...]}}.
func New(cfg map[string]interface{}) (plugin.Plugin, error) {
	p := &proxyRewrite{Base: plugin.Base{PluginName: Name, PluginPriority: Priority}}
	if pair, ok := cfg["regex_uri"].([]interface{}); ok && len(pair) == 2 {
		pattern, _ := pair[0].(string)
		replace, _ := pair[1].(string)
		if pattern != "" {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, err
			}
			p.uriPattern = re
			p.uriReplace = replace
		}
	}
	if headers, ok := cfg["headers"].(map[string]interface{}); ok {
		if set, ok := headers["set"].(map[string]interface{}); ok {
			p.setHeaders = make(map[string]string, len(set))
			for k, v := range set {
				if s, ok := v.(string); ok {
					p.setHeaders[k] = s
				}
			}
		}
		if remove, ok := headers["remove"].([]interface{}); ok {
			for _, v := range remove {
				if s, ok := v.(string); ok {
					p.delHeaders = append(p.delHeaders, s)
				}
			}
		}
	}
	return p, nil
}

// UpstreamRequestFilter runs just before the request is proxied, after
// load-balancer selection, matching spec.md §4.2's phase ordering.
func (p *proxyRewrite) UpstreamRequestFilter(ctx *reqctx.Context) error {
	if p.uriPattern != nil {
		ctx.Request.URL.Path = p.uriPattern.ReplaceAllString(ctx.Request.URL.Path, p.uriReplace)
	}
	for k, v := range p.setHeaders {
		ctx.Request.Header.Set(k, v)
	}
	for _, k := range p.delHeaders {
		ctx.Request.Header.Del(k)
	}
	return nil
}
