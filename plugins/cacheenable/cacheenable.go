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

// Package cacheenable implements the cache-enable plugin: it does not
// cache anything itself, it opts a route into the response cache filter
// (pkg/cache) by recording settings in the request context, the same
// indirection spec.md §9 describes for "pingsix_cache_settings" (spec.md
// §9 "cache (~1085)").
package cacheenable

import (
	"fmt"
	"time"

	"pingsix/pkg/cache"
	"pingsix/pkg/plugin"
	"pingsix/pkg/reqctx"
)

const Name = "cache-enable"
const Priority = 1085

func init() {
	plugin.Global().Register(Name, New)
}

type cacheEnable struct {
	plugin.Base
	settings cache.Settings
}

// New builds a cache-enable instance from {cache_ttl, cache_key_vary,
// cache_http_status, hide_cache_headers, cache_max_size}.
func New(cfg map[string]interface{}) (plugin.Plugin, error) {
	var statuses []int
	for _, s := range plugin.CfgStringSlice(cfg, "cache_http_status") {
		var n int
		if _, err := fmt.Sscanf(s, "%d", &n); err == nil {
			statuses = append(statuses, n)
		}
	}
	return &cacheEnable{
		Base: plugin.Base{PluginName: Name, PluginPriority: Priority},
		settings: cache.Settings{
			TTL:         time.Duration(plugin.CfgInt(cfg, "cache_ttl", 60)) * time.Second,
			VaryKeys:    plugin.CfgStringSlice(cfg, "cache_key_vary"),
			Statuses:    statuses,
			HideHeaders: plugin.CfgBool(cfg, "hide_cache_headers", false),
			MaxSize:     int64(plugin.CfgInt(cfg, "cache_max_size", 0)),
		},
	}, nil
}

func (c *cacheEnable) RequestFilter(ctx *reqctx.Context) error {
	ctx.Set(reqctx.KeyCacheSettings, c.settings)
	return nil
}
