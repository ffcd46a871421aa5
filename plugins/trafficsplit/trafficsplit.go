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

// Package trafficsplit implements the traffic-split plugin: a weighted
// choice among named upstream_ids, recorded in the request context for
// the orchestrator's upstream resolution step to honor in place of the
// route's own binding (spec.md §4.3 "Resolution precedence").
package trafficsplit

import (
	"math/rand"

	"pingsix/pkg/plugin"
	"pingsix/pkg/reqctx"
)

const Name = "traffic-split"

// Priority must run before upstream resolution but after access control,
// so it sits at the top of the rewrite band.
const Priority = 1100

func init() {
	plugin.Global().Register(Name, New)
}

type weightedUpstream struct {
	upstreamID string
	weight     int
}

type trafficSplit struct {
	plugin.Base
	rules []weightedUpstream
	total int
}

// New builds a traffic-split instance from {rules: [{upstream_id,
// weight}, ...]}.
func New(cfg map[string]interface{}) (plugin.Plugin, error) {
	ts := &trafficSplit{Base: plugin.Base{PluginName: Name, PluginPriority: Priority}}
	raw, _ := cfg["rules"].([]interface{})
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		w := plugin.CfgInt(m, "weight", 1)
		id := plugin.CfgString(m, "upstream_id", "")
		if id == "" || w <= 0 {
			continue
		}
		ts.rules = append(ts.rules, weightedUpstream{upstreamID: id, weight: w})
		ts.total += w
	}
	return ts, nil
}

func (ts *trafficSplit) RequestFilter(ctx *reqctx.Context) error {
	if ts.total == 0 {
		return nil
	}
	pick := rand.Intn(ts.total)
	for _, rule := range ts.rules {
		if pick < rule.weight {
			ctx.Set(reqctx.KeyUpstreamOverride, rule.upstreamID)
			return nil
		}
		pick -= rule.weight
	}
	return nil
}
