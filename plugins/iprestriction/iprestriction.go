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

// Package iprestriction implements the ip-restriction plugin: an allow
// list, a deny list, or both, evaluated against the peer address
// (spec.md §9 "Plugin priority scale": access control ~3000-4000).
package iprestriction

import (
	"net"
	"net/http"

	"pingsix/pkg/plugin"
	"pingsix/pkg/reqctx"
)

const Name = "ip-restriction"
const Priority = 3000

func init() {
	plugin.Global().Register(Name, New)
}

type ipRestriction struct {
	plugin.Base
	allow []*net.IPNet
	deny  []*net.IPNet
}

func New(cfg map[string]interface{}) (plugin.Plugin, error) {
	return &ipRestriction{
		Base:  plugin.Base{PluginName: Name, PluginPriority: Priority},
		allow: parseCIDRs(plugin.CfgStringSlice(cfg, "allow")),
		deny:  parseCIDRs(plugin.CfgStringSlice(cfg, "deny")),
	}, nil
}

func parseCIDRs(patterns []string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(patterns))
	for _, p := range patterns {
		if _, n, err := net.ParseCIDR(p); err == nil {
			out = append(out, n)
		} else if ip := net.ParseIP(p); ip != nil {
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			_, n, _ := net.ParseCIDR(ip.String() + "/" + itoa(bits))
			out = append(out, n)
		}
	}
	return out
}

func itoa(n int) string {
	if n == 32 {
		return "32"
	}
	return "128"
}

// RequestFilter rejects with 403 when the peer matches the deny list, or
// when an allow list is configured and the peer matches none of it.
func (ipr *ipRestriction) RequestFilter(ctx *reqctx.Context) error {
	host, _, err := net.SplitHostPort(ctx.Request.RemoteAddr)
	if err != nil {
		host = ctx.Request.RemoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil
	}
	if matches(ipr.deny, ip) || (len(ipr.allow) > 0 && !matches(ipr.allow, ip)) {
		ctx.ResponseWriter.WriteHeader(http.StatusForbidden)
		ctx.ShortCircuited = true
		ctx.StatusCode = http.StatusForbidden
	}
	return nil
}

func matches(nets []*net.IPNet, ip net.IP) bool {
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
