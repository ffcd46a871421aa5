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

// Package requestid implements the request-id plugin: stamping an
// X-Request-Id header generated with google/uuid if the client didn't
// already supply one (spec.md §9 "request-id (~12000+)").
package requestid

import (
	"github.com/google/uuid"

	"pingsix/pkg/plugin"
	"pingsix/pkg/reqctx"
)

const Name = "request-id"
const Priority = 12000

func init() {
	plugin.Global().Register(Name, New)
}

type requestID struct {
	plugin.Base
	headerName string
}

func New(cfg map[string]interface{}) (plugin.Plugin, error) {
	return &requestID{
		Base:       plugin.Base{PluginName: Name, PluginPriority: Priority},
		headerName: plugin.CfgString(cfg, "header_name", "X-Request-Id"),
	}, nil
}

func (r *requestID) EarlyRequestFilter(ctx *reqctx.Context) error {
	if ctx.Request.Header.Get(r.headerName) == "" {
		ctx.Request.Header.Set(r.headerName, uuid.NewString())
	}
	return nil
}

func (r *requestID) ResponseFilter(ctx *reqctx.Context) error {
	ctx.ResponseWriter.Header().Set(r.headerName, ctx.Request.Header.Get(r.headerName))
	return nil
}
