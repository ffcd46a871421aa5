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

// Package gzip implements the gzip response_body_filter plugin using
// klauspost/compress, which the retrieval pack already pulls in
// (spec.md §9 "body/compression (~900-1000)").
package gzip

import (
	"bytes"
	"strings"

	"github.com/klauspost/compress/gzip"

	"pingsix/pkg/plugin"
	"pingsix/pkg/reqctx"
)

const Name = "gzip"
const Priority = 995

const ctxKey = "pingsix_gzip_writer"

func init() {
	plugin.Global().Register(Name, New)
}

type gzipPlugin struct {
	plugin.Base
	minLength int
	level     int
}

func New(cfg map[string]interface{}) (plugin.Plugin, error) {
	return &gzipPlugin{
		Base:      plugin.Base{PluginName: Name, PluginPriority: Priority},
		minLength: plugin.CfgInt(cfg, "min_length", 256),
		level:     plugin.CfgInt(cfg, "level", gzip.DefaultCompression),
	}, nil
}

type writerState struct {
	buf *bytes.Buffer
	w   *gzip.Writer
}

func (g *gzipPlugin) ResponseFilter(ctx *reqctx.Context) error {
	if !strings.Contains(ctx.Request.Header.Get("Accept-Encoding"), "gzip") {
		return nil
	}
	buf := &bytes.Buffer{}
	w, err := gzip.NewWriterLevel(buf, g.level)
	if err != nil {
		return err
	}
	ctx.Set(ctxKey, &writerState{buf: buf, w: w})
	h := ctx.ResponseWriter.Header()
	h.Set("Content-Encoding", "gzip")
	h.Del("Content-Length")
	h.Add("Vary", "Accept-Encoding")
	return nil
}

func (g *gzipPlugin) ResponseBodyFilter(ctx *reqctx.Context, chunk []byte) ([]byte, error) {
	v, ok := ctx.Get(ctxKey)
	if !ok {
		return chunk, nil
	}
	state := v.(*writerState)
	if chunk == nil {
		if err := state.w.Close(); err != nil {
			return nil, err
		}
		out := append([]byte(nil), state.buf.Bytes()...)
		state.buf.Reset()
		return out, nil
	}
	if _, err := state.w.Write(chunk); err != nil {
		return nil, err
	}
	if err := state.w.Flush(); err != nil {
		return nil, err
	}
	out := append([]byte(nil), state.buf.Bytes()...)
	state.buf.Reset()
	return out, nil
}
