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

// Package brotli implements the brotli response_body_filter plugin.
// klauspost/compress has no brotli encoder, so this uses
// github.com/andybalholm/brotli, a dependency named directly in the
// retrieval pack's reference manifests (spec.md §9 "body/compression
// (~900-1000)").
package brotli

import (
	"bytes"
	"strings"

	"github.com/andybalholm/brotli"

	"pingsix/pkg/plugin"
	"pingsix/pkg/reqctx"
)

const Name = "brotli"
const Priority = 996

const ctxKey = "pingsix_brotli_writer"

func init() {
	plugin.Global().Register(Name, New)
}

type brotliPlugin struct {
	plugin.Base
	quality int
}

func New(cfg map[string]interface{}) (plugin.Plugin, error) {
	return &brotliPlugin{
		Base:    plugin.Base{PluginName: Name, PluginPriority: Priority},
		quality: plugin.CfgInt(cfg, "quality", brotli.DefaultCompression),
	}, nil
}

type writerState struct {
	buf *bytes.Buffer
	w   *brotli.Writer
}

func (b *brotliPlugin) ResponseFilter(ctx *reqctx.Context) error {
	accept := ctx.Request.Header.Get("Accept-Encoding")
	if !strings.Contains(accept, "br") {
		return nil
	}
	buf := &bytes.Buffer{}
	w := brotli.NewWriterLevel(buf, b.quality)
	ctx.Set(ctxKey, &writerState{buf: buf, w: w})
	h := ctx.ResponseWriter.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")
	h.Add("Vary", "Accept-Encoding")
	return nil
}

func (b *brotliPlugin) ResponseBodyFilter(ctx *reqctx.Context, chunk []byte) ([]byte, error) {
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
