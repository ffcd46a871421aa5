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

package proxy

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"pingsix/internal/config"
	"pingsix/internal/gwerr"
	"pingsix/internal/vars"
	"pingsix/pkg/cache"
	"pingsix/pkg/reqctx"
	"pingsix/pkg/upstream"
)

// defaultOverallTimeout bounds an upstream attempt when a route declares
// no timeout triple at all.
const defaultOverallTimeout = 30 * time.Second

// newUpstreamClient builds the one shared client every outbound attempt
// goes through; per-attempt connect/read/send budgets are enforced via
// the request's own context deadline rather than per-route transports,
// which keeps one dial/keep-alive pool shared across all upstreams
// (spec.md §9 "Connection reuse").
func newUpstreamClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: nil,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        256,
			MaxIdleConnsPerHost: 64,
			IdleConnTimeout:     90 * time.Second,
		},
		// CheckRedirect returns ErrUseLastResponse: the gateway forwards
		// whatever the backend returns, redirects included, rather than
		// following them itself.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// fetchUpstream resolves up's runtime, runs the retry loop (spec.md §4.3
// "Retry": "tries <= retries+1, elapsed <= retry_timeout, bypassing the
// plugin pipeline on a retry"), and fully reads the winning response into
// a cache.Entry, the shape both the cache path and the direct-serve path
// consume uniformly.
func (g *Gateway) fetchUpstream(ctx *reqctx.Context, ix *indices, route *config.Route, up *config.Upstream) (*cache.Entry, error) {
	rt := ix.runtimeFor(up, g.health)
	key := hashKeyFor(ctx.Request, up)
	timeout := routeTimeout(route)

	var bodyBytes []byte
	if ctx.Request.Body != nil && ctx.Request.Body != http.NoBody {
		b, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			return nil, gwerr.Wrap(gwerr.KindUpstreamNetwork, http.StatusBadGateway, "read request body", err)
		}
		bodyBytes = b
	}

	maxAttempts := up.Retries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var deadline time.Time
	if up.RetryTimeout > 0 {
		deadline = ctx.StartTime.Add(up.RetryTimeout)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			ctx.Retries++
			if !deadline.IsZero() && time.Now().After(deadline) {
				break
			}
		}
		peer, err := rt.Select(key)
		if err != nil {
			lastErr = err
			if !retriable(err) {
				break
			}
			continue
		}
		entry, err := g.roundTrip(ctx, up, peer, bodyBytes, timeout)
		if err == nil {
			return entry, nil
		}
		lastErr = err
		if !retriable(err) {
			break
		}
	}
	if lastErr == nil {
		lastErr = gwerr.New(gwerr.KindUpstreamSelection, http.StatusBadGateway, "no upstream node available for "+up.ID)
	}
	return nil, lastErr
}

func retriable(err error) bool {
	var gerr *gwerr.Error
	if errors.As(err, &gerr) {
		return gerr.Kind.Retriable()
	}
	return true
}

// roundTrip sends one attempt to peer and fully buffers the response
// body. Buffering (rather than streaming straight to the client) is what
// lets a cache miss and a cache hit share one code path in writeEntry,
// and is required anyway for the single-flight fan-out to hand the same
// bytes to every waiter (spec.md §4.7 "Single-flight on miss").
func (g *Gateway) roundTrip(ctx *reqctx.Context, up *config.Upstream, peer upstream.Peer, bodyBytes []byte, timeout time.Duration) (*cache.Entry, error) {
	outReq, cancel, err := g.buildOutboundRequest(ctx, up, peer, bodyBytes, timeout)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.KindUpstreamNetwork, http.StatusBadGateway, "build upstream request", err)
	}
	defer cancel()
	resp, err := g.client.Do(outReq)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.KindUpstreamNetwork, http.StatusBadGateway, "upstream request to "+peer.Addr, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.KindUpstreamNetwork, http.StatusBadGateway, "read upstream response from "+peer.Addr, err)
	}
	return &cache.Entry{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}

// buildOutboundRequest mirrors the inbound method/path/query onto peer,
// applying the upstream's pass_host mode to the Host header (spec.md §4.3
// "pass_host": pass keeps the inbound Host, rewrite/rewrite_selected use
// the value Peer.ForwardedFor carries).
func (g *Gateway) buildOutboundRequest(ctx *reqctx.Context, up *config.Upstream, peer upstream.Peer, bodyBytes []byte, timeout time.Duration) (*http.Request, context.CancelFunc, error) {
	scheme := "http"
	if peer.TLS {
		scheme = "https"
	}
	u := *ctx.Request.URL
	u.Scheme = scheme
	u.Host = peer.Addr

	outCtx, cancel := context.WithTimeout(ctx.Request.Context(), timeout)

	var body io.Reader
	if len(bodyBytes) > 0 {
		body = bytes.NewReader(bodyBytes)
	}
	outReq, err := http.NewRequestWithContext(outCtx, ctx.Request.Method, u.String(), body)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	outReq.Header = ctx.Request.Header.Clone()
	outReq.Header.Del("Connection")

	switch up.PassHost {
	case config.PassHostRewrite, config.PassHostRewriteSelected:
		if peer.ForwardedFor != "" {
			outReq.Host = peer.ForwardedFor
		}
	default:
		outReq.Host = ctx.Request.Host
	}
	return outReq, cancel, nil
}

// routeTimeout sums a route's connect/read/send triple into one overall
// deadline for the outbound request's context (spec.md §4.3 "Timeout"
// names three phases; enforcing their sum as a single context deadline
// rather than three independently-armed timers). A route that declares none gets
// defaultOverallTimeout.
func routeTimeout(route *config.Route) time.Duration {
	total := route.Timeout.Connect + route.Timeout.Read + route.Timeout.Send
	if total <= 0 {
		return defaultOverallTimeout
	}
	return total
}

// hashKeyFor derives the affinity key a hash-based selector (fnv, ketama)
// uses, resolving config.Upstream's lowercase HashOn vocabulary to
// internal/vars' uppercase Source constants (spec.md §4.3 "hash_on"
// shares the extraction rules of §4.6's variable sources). Falls back to
// the client address so round_robin/random policies, which ignore the
// key, and a hash policy with no configured key both still get a stable
// value.
func hashKeyFor(r *http.Request, up *config.Upstream) string {
	req := vars.FromHTTPRequest(r, localAddr(r))
	if up.HashOn != "" && up.Key != "" {
		var source vars.Source
		switch up.HashOn {
		case config.HashOnHeader:
			source = vars.SourceHeader
		case config.HashOnCookie:
			source = vars.SourceCookie
		default:
			source = vars.SourceVars
		}
		if v := vars.Extract(req, source, up.Key); v != "" {
			return v
		}
	}
	return vars.Extract(req, vars.SourceVars, "remote_addr")
}

func localAddr(r *http.Request) string {
	if addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		return addr.String()
	}
	return ""
}
