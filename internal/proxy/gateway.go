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

// Package proxy is the request orchestrator: it wires the router, plugin
// pipeline, upstream subsystem, and response cache into one http.Handler
// (spec.md §4.2 "Request lifecycle"). Everything it reads per-request
// comes off one atomic load of indices, so a concurrent config reload
// never leaves a request straddling two snapshots.
package proxy

import (
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"pingsix/internal/config"
	"pingsix/internal/dynconfig"
	"pingsix/internal/gwerr"
	"pingsix/internal/gwlog"
	"pingsix/internal/healthcheck"
	"pingsix/internal/metrics"
	"pingsix/pkg/cache"
	"pingsix/pkg/plugin"
	"pingsix/pkg/reqctx"
	"pingsix/pkg/upstream"
)

// Gateway is the top-level http.Handler: one per process, holding the
// process-wide dynamic config store, plugin registry, and a hot-swappable
// set of derived indices (spec.md §9 "Shared-ownership and hot-swap of
// indices").
type Gateway struct {
	store    *dynconfig.Store
	registry *plugin.Registry
	metrics  *metrics.Registry
	health   *upstream.HealthState
	sched    *healthcheck.Scheduler
	cache    *cache.Filter

	idx atomic.Pointer[indices]

	client *http.Client
}

// NewGateway builds a Gateway over an already-populated store and starts
// tracking every subsequent Swap to rebuild its derived indices (spec.md
// §4.5 "After any mutation... rebuild the derived indices").
func NewGateway(store *dynconfig.Store, registry *plugin.Registry, m *metrics.Registry, health *upstream.HealthState, sched *healthcheck.Scheduler, cacheFilter *cache.Filter) *Gateway {
	g := &Gateway{
		store:    store,
		registry: registry,
		metrics:  m,
		health:   health,
		sched:    sched,
		cache:    cacheFilter,
		client:   newUpstreamClient(),
	}
	g.idx.Store(buildIndices(nil, store.Get(), registry, health, sched))
	store.OnSwap(func(_, next *config.Snapshot) {
		g.idx.Store(buildIndices(g.idx.Load(), next, registry, health, sched))
	})
	return g
}

// ServeHTTP implements the full request lifecycle (spec.md §4.2):
// early_request_filter, routing, request_filter, upstream resolution and
// selection (with the response cache interposed), upstream_request_filter,
// the upstream round trip with its retry budget, response_filter,
// response_body_filter, and logging, which always runs last regardless of
// how the request terminated.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := reqctx.New(r, w)
	ix := g.idx.Load()

	defer g.recordMetrics(ctx)

	if err := ix.global.RunEarlyRequestFilter(ctx); err != nil {
		g.writeError(ctx, err)
		ix.global.RunLogging(ctx)
		return
	}
	if ctx.ShortCircuited {
		ix.global.RunLogging(ctx)
		return
	}

	match, ok := ix.router.Match(r.Host, r.URL.Path, r.Method)
	if !ok {
		http.NotFound(w, r)
		ctx.StatusCode = http.StatusNotFound
		ix.global.RunLogging(ctx)
		return
	}
	route, ok := ix.snapshot.Routes[match.Route.RouteID()]
	if !ok {
		// The matched entry fell out of the snapshot between Build and
		// Match, which Match itself reads off the same immutable Router,
		// so this is unreachable in practice; treat it as a miss.
		http.NotFound(w, r)
		ctx.StatusCode = http.StatusNotFound
		ix.global.RunLogging(ctx)
		return
	}
	ctx.RouteID = route.ID
	ctx.ServiceID = route.ServiceID
	ctx.Params = match.Params

	var service plugin.ConfigSource
	if route.ServiceID != "" {
		if svc, ok := ix.snapshot.Services[route.ServiceID]; ok {
			service = svc
		}
	}
	chain, err := ix.chains.GetOrBuild(route.ID, func() (*plugin.Executor, error) {
		return plugin.Build(g.registry, route, service)
	})
	if err != nil {
		g.writeError(ctx, gwerr.Wrap(gwerr.KindConfiguration, http.StatusInternalServerError, "build plugin chain", err))
		ix.global.RunLogging(ctx)
		return
	}

	if err := runBothFilters(ctx, ix.global.RunRequestFilter, chain.RunRequestFilter); err != nil {
		g.writeError(ctx, err)
	}
	if ctx.ShortCircuited {
		ix.global.RunLogging(ctx)
		chain.RunLogging(ctx)
		return
	}

	overrideID, _ := ctx.GetString(reqctx.KeyUpstreamOverride)
	up := ix.resolveUpstream(route, overrideID)
	if up == nil {
		g.writeError(ctx, gwerr.New(gwerr.KindRouting, http.StatusBadGateway, "route "+route.ID+" resolves to no upstream"))
		ix.global.RunLogging(ctx)
		chain.RunLogging(ctx)
		return
	}
	ctx.UpstreamID = up.ID

	if err := runBothFilters(ctx, ix.global.RunUpstreamRequestFilter, chain.RunUpstreamRequestFilter); err != nil {
		g.writeError(ctx, err)
		ix.global.RunLogging(ctx)
		chain.RunLogging(ctx)
		return
	}
	if ctx.ShortCircuited {
		ix.global.RunLogging(ctx)
		chain.RunLogging(ctx)
		return
	}

	settings, hasCache := g.cacheSettingsFor(ctx)
	g.serve(ctx, ix, route, up, settings, hasCache, ix.global, chain)

	ix.global.RunLogging(ctx)
	chain.RunLogging(ctx)
}

// runBothFilters runs a global-scope hook then a route-scope hook in
// order, skipping the second if the first already short-circuited the
// request (spec.md §4.2 "global rules run before route-level plugins
// within a phase").
func runBothFilters(ctx *reqctx.Context, global, route func(*reqctx.Context) error) error {
	if err := global(ctx); err != nil {
		return err
	}
	if ctx.ShortCircuited {
		return nil
	}
	return route(ctx)
}

// cacheSettingsFor reads the Settings a cache-enable plugin recorded
// during request_filter, if any (spec.md §4.7 "a route opts into caching
// via its own plugin").
func (g *Gateway) cacheSettingsFor(ctx *reqctx.Context) (cache.Settings, bool) {
	v, ok := ctx.Get(reqctx.KeyCacheSettings)
	if !ok {
		return cache.Settings{}, false
	}
	s, ok := v.(cache.Settings)
	return s, ok
}

// serve resolves the response, either from cache or from the upstream
// subsystem, applies response_filter/response_body_filter, and writes it
// to the client.
func (g *Gateway) serve(ctx *reqctx.Context, ix *indices, route *config.Route, up *config.Upstream, settings cache.Settings, hasCache bool, global, chain *plugin.Executor) {
	r := ctx.Request
	bypass := clientBypassesCache(r)
	cacheable := hasCache && !bypass && (r.Method == http.MethodGet || r.Method == http.MethodHead)

	if cacheable {
		// The vary set isn't fully known until an origin response has been
		// seen: start from the plugin's configured vary list plus whatever
		// Vary fields a representative prior fetch for this method+path
		// already taught us (spec.md §4.7 "union of the origin's Vary
		// header list and the plugin's configured vary list").
		varyFields := cache.UnionVary(settings.VaryKeys, g.cache.VaryFields(r.Method, r.URL.Path))
		key := cache.Key(r.Method, r.URL.Path, r.Header, varyFields)
		if entry, ok := g.cache.Lookup(key); ok {
			g.writeEntry(ctx, global, chain, entry, settings.HideHeaders, cache.StatusHit)
			return
		}
		var finalKey string
		entry, err := g.cache.Fetch(key, r.Method, settings.TTL, func() (*cache.Entry, string, error) {
			fetched, ferr := g.fetchUpstream(ctx, ix, route, up)
			if ferr != nil {
				return nil, "", ferr
			}
			actualVary := cache.UnionVary(settings.VaryKeys, cache.VaryFieldsFromHeader(fetched.Header))
			g.cache.RememberVary(r.Method, r.URL.Path, actualVary)
			finalKey = cache.Key(r.Method, r.URL.Path, r.Header, actualVary)
			return fetched, finalKey, nil
		})
		if err != nil {
			g.writeError(ctx, err)
			return
		}
		if finalKey == "" {
			finalKey = key
		}
		if !settings.StatusAllowed(entry.StatusCode) {
			// Fetched and served, but the route's allow-list excludes
			// this status from ever being reused: drop it so the next
			// request re-fetches instead of serving a stale miss-store.
			g.cache.Evict(finalKey)
		}
		g.writeEntry(ctx, global, chain, entry, settings.HideHeaders, cache.StatusMiss)
		return
	}

	entry, err := g.fetchUpstream(ctx, ix, route, up)
	if err != nil {
		g.writeError(ctx, err)
		return
	}
	status := ""
	if hasCache {
		status = cache.StatusBypass
	}
	g.writeEntry(ctx, global, chain, entry, settings.HideHeaders, status)
}

func clientBypassesCache(r *http.Request) bool {
	if strings.EqualFold(r.Header.Get("X-Bypass-Cache"), "true") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Cache-Control")), "no-cache")
}

// writeEntry copies the stored/fetched response into the client response,
// running response_filter once and response_body_filter over the whole
// body as a single chunk followed by the final nil flush (spec.md §4.2;
// the whole-body shape is a direct consequence of single-flight caching
// requiring a fully materialized value to fan out to concurrent waiters).
func (g *Gateway) writeEntry(ctx *reqctx.Context, global, chain *plugin.Executor, entry *cache.Entry, hideCacheHeaders bool, cacheStatus string) {
	w := ctx.ResponseWriter
	copyHeaders(w.Header(), entry.Header)

	if err := global.RunResponseFilter(ctx); err != nil {
		g.writeError(ctx, err)
		return
	}
	if err := chain.RunResponseFilter(ctx); err != nil {
		g.writeError(ctx, err)
		return
	}

	if cacheStatus != "" && !hideCacheHeaders {
		w.Header().Set(cache.StatusHeader, cacheStatus)
	}

	ctx.StatusCode = entry.StatusCode
	w.WriteHeader(entry.StatusCode)

	body, err := global.RunResponseBodyFilter(ctx, entry.Body)
	if err == nil {
		body, err = chain.RunResponseBodyFilter(ctx, body)
	}
	if err != nil {
		gwlog.Errorf("proxy: response_body_filter for route %s: %v", ctx.RouteID, err)
		return
	}
	if len(body) > 0 {
		w.Write(body)
	}

	trailer, err := global.RunResponseBodyFilter(ctx, nil)
	if err == nil {
		trailer, err = chain.RunResponseBodyFilter(ctx, trailer)
	}
	if err != nil {
		gwlog.Errorf("proxy: response_body_filter flush for route %s: %v", ctx.RouteID, err)
		return
	}
	if len(trailer) > 0 {
		w.Write(trailer)
	}
}

// writeError maps a gwerr.Error (or any other error) to an HTTP status and
// writes it, unless a plugin already flushed a response of its own.
func (g *Gateway) writeError(ctx *reqctx.Context, err error) {
	if ctx.ShortCircuited {
		return
	}
	status := http.StatusInternalServerError
	var gerr *gwerr.Error
	if errors.As(err, &gerr) && gerr.Status != 0 {
		status = gerr.Status
	}
	gwlog.Warnf("proxy: request for route %s failed: %v", ctx.RouteID, err)
	http.Error(ctx.ResponseWriter, http.StatusText(status), status)
	ctx.ShortCircuited = true
	ctx.StatusCode = status
}

func (g *Gateway) recordMetrics(ctx *reqctx.Context) {
	if g.metrics == nil {
		return
	}
	status := ctx.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	g.metrics.RequestsTotal.WithLabelValues(labelOrDash(ctx.RouteID), statusClass(status)).Inc()
	g.metrics.RequestDuration.WithLabelValues(labelOrDash(ctx.RouteID)).Observe(ctx.Elapsed().Seconds())
}

func labelOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		if isHopByHop(k) {
			continue
		}
		dst[k] = append([]string(nil), vv...)
	}
}

func isHopByHop(header string) bool {
	switch strings.ToLower(header) {
	case "connection", "keep-alive", "proxy-authenticate", "proxy-authorization",
		"te", "trailer", "transfer-encoding", "upgrade", "content-length":
		return true
	default:
		return false
	}
}
