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

// Package limitcount implements the limit-count plugin: a fixed-window
// admission count per derived key (spec.md §8 scenario S4). Per-key
// admission reuses pkg/vsa's scalar/vector accumulator as the window's
// counter — scalar is the window budget, TryConsume(1) is one admission
// attempt — and golang.org/x/time/rate drives the periodic window-reset
// sweep the way the teacher's core.Worker drives its commit sweep.
//
// When the gateway's cache backend is Redis-backed (see
// cmd/pingsix's buildCacheFilter), SetSharedRedis points limit-count at
// the same instance: each window's vsa.VSA additionally spills its
// uncommitted vector to a Redis INCRBY once it crosses a sync threshold
// (vsa.CheckCommit/Commit), so two gateway processes sharing one Redis
// converge on a single admitted count per window. This is a deployment
// choice, not a cluster-aware algorithm — see spec.md §9 Open Questions.
package limitcount

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"pingsix/internal/vars"
	"pingsix/pkg/plugin"
	"pingsix/pkg/reqctx"
	"pingsix/pkg/vsa"
)

const Name = "limit-count"

// Priority has no reserved band of its own in spec.md §9; placed
// adjacent to the rewrite band since admission must happen before a
// request is forwarded but after auth/access-control has run.
const Priority = 1002

func init() {
	plugin.Global().Register(Name, New)
}

// sharedRedis, when non-nil, backs every limitCount instance's window
// commits. It is process-global by design: all limit-count plugin
// instances in the process share one connection pool, the same way the
// gateway's Redis cache backend is a single shared client.
var sharedRedis *redis.Client

// SetSharedRedis wires the gateway's Redis client (if configured) into
// every limit-count instance built after this call.
func SetSharedRedis(client *redis.Client) {
	sharedRedis = client
}

// commitThreshold is how many uncommitted admissions accumulate locally
// before a window syncs its vector to Redis.
const commitThreshold = 1

type window struct {
	counter *vsa.VSA
	resetAt time.Time
}

type limitCount struct {
	plugin.Base
	keyType    vars.Source
	key        string
	window     time.Duration
	count      int64
	showHeader bool
	redis      *redis.Client

	mu       sync.Mutex
	windows  map[string]*window
	sweepLim *rate.Limiter
}

// New builds a limit-count instance from {key_type, key, time_window,
// count, show_limit_quota_header}.
func New(cfg map[string]interface{}) (plugin.Plugin, error) {
	return &limitCount{
		Base:       plugin.Base{PluginName: Name, PluginPriority: Priority},
		keyType:    vars.Source(plugin.CfgString(cfg, "key_type", string(vars.SourceVars))),
		key:        plugin.CfgString(cfg, "key", "remote_addr"),
		window:     time.Duration(plugin.CfgInt(cfg, "time_window", 60)) * time.Second,
		count:      int64(plugin.CfgInt(cfg, "count", 1)),
		showHeader: plugin.CfgBool(cfg, "show_limit_quota_header", false),
		redis:      sharedRedis,
		windows:    make(map[string]*window),
		sweepLim:   rate.NewLimiter(rate.Every(time.Second), 1),
	}, nil
}

func (l *limitCount) RequestFilter(ctx *reqctx.Context) error {
	req := vars.FromHTTPRequest(ctx.Request, "")
	key := vars.Extract(req, l.keyType, l.key)
	if key == "" {
		key = "-"
	}

	remaining, allowed := l.admit(key)
	if l.showHeader {
		ctx.ResponseWriter.Header().Set("X-Rate-Limit-Remaining", strconv.FormatInt(remaining, 10))
	}
	if !allowed {
		ctx.ResponseWriter.WriteHeader(http.StatusServiceUnavailable)
		ctx.ShortCircuited = true
		ctx.StatusCode = http.StatusServiceUnavailable
	}
	return nil
}

// admit consumes one unit from key's current window, rolling the window
// over if it has expired, and reports the remaining quota.
func (l *limitCount) admit(key string) (remaining int64, allowed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	now := time.Now()
	if !ok || now.After(w.resetAt) {
		w = &window{counter: vsa.New(l.count), resetAt: now.Add(l.window)}
		l.windows[key] = w
		if l.sweepLim.Allow() {
			l.sweepExpired(now)
		}
	}
	allowed = w.counter.TryConsume(1)
	if l.redis != nil {
		l.syncShared(key, w)
	}
	return w.counter.Available(), allowed
}

// syncShared folds this window's locally-admitted delta into a Redis
// counter keyed by the window's reset time, so a peer gateway process
// sharing the same Redis sees admissions made here. The part of the
// post-INCRBY total that this window has not yet folded into its scalar
// (admissions made by peers) is folded in via Update+Commit, tightening
// this process's own Available() against the cluster-wide count without
// queueing those admissions for another INCRBY.
func (l *limitCount) syncShared(key string, w *window) {
	shouldCommit, delta := w.counter.CheckCommit(commitThreshold)
	if !shouldCommit {
		return
	}

	redisKey := "pingsix:limit-count:" + key + ":" + strconv.FormatInt(w.resetAt.Unix(), 10)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	total, err := l.redis.IncrBy(ctx, redisKey, delta).Result()
	if err != nil {
		return
	}
	l.redis.Expire(ctx, redisKey, l.window)
	w.counter.Commit(delta)

	scalar, _ := w.counter.State()
	if clusterExtra := total - (l.count - scalar); clusterExtra > 0 {
		w.counter.Update(clusterExtra)
		w.counter.Commit(clusterExtra)
	}
}

// sweepExpired drops windows past their reset time, bounding memory the
// way the teacher's core.Worker bounds its in-flight commit set.
func (l *limitCount) sweepExpired(now time.Time) {
	for k, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, k)
		}
	}
}
