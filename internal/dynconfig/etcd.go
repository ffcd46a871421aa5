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

package dynconfig

import (
	"context"
	"encoding/json"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"

	"pingsix/internal/config"
	"pingsix/internal/gwlog"
)

// EtcdWatcher is the "dynamic" half of spec.md §4.5: an initial List
// against an etcd prefix followed by a Watch from the revision that List
// observed, each put/delete keeping the Store's snapshot current without
// ever missing or double-applying an event.
type EtcdWatcher struct {
	client *clientv3.Client
	prefix string
	store  *Store
}

// NewEtcdWatcher builds a watcher over prefix (e.g. "/pingsix"), whose
// children are expected at "<prefix>/<entity-type>/<id>"
// ("/pingsix/routes/1", "/pingsix/upstreams/1", ...).
func NewEtcdWatcher(client *clientv3.Client, prefix string, store *Store) *EtcdWatcher {
	return &EtcdWatcher{client: client, prefix: strings.TrimSuffix(prefix, "/"), store: store}
}

// Run performs the initial list (retried once on a transient failure),
// installs it via Store.Swap, then watches for further mutations until
// ctx is canceled.
func (w *EtcdWatcher) Run(ctx context.Context) error {
	rev, err := w.initialList(ctx)
	if err != nil {
		gwlog.Warnf("dynconfig: initial list failed, retrying once: %v", err)
		rev, err = w.initialList(ctx)
		if err != nil {
			return err
		}
	}

	watchCh := w.client.Watch(ctx, w.prefix, clientv3.WithPrefix(), clientv3.WithRev(rev+1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case resp, ok := <-watchCh:
			if !ok {
				return nil
			}
			if err := resp.Err(); err != nil {
				gwlog.Warnf("dynconfig: watch stream error: %v", err)
				continue
			}
			w.applyEvents(resp.Events)
		}
	}
}

func (w *EtcdWatcher) initialList(ctx context.Context) (int64, error) {
	resp, err := w.client.Get(ctx, w.prefix, clientv3.WithPrefix())
	if err != nil {
		return 0, err
	}
	snap := config.NewEmptySnapshot()
	for _, kv := range resp.Kvs {
		putEntity(snap, string(kv.Key), kv.Value, w.prefix)
	}
	w.store.Swap(snap)
	return resp.Header.Revision, nil
}

// applyEvents rebuilds the derived indices at most once per batch of
// events delivered together, rather than once per key, matching etcd's
// own txn-batched delivery.
func (w *EtcdWatcher) applyEvents(events []*clientv3.Event) {
	if len(events) == 0 {
		return
	}
	next := w.store.Get().Clone()
	for _, ev := range events {
		key := string(ev.Kv.Key)
		switch ev.Type {
		case clientv3.EventTypePut:
			putEntity(next, key, ev.Kv.Value, w.prefix)
		case clientv3.EventTypeDelete:
			deleteEntity(next, key, w.prefix)
		}
	}
	w.store.Swap(next)
}

// splitKey resolves "<prefix>/<entity-type>/<id>" into its two parts.
func splitKey(key, prefix string) (kind, id string, ok bool) {
	rest := strings.TrimPrefix(key, prefix+"/")
	if rest == key {
		return "", "", false
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// putEntity decodes value into the entity type kind names and runs the
// entity's Validate before installing it, so a document that fails to
// decode or validate never reaches a live snapshot. Unlike the admin API's
// put path (internal/admin), it does not check the entity's plugins
// against the plugin registry: an entry naming an unknown plugin or
// carrying a bad plugin config is installed.
func putEntity(snap *config.Snapshot, key string, value []byte, prefix string) {
	kind, id, ok := splitKey(key, prefix)
	if !ok {
		return
	}
	switch kind {
	case "routes":
		e := &config.Route{}
		if !decode(value, e, id) {
			return
		}
		snap.Routes[id] = e
	case "services":
		e := &config.Service{}
		if !decode(value, e, id) {
			return
		}
		snap.Services[id] = e
	case "upstreams":
		e := &config.Upstream{}
		if !decode(value, e, id) {
			return
		}
		snap.Upstreams[id] = e
	case "global_rules":
		e := &config.GlobalRule{}
		if !decode(value, e, id) {
			return
		}
		snap.GlobalRules[id] = e
	case "ssls":
		e := &config.SSLCert{}
		if !decode(value, e, id) {
			return
		}
		snap.SSLCerts[id] = e
	default:
		gwlog.Warnf("dynconfig: unknown entity type %q in key %q", kind, key)
	}
}

type validatable interface{ Validate() error }

// decode unmarshals value into entity, stamps its ID field, and validates
// it, logging and refusing the write on any failure (spec.md §4.5
// "a parse or validation failure is logged and the previous snapshot
// entry, if any, is left untouched").
func decode(value []byte, entity interface{}, id string) bool {
	if err := json.Unmarshal(value, entity); err != nil {
		gwlog.Warnf("dynconfig: decode %s: %v", id, err)
		return false
	}
	switch e := entity.(type) {
	case *config.Route:
		e.ID = id
	case *config.Service:
		e.ID = id
	case *config.Upstream:
		e.ID = id
	case *config.GlobalRule:
		e.ID = id
	case *config.SSLCert:
		e.ID = id
	}
	if v, ok := entity.(validatable); ok {
		if err := v.Validate(); err != nil {
			gwlog.Warnf("dynconfig: validate %s: %v", id, err)
			return false
		}
	}
	return true
}

func deleteEntity(snap *config.Snapshot, key, prefix string) {
	kind, id, ok := splitKey(key, prefix)
	if !ok {
		return
	}
	switch kind {
	case "routes":
		delete(snap.Routes, id)
	case "services":
		delete(snap.Services, id)
	case "upstreams":
		delete(snap.Upstreams, id)
	case "global_rules":
		delete(snap.GlobalRules, id)
	case "ssls":
		delete(snap.SSLCerts, id)
	}
}
