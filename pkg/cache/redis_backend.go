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

package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend is the shared-storage alternative to the in-memory LRU,
// selectable per spec.md §3 DOMAIN STACK: an operator pointing two
// gateway processes at the same Redis instance gets a shared cache, not
// a distributed cache-invalidation protocol.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend wraps an existing go-redis client, the same dependency
// the teacher's idempotent persister is built on.
func NewRedisBackend(client *redis.Client, keyPrefix string) *RedisBackend {
	if keyPrefix == "" {
		keyPrefix = "pingsix:cache:"
	}
	return &RedisBackend{client: client, prefix: keyPrefix}
}

func (b *RedisBackend) Get(key string) (*Entry, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	raw, err := b.client.Get(ctx, b.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	var entry Entry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&entry); err != nil {
		return nil, false
	}
	return &entry, true
}

func (b *RedisBackend) Set(key string, entry *Entry) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b.client.Set(ctx, b.prefix+key, buf.Bytes(), entry.TTL)
}

func (b *RedisBackend) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b.client.Del(ctx, b.prefix+key)
}
