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

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Main is the process-level configuration file (spec.md §6 "pingsix.yaml"
// top-level "pingsix" block), distinct from the routes/upstreams/etc.
// entities dynconfig loads: it describes how the process itself listens
// and where it gets its dynamic configuration from, not what it proxies.
type Main struct {
	Listen      ListenConfig `yaml:"listen"`
	Admin       AdminConfig  `yaml:"admin"`
	Etcd        *EtcdConfig  `yaml:"etcd"`
	CacheBackend CacheBackendConfig `yaml:"cache"`
	LogLevel    string       `yaml:"log_level"`
}

// ListenConfig describes the data-plane listeners.
type ListenConfig struct {
	HTTP  string `yaml:"http"`
	HTTPS string `yaml:"https"`
}

// AdminConfig describes the control-plane listener: the admin REST
// surface, the readiness probe, and the Prometheus exporter all share one
// address, the way the teacher's -metrics_addr flag exposes a second,
// lower-traffic listener separate from the data plane.
type AdminConfig struct {
	Listen string `yaml:"listen"`
	APIKey string `yaml:"api_key"`
}

// EtcdConfig switches the dynamic config plane from a static YAML load to
// an etcd watch (spec.md §4.5 "Dynamic: watch a key-value store").
type EtcdConfig struct {
	Endpoints   []string      `yaml:"endpoints"`
	Prefix      string        `yaml:"prefix"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// CacheBackendConfig selects the HTTP response cache's storage backend
// (spec.md CORE subsystem 5): in-memory by default, or Redis when
// RedisAddr is set, so a fleet of gateway processes can share one cache.
type CacheBackendConfig struct {
	Capacity int    `yaml:"capacity"`
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LoadMain parses the process config file at path, defaulting any field a
// minimal deployment omits.
func LoadMain(path string) (*Main, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	m := &Main{}
	if err := yaml.Unmarshal(raw, m); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	m.applyDefaults()
	return m, nil
}

func (m *Main) applyDefaults() {
	if m.Listen.HTTP == "" && m.Listen.HTTPS == "" {
		m.Listen.HTTP = ":9080"
	}
	if m.Admin.Listen == "" {
		m.Admin.Listen = ":9180"
	}
	if m.CacheBackend.Capacity <= 0 {
		m.CacheBackend.Capacity = 1024
	}
	if m.Etcd != nil && m.Etcd.DialTimeout <= 0 {
		m.Etcd.DialTimeout = 5 * time.Second
	}
}
