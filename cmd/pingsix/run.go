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

package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	clientv3 "go.etcd.io/etcd/client/v3"

	"pingsix/internal/admin"
	"pingsix/internal/config"
	"pingsix/internal/dynconfig"
	"pingsix/internal/gwlog"
	"pingsix/internal/healthcheck"
	"pingsix/internal/metrics"
	"pingsix/internal/proxy"
	"pingsix/internal/sni"
	"pingsix/internal/status"
	"pingsix/pkg/cache"
	"pingsix/pkg/plugin"
	"pingsix/pkg/upstream"

	"pingsix/plugins/limitcount"

	_ "pingsix/plugins/all"
)

func runStart(cmd *cobra.Command, args []string) error {
	if daemon {
		if err := daemonize(); err != nil {
			return err
		}
	}

	mainCfg, err := config.LoadMain(confPath)
	if err != nil {
		return err
	}
	if logLevel == "" {
		logLevel = mainCfg.LogLevel
	}
	applyLogLevel()

	registry := plugin.Global()
	metricsReg := metrics.New()
	health := upstream.NewHealthState()
	sched := healthcheck.NewScheduler()

	cacheFilter := buildCacheFilter(mainCfg.CacheBackend)

	store := dynconfig.NewStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := loadInitialConfig(ctx, mainCfg, store); err != nil {
		return err
	}

	resolver := newDynamicResolver(store)

	gw := proxy.NewGateway(store, registry, metricsReg, health, sched, cacheFilter)

	servers := startListeners(mainCfg, gw, resolver)
	adminServer := startAdmin(mainCfg, store, registry, metricsReg)
	servers = append(servers, adminServer)

	gwlog.Infof("pingsix listening: http=%s https=%s admin=%s", mainCfg.Listen.HTTP, mainCfg.Listen.HTTPS, mainCfg.Admin.Listen)

	waitForShutdown(cancel, servers)
	return nil
}

func buildCacheFilter(cfg config.CacheBackendConfig) *cache.Filter {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		limitcount.SetSharedRedis(client)
		return cache.NewFilter(cache.NewRedisBackend(client, cfg.KeyPrefix))
	}
	return cache.NewFilter(cache.NewLRU(cfg.Capacity))
}

// loadInitialConfig installs the first snapshot, either from etcd (which
// also starts the background watcher goroutine) or from a static YAML
// load of the same conf file.
func loadInitialConfig(ctx context.Context, mainCfg *config.Main, store *dynconfig.Store) error {
	if mainCfg.Etcd != nil {
		client, err := clientv3.New(clientv3.Config{
			Endpoints:   mainCfg.Etcd.Endpoints,
			DialTimeout: mainCfg.Etcd.DialTimeout,
		})
		if err != nil {
			return fmt.Errorf("main: connect etcd: %w", err)
		}
		watcher := dynconfig.NewEtcdWatcher(client, mainCfg.Etcd.Prefix, store)
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				gwlog.Errorf("main: etcd watcher stopped: %v", err)
			}
		}()
		return nil
	}

	snap, errs := dynconfig.LoadYAMLFile(confPath)
	for _, e := range errs {
		gwlog.Warnf("main: %v", e)
	}
	if snap == nil {
		return fmt.Errorf("main: no usable configuration in %s", confPath)
	}
	store.Swap(snap)
	return nil
}

// newDynamicResolver keeps an SNI resolver rebuilt on every snapshot swap
// behind an atomic pointer, so a certificate added via the admin API or
// etcd takes effect on the next TLS handshake without restarting the
// HTTPS listener.
func newDynamicResolver(store *dynconfig.Store) *atomic.Pointer[sni.Resolver] {
	var ptr atomic.Pointer[sni.Resolver]
	build := func(snap *config.Snapshot) {
		resolver, errs := sni.NewResolver(snap.SSLCerts)
		for _, e := range errs {
			gwlog.Warnf("main: %v", e)
		}
		ptr.Store(resolver)
	}
	build(store.Get())
	store.OnSwap(func(_, next *config.Snapshot) { build(next) })
	return &ptr
}

func startListeners(mainCfg *config.Main, gw *proxy.Gateway, resolver *atomic.Pointer[sni.Resolver]) []*http.Server {
	var servers []*http.Server

	if mainCfg.Listen.HTTP != "" {
		srv := &http.Server{Addr: mainCfg.Listen.HTTP, Handler: gw}
		go func() {
			gwlog.Infof("main: http listener on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				gwlog.Fatalf("main: http listener: %v", err)
			}
		}()
		servers = append(servers, srv)
	}

	if mainCfg.Listen.HTTPS != "" {
		srv := &http.Server{
			Addr:    mainCfg.Listen.HTTPS,
			Handler: gw,
			TLSConfig: &tls.Config{
				GetCertificate: func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
					return resolver.Load().GetCertificate(hello)
				},
			},
		}
		go func() {
			gwlog.Infof("main: https listener on %s", srv.Addr)
			if err := srv.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
				gwlog.Fatalf("main: https listener: %v", err)
			}
		}()
		servers = append(servers, srv)
	}

	return servers
}

// startAdmin mounts the admin REST surface, the readiness probe, and the
// Prometheus exporter behind one control-plane listener, separate from
// the data-plane traffic the Gateway handles.
func startAdmin(mainCfg *config.Main, store *dynconfig.Store, registry *plugin.Registry, metricsReg *metrics.Registry) *http.Server {
	mux := http.NewServeMux()
	adminSrv := admin.NewServer(store, registry, mainCfg.Admin.APIKey)
	mux.Handle("/apisix/admin/", adminSrv)
	mux.Handle("/status/", status.Handler(store))
	mux.Handle("/metrics", metricsReg.Handler())

	srv := &http.Server{Addr: mainCfg.Admin.Listen, Handler: mux}
	go func() {
		gwlog.Infof("main: admin listener on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			gwlog.Fatalf("main: admin listener: %v", err)
		}
	}()
	return srv
}

func waitForShutdown(cancelConfig context.CancelFunc, servers []*http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	gwlog.Infof("main: shutting down")
	cancelConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			gwlog.Warnf("main: shutdown %s: %v", srv.Addr, err)
		}
	}
	gwlog.Infof("main: stopped")
}
