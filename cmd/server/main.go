// Copyright 2026 The ClassBridge Authors
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
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/classbridge/classbridge/internal/cache"
	"github.com/classbridge/classbridge/internal/config"
	"github.com/classbridge/classbridge/internal/observability/logger"
	"github.com/classbridge/classbridge/internal/observability/metrics"
	"github.com/classbridge/classbridge/internal/observability/tracing"
	"github.com/classbridge/classbridge/internal/proxy"
	"github.com/classbridge/classbridge/internal/tenant"
	transportHTTP "github.com/classbridge/classbridge/internal/transport/http"
	"github.com/classbridge/classbridge/internal/upstream"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting classbridge edge")

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	var proxyMetrics *proxy.Metrics
	if meter != nil {
		proxyMetrics, err = proxy.NewMetrics(meter)
		if err != nil {
			slog.Error("failed to register proxy metrics", logger.Error(err))
		}
	}

	// Cache: Redis remote tier fronted by the in-process degraded tier. A
	// dead Redis at boot is fine: the first failed call degrades the store
	// to the local tier and the background probe promotes it back once
	// Redis answers.
	redisBackend := cache.NewRedisBackend(cache.RedisConfig{
		Addr:         cfg.Cache.RedisAddr,
		Password:     cfg.Cache.RedisPassword,
		DB:           cfg.Cache.RedisDB,
		DialTimeout:  cfg.Cache.DialTimeout,
		ReadTimeout:  cfg.Cache.ReadTimeout,
		WriteTimeout: cfg.Cache.WriteTimeout,
	})
	store := cache.NewTieredStore(redisBackend, cache.TieredOptions{
		OpTimeout:     cfg.Cache.OpTimeout,
		ProbeInterval: cfg.Cache.ProbeInterval,
		SweepInterval: cfg.Cache.SweepInterval,
	})
	defer store.Close()
	defer redisBackend.Close()

	// Upstream record API client
	upstreamClient, err := upstream.New(upstream.Config{
		BaseURL:          cfg.Upstream.BaseURL,
		Timeout:          cfg.Upstream.Timeout,
		SubscriptionPath: cfg.Upstream.SubscriptionPath,
	})
	if err != nil {
		slog.Error("invalid upstream configuration", logger.Error(err))
		os.Exit(1)
	}

	// Tenant resolution
	resolver := tenant.NewResolver(cfg.Tenant.BaseDomain, cfg.Tenant.DevSuffix)

	// Proxy service
	auditLogger := logger.NewAuditLogger(slog.Default())
	registry := proxy.DefaultRegistry().WithTTLOverrides(cfg.Cache.TTLOverrides)
	service := proxy.New(store, upstreamClient, registry, proxyMetrics, auditLogger)

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler and router
	handler := transportHTTP.NewHandler(service, store)
	router := transportHTTP.NewRouter(handler, transportHTTP.RouterOptions{
		Resolver:       resolver,
		OperatorSecret: []byte(cfg.Operator.JWTSecret),
		RateLimit:      rateLimiter,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}
