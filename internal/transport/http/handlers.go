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

package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/classbridge/classbridge/internal/cache"
	"github.com/classbridge/classbridge/internal/proxy"
	"github.com/classbridge/classbridge/internal/tenant"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	proxy *proxy.Service
	store cache.Store
}

// NewHandler creates a new handler
func NewHandler(p *proxy.Service, store cache.Store) *Handler {
	return &Handler{
		proxy: p,
		store: store,
	}
}

// RouterOptions configures the HTTP router.
type RouterOptions struct {
	Resolver       *tenant.Resolver
	OperatorSecret []byte
	RateLimit      *RateLimiter
	RequestTimeout time.Duration
}

// NewRouter creates the HTTP router with all routes and middleware.
//
// Order matters: the tenant must be resolved before rate limiting so the
// limiter can key by tenant, and before logging so the end-of-request line
// can carry it.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r.Use(middleware.RequestID)
	r.Use(TenantMiddleware(opts.Resolver))
	if opts.RateLimit != nil {
		r.Use(RateLimitMiddleware(opts.RateLimit))
	}
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "http.server",
			otelhttp.WithSpanNameFormatter(func(operation string, req *http.Request) string {
				return fmt.Sprintf("%s %s", req.Method, req.URL.Path)
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(OperatorMiddleware(opts.OperatorSecret))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/healthz", h.Health)

	r.Handle("/api/*", h.proxy)

	return r
}

// Health handles health check requests. The endpoint reports degraded, not
// unhealthy, when the remote cache is down: the service keeps serving from
// the in-process tier, so load balancers must not eject it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	cacheState := "remote"
	if !h.store.Healthy() {
		status = "degraded"
		cacheState = "local"
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": status,
		"cache":  cacheState,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", slog.String("error", err.Error()))
		}
	}
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
