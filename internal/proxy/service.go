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

// Package proxy orchestrates the per-request pipeline: resolve tenant, gate
// on subscription state, serve from cache, fall through to the upstream
// record API, and invalidate on mutation.
package proxy

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/classbridge/classbridge/internal/cache"
	"github.com/classbridge/classbridge/internal/gate"
	"github.com/classbridge/classbridge/internal/observability/logger"
	"github.com/classbridge/classbridge/internal/tenant"
	"github.com/classbridge/classbridge/internal/upstream"
)

// Cache status values exposed on the X-Cache response header.
const (
	HeaderCacheStatus = "X-Cache"
	CacheHit          = "HIT"
	CacheMiss         = "MISS"
	// HeaderTrialDaysLeft nudges trial tenants that are close to expiry.
	HeaderTrialDaysLeft = "X-Trial-Days-Left"
)

// Service is the request proxy shared by every /api route.
type Service struct {
	store    cache.Store
	upstream *upstream.Client
	registry Registry
	metrics  *Metrics
	audit    *logger.AuditLogger
	clock    func() time.Time
}

// New wires the proxy. metrics and audit may be nil.
func New(store cache.Store, up *upstream.Client, registry Registry, m *Metrics, audit *logger.AuditLogger) *Service {
	return &Service{
		store:    store,
		upstream: up,
		registry: registry,
		metrics:  m,
		audit:    audit,
		clock:    time.Now,
	}
}

// ServeHTTP handles one proxied request. The transport middleware has already
// resolved the tenant and verified the operator token by the time this runs.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tctx := tenant.FromContext(r.Context())
	role := gate.RoleFromContext(r.Context())
	res, subpath := s.registry.Lookup(r.URL.Path)

	// Gate only tenant-scoped requests. No tenant means the operator/global
	// surface: ungated, uncached, proxied as-is.
	if tctx.HasTenant() && role == gate.RoleOperator && s.audit != nil {
		s.audit.OperatorBypass(r.Context(), tctx.TenantID, res.Name)
	}
	if tctx.HasTenant() && role != gate.RoleOperator {
		sub, err := s.upstream.FetchSubscription(r.Context(), tctx.TenantID)
		if err != nil {
			slog.ErrorContext(r.Context(), "subscription lookup failed",
				logger.Component("proxy"),
				logger.TenantID(tctx.TenantID),
				logger.Error(err),
			)
			respondError(w, http.StatusBadGateway, "subscription state unavailable")
			return
		}

		decision := gate.Decide(sub, role, s.clock())
		if !decision.Allowed {
			s.metrics.recordDenial(r.Context(), decision.ReasonCode)
			if s.audit != nil {
				s.audit.GateDenied(r.Context(), tctx.TenantID, string(tctx.Channel), res.Name, decision.ReasonCode)
			}
			slog.InfoContext(r.Context(), "request denied by subscription gate",
				logger.Component("proxy"),
				logger.TenantID(tctx.TenantID),
				logger.Reason(decision.ReasonCode),
			)
			respondJSON(w, http.StatusForbidden, decision)
			return
		}
		if decision.Effective == gate.StatusTrial && gate.TrialExpiringSoon(sub, s.clock()) {
			w.Header().Set(HeaderTrialDaysLeft, strconv.Itoa(gate.RemainingTrialDays(sub, s.clock())))
		}
	}

	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		s.serveRead(w, r, tctx, res, subpath)
		return
	}
	s.serveMutation(w, r, tctx, res)
}

// serveRead answers idempotent reads, cache first. Only GET participates in
// the cache: upstream strips HEAD bodies, so storing a HEAD reply would blank
// the entry every GET shares.
func (s *Service) serveRead(w http.ResponseWriter, r *http.Request, tctx tenant.Context, res Resource, subpath string) {
	cacheable := r.Method == http.MethodGet && tctx.HasTenant() && res.TTL > 0

	var key string
	if cacheable {
		key = cache.BuildKey(res.Name, tctx.TenantID, subpath, r.URL.Query())
		if body, ok := s.store.Get(r.Context(), key); ok {
			s.metrics.recordHit(r.Context(), res.Name)
			w.Header().Set(HeaderCacheStatus, CacheHit)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(body)
			return
		}
		s.metrics.recordMiss(r.Context(), res.Name)
	}

	resp, ok := s.callUpstream(w, r, tctx, res)
	if !ok {
		return
	}

	if cacheable && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// The write uses the detached context too: an entry stored after the
		// browser went away is still a valid entry.
		if err := s.store.Set(context.WithoutCancel(r.Context()), key, resp.Body, res.TTL); err != nil {
			slog.WarnContext(r.Context(), "cache write failed",
				logger.Component("proxy"),
				logger.Error(err),
			)
		}
	}

	// The cache marker only appears on requests that took part in caching;
	// HEAD and uncacheable passthroughs stay unmarked.
	if cacheable {
		w.Header().Set(HeaderCacheStatus, CacheMiss)
	}
	relayUpstream(w, resp)
}

// serveMutation forwards a write upstream, then invalidates every affected
// cache prefix. Upstream goes first: a failed mutation must leave the cache
// untouched.
func (s *Service) serveMutation(w http.ResponseWriter, r *http.Request, tctx tenant.Context, res Resource) {
	resp, ok := s.callUpstream(w, r, tctx, res)
	if !ok {
		return
	}

	if tctx.HasTenant() && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		ctx := context.WithoutCancel(r.Context())
		for _, name := range res.Invalidates {
			prefix := cache.KeyPrefix(name, tctx.TenantID)
			if err := s.store.DeleteByPrefix(ctx, prefix); err != nil {
				slog.WarnContext(r.Context(), "cache invalidation failed",
					logger.Component("proxy"),
					logger.CacheKey(prefix),
					logger.Error(err),
				)
			}
		}
	}

	relayUpstream(w, resp)
}

// callUpstream forwards the request to the record API. It reports false after
// writing a gateway error. The upstream call runs on a detached context so a
// browser disconnect cannot abort it mid-flight; the client's own timeout
// still bounds it.
func (s *Service) callUpstream(w http.ResponseWriter, r *http.Request, tctx tenant.Context, res Resource) (*upstream.Response, bool) {
	var body []byte
	if r.Body != nil {
		b, err := readBody(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, "unreadable request body")
			return nil, false
		}
		body = b
	}

	start := s.clock()
	resp, err := s.upstream.Do(
		context.WithoutCancel(r.Context()),
		r.Method, r.URL.Path, r.URL.Query(),
		forwardHeaders(r, tctx), body,
	)
	s.metrics.recordUpstream(r.Context(), res.Name, s.clock().Sub(start))
	if err != nil {
		slog.ErrorContext(r.Context(), "upstream call failed",
			logger.Component("proxy"),
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Error(err),
		)
		respondError(w, http.StatusBadGateway, "upstream unavailable")
		return nil, false
	}
	return resp, true
}

// forwardHeaders builds the upstream header set: the browser's cookie and
// content negotiation headers verbatim, plus the resolved tenant so upstream
// does not re-derive it from the host.
func forwardHeaders(r *http.Request, tctx tenant.Context) http.Header {
	h := http.Header{}
	for _, name := range []string{"Cookie", "Authorization", "Content-Type", "Accept"} {
		if v := r.Header.Get(name); v != "" {
			h.Set(name, v)
		}
	}
	if tctx.HasTenant() {
		h.Set(upstream.HeaderTenantID, tctx.TenantID)
		h.Set(upstream.HeaderTenantChannel, string(tctx.Channel))
	}
	return h
}

func relayUpstream(w http.ResponseWriter, resp *upstream.Response) {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
