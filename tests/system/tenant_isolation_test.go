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

// Package system exercises the full request pipeline in process: router,
// tenant resolution, rate limiting, subscription gate, cache, upstream.
// Everything runs against httptest servers, so no external services are
// needed.
//
// Test Categories:
//   - TEN-*: Tenant isolation tests
//   - GTE-*: Subscription gate tests
//   - CCH-*: Cache behaviour tests
package system

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classbridge/classbridge/internal/gate"
	"github.com/classbridge/classbridge/internal/proxy"
	"github.com/classbridge/classbridge/internal/tenant"
	transportHTTP "github.com/classbridge/classbridge/internal/transport/http"
	"github.com/classbridge/classbridge/internal/upstream"
)

// memStore is a flat in-memory cache for the full-stack fixtures.
type memStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (s *memStore) Get(ctx context.Context, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok
}

func (s *memStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *memStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
		}
	}
	return nil
}

func (s *memStore) Healthy() bool { return true }

// stack is a running ClassBridge edge with a scripted record API behind it.
type stack struct {
	router        http.Handler
	subscriptions map[string]gate.Subscription
	mu            sync.Mutex
	dataHits      map[string]int
}

func newStack(t *testing.T) *stack {
	t.Helper()
	s := &stack{
		subscriptions: make(map[string]gate.Subscription),
		dataHits:      make(map[string]int),
	}

	records := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/internal/tenants/") {
			parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
			tenantID := parts[2]
			s.mu.Lock()
			sub, ok := s.subscriptions[tenantID]
			s.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(sub)
			return
		}

		// Data routes echo the tenant the proxy resolved so isolation
		// violations are visible in the body.
		tenantID := r.Header.Get(upstream.HeaderTenantID)
		s.mu.Lock()
		s.dataHits[tenantID+r.URL.Path]++
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]string{"tenant": tenantID, "path": r.URL.Path})
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(records.Close)

	client, err := upstream.New(upstream.Config{BaseURL: records.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)

	store := &memStore{entries: make(map[string][]byte)}
	service := proxy.New(store, client, proxy.DefaultRegistry(), nil, nil)
	handler := transportHTTP.NewHandler(service, store)
	s.router = transportHTTP.NewRouter(handler, transportHTTP.RouterOptions{
		Resolver: tenant.NewResolver("example.com", "lvh.me"),
	})
	return s
}

func (s *stack) setSubscription(tenantID string, sub gate.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[tenantID] = sub
}

func (s *stack) request(t *testing.T, method, host, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	req.Host = host
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func activeSub() gate.Subscription {
	end := time.Now().Add(30 * 24 * time.Hour)
	return gate.Subscription{Status: gate.StatusActive, SubscriptionEndsAt: &end}
}

// TestPurpose: Validates that a cached response for one institute subdomain is never served to another, even for identical paths and queries.
// Scope: System Test
// Security: Tenant data isolation at the cache layer
// Expected: Each tenant's first read is a MISS answered with that tenant's own data; a warm cache for tenant A never answers tenant B.
// Test Case ID: TEN-01
func TestFullStack_TenantIsolation(t *testing.T) {
	s := newStack(t)
	s.setSubscription("acme", activeSub())
	s.setSubscription("zen", activeSub())

	rec := s.request(t, http.MethodGet, "acme.example.com", "/api/students?page=1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	// Warm repeat for the same tenant.
	rec = s.request(t, http.MethodGet, "acme.example.com", "/api/students?page=1")
	require.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	// The other tenant must miss and get its own body.
	rec = s.request(t, http.MethodGet, "zen.example.com", "/api/students?page=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "zen", body["tenant"])
}

// TestPurpose: Validates that a mutation by one tenant invalidates only that tenant's cache entries.
// Scope: System Test
// Security: Cross-tenant cache invalidation containment
// Expected: After tenant A posts to students, tenant A re-misses while tenant B's identical entry stays warm.
// Test Case ID: TEN-02
func TestFullStack_InvalidationIsTenantScoped(t *testing.T) {
	s := newStack(t)
	s.setSubscription("acme", activeSub())
	s.setSubscription("zen", activeSub())

	require.Equal(t, "MISS", s.request(t, http.MethodGet, "acme.example.com", "/api/students").Header().Get("X-Cache"))
	require.Equal(t, "MISS", s.request(t, http.MethodGet, "zen.example.com", "/api/students").Header().Get("X-Cache"))
	require.Equal(t, "HIT", s.request(t, http.MethodGet, "zen.example.com", "/api/students").Header().Get("X-Cache"))

	rec := s.request(t, http.MethodPost, "acme.example.com", "/api/students")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "MISS", s.request(t, http.MethodGet, "acme.example.com", "/api/students").Header().Get("X-Cache"))
	assert.Equal(t, "HIT", s.request(t, http.MethodGet, "zen.example.com", "/api/students").Header().Get("X-Cache"))
}

// TestPurpose: Validates that an institute with an expired subscription is denied at the edge with a machine-readable reason.
// Scope: System Test
// Security: Subscription enforcement before any data access
// Expected: 403 with reasonCode SUBSCRIPTION_EXPIRED and upgradeHint /plans; the record API data routes see no traffic.
// Test Case ID: GTE-01
func TestFullStack_ExpiredSubscriptionDenied(t *testing.T) {
	s := newStack(t)
	end := time.Now().Add(-24 * time.Hour)
	s.setSubscription("acme", gate.Subscription{Status: gate.StatusActive, SubscriptionEndsAt: &end})

	rec := s.request(t, http.MethodGet, "acme.example.com", "/api/students")
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body gate.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Allowed)
	assert.Equal(t, gate.ReasonSubscriptionExpired, body.ReasonCode)
	assert.Equal(t, "/plans", body.UpgradeHint)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.dataHits)
}

// TestPurpose: Validates that a gate denial is never cached: the moment the subscription record changes, the next request is re-evaluated.
// Scope: System Test
// Security: Gate decisions reflect current subscription state
// Expected: 403 while expired, 200 on the very next request after renewal.
// Test Case ID: GTE-02
func TestFullStack_RenewalTakesEffectImmediately(t *testing.T) {
	s := newStack(t)
	past := time.Now().Add(-time.Hour)
	s.setSubscription("acme", gate.Subscription{Status: gate.StatusTrial, TrialEndsAt: &past})

	rec := s.request(t, http.MethodGet, "acme.example.com", "/api/students")
	require.Equal(t, http.StatusForbidden, rec.Code)

	s.setSubscription("acme", activeSub())
	rec = s.request(t, http.MethodGet, "acme.example.com", "/api/students")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestPurpose: Validates that the bare marketing domain is served ungated and uncached.
// Scope: System Test
// Expected: 200 with no X-Cache header and no subscription lookup.
// Test Case ID: TEN-03
func TestFullStack_BareDomainPassthrough(t *testing.T) {
	s := newStack(t)

	rec := s.request(t, http.MethodGet, "www.example.com", "/api/subscription-plans")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

// TestPurpose: Validates that a trial close to expiry still serves data and carries the countdown header.
// Scope: System Test
// Expected: 200 with X-Trial-Days-Left set.
// Test Case ID: GTE-03
func TestFullStack_TrialCountdownHeader(t *testing.T) {
	s := newStack(t)
	end := time.Now().Add(36 * time.Hour)
	s.setSubscription("acme", gate.Subscription{Status: gate.StatusTrial, TrialEndsAt: &end})

	rec := s.request(t, http.MethodGet, "acme.example.com", "/api/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-Trial-Days-Left"))
}

// TestPurpose: Validates dev-suffix resolution end to end, mirroring local development against lvh.me.
// Scope: System Test
// Expected: acme.lvh.me resolves and caches exactly like acme.example.com.
// Test Case ID: TEN-04
func TestFullStack_DevSuffixHost(t *testing.T) {
	s := newStack(t)
	s.setSubscription("acme", activeSub())

	rec := s.request(t, http.MethodGet, "acme.lvh.me:3000", "/api/students")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	// Same tenant via the production host shares the cache entry.
	rec = s.request(t, http.MethodGet, "acme.example.com", "/api/students")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

// TestPurpose: Validates that spoofing the internal tenant header from outside is rejected before resolution.
// Scope: System Test
// Security: Tenant identity is derived from the host name only
// Expected: 400 and no upstream traffic.
// Test Case ID: TEN-05
func TestFullStack_TenantHeaderSpoofRejected(t *testing.T) {
	s := newStack(t)
	s.setSubscription("acme", activeSub())

	req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
	req.Host = "acme.example.com"
	req.Header.Set(upstream.HeaderTenantID, "zen")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.dataHits)
}
