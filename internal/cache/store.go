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

package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/classbridge/classbridge/internal/observability/logger"
)

// TieredOptions configures the tiered store's background behavior.
type TieredOptions struct {
	// OpTimeout bounds every call to the distributed backend.
	OpTimeout time.Duration
	// ProbeInterval is the cadence for re-probing a degraded backend.
	ProbeInterval time.Duration
	// SweepInterval is the cadence for sweeping expired local entries.
	SweepInterval time.Duration
}

// DefaultTieredOptions returns the production defaults.
func DefaultTieredOptions() TieredOptions {
	return TieredOptions{
		OpTimeout:     250 * time.Millisecond,
		ProbeInterval: 5 * time.Second,
		SweepInterval: time.Minute,
	}
}

// TieredStore serves the Store contract from a distributed backend while
// healthy and from an in-process tier while degraded.
//
// The tier switch is a two-state machine, Healthy/Degraded, transitioned only
// by the outcome of backend calls: any connection error on a request path
// degrades the store, and only a successful background probe restores it.
// Request paths never wait on a degraded backend. The two tiers are not
// synchronized; at most one is authoritative at any instant, and the brief
// inconsistency window on a transition is accepted because the TTL bound
// holds in both tiers.
type TieredStore struct {
	remote backend
	local  *memoryTier
	opts   TieredOptions

	// healthy is the state-machine bit: true = Healthy, false = Degraded.
	healthy atomic.Bool

	clock func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewTieredStore creates the store and starts its probe and sweep goroutines.
// The store assumes the backend is healthy until a call says otherwise.
func NewTieredStore(remote backend, opts TieredOptions) *TieredStore {
	s := &TieredStore{
		remote: remote,
		local:  newMemoryTier(),
		opts:   opts,
		clock:  time.Now,
		done:   make(chan struct{}),
	}
	s.healthy.Store(true)
	go s.probeLoop()
	go s.sweepLoop()
	return s
}

// Close stops the background goroutines. It does not close the backend.
func (s *TieredStore) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Healthy reports whether the distributed backend is the authoritative tier.
func (s *TieredStore) Healthy() bool {
	return s.healthy.Load()
}

// Get retrieves a cached value from the authoritative tier. A backend failure
// degrades the store and serves the local tier instead; Get itself never
// errors.
func (s *TieredStore) Get(ctx context.Context, key string) ([]byte, bool) {
	if s.healthy.Load() {
		opCtx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
		val, err := s.remote.Get(opCtx, key)
		cancel()
		switch {
		case err == nil:
			return val, true
		case err == ErrNotFound:
			return nil, false
		default:
			s.markDegraded(err)
		}
	}
	return s.local.get(key, s.clock())
}

// Set stores a value in the authoritative tier with the same TTL semantics in
// both tiers. TTL<=0 disables caching for the entry.
func (s *TieredStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if s.healthy.Load() {
		opCtx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
		err := s.remote.Set(opCtx, key, value, ttl)
		cancel()
		if err == nil {
			return nil
		}
		s.markDegraded(err)
	}
	s.local.set(key, value, ttl, s.clock())
	return nil
}

// Delete removes a single key from the authoritative tier.
func (s *TieredStore) Delete(ctx context.Context, key string) error {
	if s.healthy.Load() {
		opCtx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
		err := s.remote.Delete(opCtx, key)
		cancel()
		if err == nil {
			return nil
		}
		s.markDegraded(err)
	}
	s.local.delete(key)
	return nil
}

// DeleteByPrefix removes every key starting with prefix from the
// authoritative tier.
func (s *TieredStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	if s.healthy.Load() {
		opCtx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
		err := s.remote.DeleteByPrefix(opCtx, prefix)
		cancel()
		if err == nil {
			return nil
		}
		s.markDegraded(err)
	}
	s.local.deleteByPrefix(prefix)
	return nil
}

// markDegraded flips Healthy -> Degraded. Logged once per transition; repeat
// failures while already degraded stay quiet.
func (s *TieredStore) markDegraded(err error) {
	if s.healthy.CompareAndSwap(true, false) {
		slog.Warn("cache backend unreachable, serving from in-process tier",
			logger.Component("cache"),
			logger.Error(err),
		)
	}
}

// markHealthy flips Degraded -> Healthy. Only the probe calls this: a single
// lucky request must not flap the store back while the backend is still sick.
func (s *TieredStore) markHealthy() {
	if s.healthy.CompareAndSwap(false, true) {
		slog.Info("cache backend recovered, resuming distributed tier",
			logger.Component("cache"),
		)
	}
}

// probeLoop re-pings a degraded backend on a fixed cadence, off the request
// path.
func (s *TieredStore) probeLoop() {
	ticker := time.NewTicker(s.opts.ProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if s.healthy.Load() {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), s.opts.OpTimeout)
			err := s.remote.Ping(ctx)
			cancel()
			if err == nil {
				s.markHealthy()
			}
		}
	}
}

// sweepLoop bounds local-tier memory; the distributed tier expires natively.
func (s *TieredStore) sweepLoop() {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.local.sweep(s.clock())
		}
	}
}

var _ Store = (*TieredStore)(nil)
