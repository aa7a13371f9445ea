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

// Package cache provides the tenant-partitioned response cache: a distributed
// Redis tier with a transparent in-process fallback, TTL-based lazy expiry,
// and prefix invalidation.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by backends when a key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// Store is the shared cache used by every proxied route.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Get never errors; it returns (nil, false) on miss, expiry, or any
//     backend failure. Cache trouble degrades to upstream fetches, it never
//     fails a request.
//   - Entries expire lazily: an entry older than its TTL is treated as absent
//     even if physically still present.
type Store interface {
	// Get retrieves a cached value. Returns (nil, false) on miss.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value with the given TTL. TTL<=0 means no caching.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a single key. Idempotent, no error on miss.
	Delete(ctx context.Context, key string) error

	// DeleteByPrefix removes every key starting with prefix and only those.
	DeleteByPrefix(ctx context.Context, prefix string) error

	// Healthy reports whether the distributed backend is currently serving.
	Healthy() bool
}

// backend is a single cache tier. The distributed tier implements it over
// Redis; tests substitute a mock.
type backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Ping(ctx context.Context) error
}
