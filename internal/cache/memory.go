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
	"hash/fnv"
	"strings"
	"sync"
	"time"
)

// shardCount trades lock contention for memory. Locks are held only for the
// duration of a single map operation, never across a network call.
const shardCount = 32

// memoryTier is the in-process fallback tier. It mirrors the TTL semantics of
// the distributed tier: lazy expiry at read time, plus a periodic sweep
// (driven by the owning store) because a plain map has no native expiry.
type memoryTier struct {
	shards [shardCount]memoryShard
}

type memoryShard struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value    []byte
	storedAt time.Time
	ttl      time.Duration
}

func newMemoryTier() *memoryTier {
	t := &memoryTier{}
	for i := range t.shards {
		t.shards[i].entries = make(map[string]memoryEntry)
	}
	return t
}

func (t *memoryTier) shard(key string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &t.shards[h.Sum32()%shardCount]
}

// get returns the value for key, treating entries at or past their TTL as
// absent and removing them.
func (t *memoryTier) get(key string, now time.Time) ([]byte, bool) {
	s := t.shard(key)

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if now.Sub(e.storedAt) >= e.ttl {
		s.mu.Lock()
		// Re-check under the write lock: a concurrent set may have refreshed
		// the entry since the read above.
		if cur, ok := s.entries[key]; ok && now.Sub(cur.storedAt) >= cur.ttl {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func (t *memoryTier) set(key string, value []byte, ttl time.Duration, now time.Time) {
	if ttl <= 0 {
		return
	}
	s := t.shard(key)
	s.mu.Lock()
	s.entries[key] = memoryEntry{value: value, storedAt: now, ttl: ttl}
	s.mu.Unlock()
}

func (t *memoryTier) delete(key string) {
	s := t.shard(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// deleteByPrefix walks every shard. Key volume in this tier is bounded by the
// sweep, so a full walk stays cheap at the tens-of-thousands scale.
func (t *memoryTier) deleteByPrefix(prefix string) {
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for k := range s.entries {
			if strings.HasPrefix(k, prefix) {
				delete(s.entries, k)
			}
		}
		s.mu.Unlock()
	}
}

// sweep removes expired entries to bound memory between reads.
func (t *memoryTier) sweep(now time.Time) {
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for k, e := range s.entries {
			if now.Sub(e.storedAt) >= e.ttl {
				delete(s.entries, k)
			}
		}
		s.mu.Unlock()
	}
}

// len reports the live entry count, expired or not. Used by the sweep tests.
func (t *memoryTier) len() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}
