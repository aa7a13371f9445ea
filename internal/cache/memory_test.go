package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryTier_GetSetDelete(t *testing.T) {
	m := newMemoryTier()
	now := time.Now()

	m.set("students:acme:", []byte(`[]`), time.Minute, now)
	val, ok := m.get("students:acme:", now)
	assert.True(t, ok)
	assert.Equal(t, []byte(`[]`), val)

	m.delete("students:acme:")
	_, ok = m.get("students:acme:", now)
	assert.False(t, ok)

	// Deleting an absent key is a no-op.
	m.delete("students:acme:")
}

// Entries expire lazily: present before the TTL elapses, absent at and after
// it, with no explicit delete.
func TestMemoryTier_LazyExpiry(t *testing.T) {
	m := newMemoryTier()
	now := time.Now()
	m.set("k", []byte("v"), time.Minute, now)

	_, ok := m.get("k", now.Add(59*time.Second))
	assert.True(t, ok)

	_, ok = m.get("k", now.Add(time.Minute))
	assert.False(t, ok)

	// The expired read physically removed the entry.
	assert.Equal(t, 0, m.len())
}

func TestMemoryTier_ZeroTTLNotStored(t *testing.T) {
	m := newMemoryTier()
	now := time.Now()
	m.set("k", []byte("v"), 0, now)
	_, ok := m.get("k", now)
	assert.False(t, ok)
}

func TestMemoryTier_DeleteByPrefix(t *testing.T) {
	m := newMemoryTier()
	now := time.Now()

	m.set("students:acme:", []byte("a"), time.Minute, now)
	m.set("students:acme:page=2", []byte("b"), time.Minute, now)
	m.set("students:other:", []byte("c"), time.Minute, now)
	m.set("fees:acme:", []byte("d"), time.Minute, now)

	m.deleteByPrefix("students:acme:")

	_, ok := m.get("students:acme:", now)
	assert.False(t, ok)
	_, ok = m.get("students:acme:page=2", now)
	assert.False(t, ok)

	// Other tenants and other resources stay intact.
	_, ok = m.get("students:other:", now)
	assert.True(t, ok)
	_, ok = m.get("fees:acme:", now)
	assert.True(t, ok)
}

func TestMemoryTier_Sweep(t *testing.T) {
	m := newMemoryTier()
	now := time.Now()
	for i := 0; i < 100; i++ {
		ttl := time.Minute
		if i%2 == 0 {
			ttl = time.Second
		}
		m.set(fmt.Sprintf("k%d", i), []byte("v"), ttl, now)
	}

	m.sweep(now.Add(30 * time.Second))
	assert.Equal(t, 50, m.len())
}

// TestPurpose: Validates that the in-process tier survives concurrent
// interleaved operations on the same keys.
// Scope: Unit Test (run with -race)
// Expected: No torn reads, no map corruption; every value read back is one
// that some goroutine wrote in full.
func TestMemoryTier_ConcurrentAccess(t *testing.T) {
	m := newMemoryTier()
	now := time.Now()

	const goroutines = 32
	const iterations = 500

	valid := map[string]bool{}
	for g := 0; g < goroutines; g++ {
		valid[fmt.Sprintf("value-%d", g)] = true
	}

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			val := []byte(fmt.Sprintf("value-%d", g))
			for i := 0; i < iterations; i++ {
				switch i % 4 {
				case 0, 1:
					m.set("contended", val, time.Minute, now)
				case 2:
					if got, ok := m.get("contended", now); ok {
						assert.True(t, valid[string(got)], "torn read: %q", got)
					}
				case 3:
					m.delete("contended")
				}
			}
		}(g)
	}
	wg.Wait()
}
