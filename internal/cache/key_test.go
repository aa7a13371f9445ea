package cache

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPurpose: Validates the anti-leak invariant of cache key construction.
// Scope: Unit Test
// Security: Two tenants must never share a cache key, and a no-tenant request
// must never share a slot with a real tenant.
// Expected: Keys differ whenever the tenant differs; the tenant segment is
// always present.
func TestBuildKey_TenantIsolation(t *testing.T) {
	q := url.Values{"page": {"1"}, "limit": {"50"}}

	k1 := BuildKey("students", "acme", "", q)
	k2 := BuildKey("students", "zen", "", q)
	assert.NotEqual(t, k1, k2)

	// The no-tenant slot is the literal "none" segment, not an empty one.
	k3 := BuildKey("students", "", "", q)
	assert.Contains(t, k3, ":none:")
	assert.NotEqual(t, k1, k3)

	assert.Equal(t, "students:acme:?limit=50&page=1", k1)
}

func TestBuildKey_QueryOrderIdempotence(t *testing.T) {
	q1 := url.Values{}
	q1.Add("b", "2")
	q1.Add("a", "1")
	q1.Add("c", "3")

	q2 := url.Values{}
	q2.Add("c", "3")
	q2.Add("a", "1")
	q2.Add("b", "2")

	assert.Equal(t, BuildKey("fees", "acme", "", q1), BuildKey("fees", "acme", "", q2))
}

func TestBuildKey_RepeatedParams(t *testing.T) {
	q1 := url.Values{"batch": {"b2", "b1"}}
	q2 := url.Values{"batch": {"b1", "b2"}}
	assert.Equal(t, BuildKey("exams", "acme", "", q1), BuildKey("exams", "acme", "", q2))
}

func TestBuildKey_SubpathDistinguishesDetailFromList(t *testing.T) {
	list := BuildKey("students", "acme", "", nil)
	detail := BuildKey("students", "acme", "123", nil)
	assert.NotEqual(t, list, detail)
	assert.Equal(t, "students:acme:123", detail)

	// Leading/trailing slashes in the subpath do not change the key.
	assert.Equal(t, detail, BuildKey("students", "acme", "/123/", nil))

	// Both stay under the tenant's invalidation prefix.
	prefix := KeyPrefix("students", "acme")
	assert.True(t, strings.HasPrefix(list, prefix))
	assert.True(t, strings.HasPrefix(detail, prefix))
}

func TestBuildKey_EmptyQuery(t *testing.T) {
	assert.Equal(t, "plans:acme:", BuildKey("plans", "acme", "", nil))
	assert.Equal(t, "plans:none:", BuildKey("plans", "", "", url.Values{}))
}

func TestBuildKey_EscapesDelimiter(t *testing.T) {
	// A crafted value containing the delimiter must not let one tenant's key
	// masquerade as another's prefix.
	k := BuildKey("students", "acme:evil", "", nil)
	assert.Equal(t, "students:acme%3Aevil:", k)
	assert.False(t, strings.HasPrefix(k, KeyPrefix("students", "acme")))
}

func TestKeyPrefix_CoversBuiltKeys(t *testing.T) {
	q := url.Values{"page": {"3"}}
	key := BuildKey("students", "acme", "42", q)
	prefix := KeyPrefix("students", "acme")
	assert.True(t, strings.HasPrefix(key, prefix))

	// The prefix for one tenant never covers another tenant's keys.
	other := BuildKey("students", "acme2", "42", q)
	assert.False(t, strings.HasPrefix(other, prefix))
}
