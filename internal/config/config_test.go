package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresBaseDomainAndUpstream(t *testing.T) {
	t.Setenv("TENANT_BASE_DOMAIN", "")
	t.Setenv("UPSTREAM_BASE_URL", "")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("TENANT_BASE_DOMAIN", "example.com")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("UPSTREAM_BASE_URL", "http://records:4000")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "example.com", cfg.Tenant.BaseDomain)
	assert.Equal(t, "http://records:4000", cfg.Upstream.BaseURL)
}

func TestParseTTLOverrides(t *testing.T) {
	t.Setenv("CACHE_TTL_OVERRIDES", "students=10m, dashboard=45s,bogus,broken=nope")

	overrides := parseTTLOverrides("CACHE_TTL_OVERRIDES")
	assert.Equal(t, map[string]time.Duration{
		"students":  10 * time.Minute,
		"dashboard": 45 * time.Second,
	}, overrides)
}

func TestParseTTLOverridesUnset(t *testing.T) {
	t.Setenv("CACHE_TTL_OVERRIDES", "")
	assert.Nil(t, parseTTLOverrides("CACHE_TTL_OVERRIDES"))
}
