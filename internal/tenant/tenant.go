package tenant

// Channel is the access surface a request arrived through, derived from the
// host name alongside the tenant identifier.
type Channel string

const (
	// ChannelNone means the request carries no tenant: the bare base domain,
	// localhost, or an unrecognized host. Caching is disabled and the
	// subscription gate is bypassed for these requests (operator surface).
	ChannelNone Channel = "none"
	// ChannelTenant is the public student portal (<tenant>.base-domain).
	ChannelTenant Channel = "tenant"
	// ChannelAdmin is the institute admin surface (admin.<tenant>.base-domain).
	ChannelAdmin Channel = "admin"
	// ChannelStaff is the staff surface (staff.<tenant>.base-domain).
	ChannelStaff Channel = "staff"
)

// Context is the per-request tenant identity derived from the Host header.
// It is computed once per request and never persisted.
type Context struct {
	// TenantID is the institute's subdomain identifier, or "" when the host
	// does not map to a tenant.
	TenantID string  `json:"tenant_id"`
	Channel  Channel `json:"channel"`
	RawHost  string  `json:"raw_host"`
}

// HasTenant reports whether the request belongs to a tenant. Requests without
// a tenant proceed ungated and uncached.
func (c Context) HasTenant() bool {
	return c.TenantID != ""
}
