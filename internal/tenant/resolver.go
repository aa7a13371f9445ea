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

package tenant

import (
	"net"
	"strings"
)

// Resolver derives a tenant Context from a request's Host header.
//
// Resolution is a pure function of the host string: it performs no I/O and
// never fails. Every call site depends on the returned Context instead of
// re-parsing host names itself.
//
// Recognized shapes, checked in order:
//
//	admin.<tenant>.<dev-suffix>   dev, channel admin
//	staff.<tenant>.<dev-suffix>   dev, channel staff
//	<tenant>.<dev-suffix>         dev, channel tenant
//	admin.<tenant>.<base-domain>  channel admin
//	staff.<tenant>.<base-domain>  channel staff
//	<tenant>.<base-domain>        channel tenant
//	<base-domain>                 no tenant (operator surface)
//
// Anything else, including bare localhost, resolves to no tenant.
type Resolver struct {
	baseDomain string
	devSuffix  string
}

// NewResolver creates a resolver for the given production base domain
// (e.g. "example.com") and local-development suffix (e.g. "lvh.me").
func NewResolver(baseDomain, devSuffix string) *Resolver {
	return &Resolver{
		baseDomain: strings.ToLower(strings.Trim(baseDomain, ".")),
		devSuffix:  strings.ToLower(strings.Trim(devSuffix, ".")),
	}
}

// Resolve derives the tenant Context for a Host header. It is total and
// deterministic: unrecognized input yields an empty TenantID, never an error.
func (r *Resolver) Resolve(hostHeader string) Context {
	host := strings.ToLower(strings.TrimSpace(hostHeader))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, ".")

	ctx := Context{Channel: ChannelNone, RawHost: hostHeader}
	if host == "" {
		return ctx
	}

	// The dev suffix takes priority so that <tenant>.lvh.me style hosts never
	// fall through to the production rules.
	if id, ch, ok := matchSuffix(host, r.devSuffix); ok {
		ctx.TenantID = id
		ctx.Channel = ch
		return ctx
	}
	if id, ch, ok := matchSuffix(host, r.baseDomain); ok {
		ctx.TenantID = id
		ctx.Channel = ch
		return ctx
	}
	return ctx
}

// matchSuffix applies the shared label rules relative to a domain suffix.
// The bare suffix and any unrecognized label count resolve to no tenant.
func matchSuffix(host, suffix string) (tenantID string, ch Channel, ok bool) {
	if suffix == "" {
		return "", ChannelNone, false
	}
	if host == suffix {
		return "", ChannelNone, true
	}
	if !strings.HasSuffix(host, "."+suffix) {
		return "", ChannelNone, false
	}

	labels := strings.Split(strings.TrimSuffix(host, "."+suffix), ".")
	switch len(labels) {
	case 1:
		if labels[0] == "" || labels[0] == "www" {
			return "", ChannelNone, true
		}
		return labels[0], ChannelTenant, true
	case 2:
		role := labels[0]
		id := labels[1]
		if id == "" {
			return "", ChannelNone, true
		}
		switch role {
		case "admin":
			return id, ChannelAdmin, true
		case "staff":
			return id, ChannelStaff, true
		}
		return "", ChannelNone, true
	default:
		return "", ChannelNone, true
	}
}
