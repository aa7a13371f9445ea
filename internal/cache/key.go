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
	"net/url"
	"sort"
	"strings"
)

// NoTenant is the key segment used when a request has no tenant. It is a
// literal token, never an empty string: the tenant segment must always be
// present in the key so a no-tenant slot can never collide with a real
// tenant's slot.
const NoTenant = "none"

// BuildKey produces the cache key for a resource read.
//
// Format: <resource>:<tenant>:<subpath>?<canonical query>. The tenant segment
// is mandatory; it is the single place the anti-leak invariant is enforced.
// The subpath distinguishes a detail read (students/123) from the list read,
// while keeping both under the same resource:tenant: invalidation prefix.
// Query parameters are sorted by key (then by value for repeated keys), so
// parameter order in the URL never changes the key.
func BuildKey(resource, tenantID, subpath string, query url.Values) string {
	var b strings.Builder
	b.WriteString(KeyPrefix(resource, tenantID))
	b.WriteString(segment(strings.Trim(subpath, "/")))
	if q := canonicalQuery(query); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	return b.String()
}

// KeyPrefix returns the invalidation prefix covering every cached read of a
// resource for one tenant, i.e. "<resource>:<tenant>:".
func KeyPrefix(resource, tenantID string) string {
	if tenantID == "" {
		tenantID = NoTenant
	}
	return segment(resource) + ":" + segment(tenantID) + ":"
}

// canonicalQuery serializes query parameters deterministically.
func canonicalQuery(query url.Values) string {
	if len(query) == 0 {
		return ""
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		vals := append([]string(nil), query[k]...)
		sort.Strings(vals)
		for j, v := range vals {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// segment escapes the ':' delimiter so a crafted resource or tenant value
// cannot shift the key's structure.
func segment(s string) string {
	return strings.ReplaceAll(s, ":", "%3A")
}
