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

package proxy

import (
	"strings"
	"time"
)

// TTL classes by resource volatility. Attendance changes by the minute; plan
// catalogs change a few times a year.
const (
	TTLVeryShort = 30 * time.Second
	TTLShort     = 2 * time.Minute
	TTLMedium    = 5 * time.Minute
	TTLLong      = 15 * time.Minute
	TTLVeryLong  = time.Hour
)

// Resource describes one proxied resource family: everything under
// /api/<name>.
type Resource struct {
	// Name is the first path segment under /api and the cache key's resource
	// component.
	Name string

	// TTL for cached reads. Zero disables caching for the resource.
	TTL time.Duration

	// Invalidates lists the resource names whose cache prefixes a successful
	// mutation flushes. It always includes the resource itself; fan-out
	// entries cover derived views (a student mutation also staleness the
	// dashboard counters).
	Invalidates []string
}

// Registry maps resource names to their descriptors.
type Registry map[string]Resource

// DefaultRegistry returns the proxied resource table. TTLs can be overridden
// per resource from configuration.
func DefaultRegistry() Registry {
	list := []Resource{
		{Name: "students", TTL: TTLMedium, Invalidates: []string{"students", "dashboard"}},
		{Name: "attendance", TTL: TTLVeryShort, Invalidates: []string{"attendance", "dashboard"}},
		{Name: "payments", TTL: TTLShort, Invalidates: []string{"payments", "fees", "dashboard"}},
		{Name: "fees", TTL: TTLShort, Invalidates: []string{"fees", "payments", "dashboard"}},
		{Name: "exams", TTL: TTLMedium, Invalidates: []string{"exams", "dashboard"}},
		{Name: "employees", TTL: TTLMedium, Invalidates: []string{"employees"}},
		{Name: "batches", TTL: TTLLong, Invalidates: []string{"batches", "students"}},
		{Name: "messages", TTL: TTLVeryShort, Invalidates: []string{"messages"}},
		{Name: "dashboard", TTL: TTLShort, Invalidates: []string{"dashboard"}},
		{Name: "subscription-plans", TTL: TTLVeryLong, Invalidates: []string{"subscription-plans"}},
		{Name: "settings", TTL: TTLLong, Invalidates: []string{"settings", "dashboard"}},
	}

	reg := make(Registry, len(list))
	for _, r := range list {
		reg[r.Name] = r
	}
	return reg
}

// WithTTLOverrides applies per-resource TTLs from configuration on top of the
// defaults. Unknown names are ignored.
func (reg Registry) WithTTLOverrides(overrides map[string]time.Duration) Registry {
	for name, ttl := range overrides {
		if r, ok := reg[name]; ok {
			r.TTL = ttl
			reg[name] = r
		}
	}
	return reg
}

// Split breaks an /api request path into its resource name and remaining
// subpath. "/api/students/123" yields ("students", "123").
func Split(path string) (resource, subpath string) {
	p := strings.Trim(strings.TrimPrefix(path, "/api"), "/")
	if p == "" {
		return "", ""
	}
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i], p[i+1:]
	}
	return p, ""
}

// Lookup finds the descriptor for a request path. Unregistered resources are
// proxied without caching: a passthrough descriptor with a zero TTL that
// still invalidates its own prefix on mutation.
func (reg Registry) Lookup(path string) (Resource, string) {
	name, subpath := Split(path)
	if r, ok := reg[name]; ok {
		return r, subpath
	}
	return Resource{Name: name, Invalidates: []string{name}}, subpath
}
