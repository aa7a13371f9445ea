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

import "context"

type contextKey string

const tenantContextKey contextKey = "tenant_context"

// WithContext attaches the resolved tenant Context to a request context.
// Resolution happens exactly once per request, in the transport middleware;
// everything downstream reads this value.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, tenantContextKey, tc)
}

// FromContext retrieves the resolved tenant Context. The zero value (no
// tenant, channel none) is returned when resolution never ran.
func FromContext(ctx context.Context) Context {
	if tc, ok := ctx.Value(tenantContextKey).(Context); ok {
		return tc
	}
	return Context{Channel: ChannelNone}
}
