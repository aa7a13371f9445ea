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

package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/classbridge/classbridge/internal/gate"
	"github.com/classbridge/classbridge/internal/observability/logger"
	"github.com/classbridge/classbridge/internal/tenant"
	"github.com/classbridge/classbridge/internal/upstream"
)

// Tenant Context Principles:
// 1. Tenant identity is derived EXCLUSIVELY from the Host header
// 2. The session cookie is forwarded verbatim, never parsed for tenant
// 3. An inbound X-Tenant-ID header is a spoofing attempt and is rejected

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.Host(r.Host),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				tc := tenant.FromContext(r.Context())
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.TenantID(tc.TenantID),
					logger.Channel(string(tc.Channel)),
					logger.StatusCode(ww.Status()),
					logger.CacheStatus(ww.Header().Get("X-Cache")),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// TenantMiddleware resolves the tenant from the Host header exactly once per
// request and stores the result in the context. Downstream code never
// re-parses host names.
func TenantMiddleware(resolver *tenant.Resolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Reject tenant header spoofing before resolution: the only
			// legitimate source for that header is this proxy itself, on the
			// way upstream.
			if r.Header.Get(upstream.HeaderTenantID) != "" {
				slog.WarnContext(r.Context(), "tenant header spoofing attempt rejected",
					logger.Host(r.Host),
					logger.RemoteAddr(r.RemoteAddr),
				)
				respondError(w, http.StatusBadRequest, "X-Tenant-ID is not accepted; tenant is derived from the host name")
				return
			}

			tc := resolver.Resolve(r.Host)
			next.ServeHTTP(w, r.WithContext(tenant.WithContext(r.Context(), tc)))
		})
	}
}

// OperatorMiddleware extracts the verified caller role from the operator
// token, when one is present. The token is an HMAC-signed JWT in the
// cb_operator cookie or a bearer Authorization header. An absent or invalid
// token is not an error: the request simply proceeds without a role, and the
// subscription gate applies in full.
func OperatorMiddleware(secret []byte) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := operatorToken(r)
			if raw == "" || len(secret) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			role, err := verifyRole(raw, secret)
			if err != nil {
				slog.WarnContext(r.Context(), "invalid operator token",
					logger.RemoteAddr(r.RemoteAddr),
					logger.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(gate.WithRole(r.Context(), role)))
		})
	}
}

func operatorToken(r *http.Request) string {
	if c, err := r.Cookie("cb_operator"); err == nil && c.Value != "" {
		return c.Value
	}
	const prefix = "Bearer "
	if auth := r.Header.Get("Authorization"); len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

func verifyRole(raw string, secret []byte) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	role, _ := claims["role"].(string)
	if role == "" {
		return "", fmt.Errorf("token carries no role claim")
	}
	return role, nil
}
