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

package logger

import (
	"context"
	"log/slog"
)

// AuditEvent represents a security or compliance-relevant event
type AuditEvent struct {
	EventType string
	TenantID  string
	Channel   string
	IPAddress string
	Action    string
	Resource  string
	Result    string // allowed, denied
	Reason    string
	Metadata  map[string]any
}

// AuditLogger provides methods for logging security and audit events
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.With(Component("audit")),
	}
}

// Log logs an audit event
func (a *AuditLogger) Log(ctx context.Context, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("event_type", event.EventType),
		slog.String("action", event.Action),
		slog.String("result", event.Result),
	}

	if event.TenantID != "" {
		attrs = append(attrs, slog.String("tenant_id", event.TenantID))
	}
	if event.Channel != "" {
		attrs = append(attrs, slog.String("channel", event.Channel))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.Resource != "" {
		attrs = append(attrs, slog.String("resource", event.Resource))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	if len(event.Metadata) > 0 {
		attrs = append(attrs, slog.Any("metadata", event.Metadata))
	}

	a.logger.LogAttrs(ctx, slog.LevelInfo, "audit_event", attrs...)
}

// Gate events

// GateDenied records a subscription-gate denial.
func (a *AuditLogger) GateDenied(ctx context.Context, tenantID, channel, resource, reason string) {
	a.Log(ctx, AuditEvent{
		EventType: "subscription_gate",
		TenantID:  tenantID,
		Channel:   channel,
		Resource:  resource,
		Action:    "gate_check",
		Result:    "denied",
		Reason:    reason,
	})
}

// OperatorBypass records an operator acting inside a tenant's scope. Rare by
// construction, so every occurrence is worth a trail.
func (a *AuditLogger) OperatorBypass(ctx context.Context, tenantID, resource string) {
	a.Log(ctx, AuditEvent{
		EventType: "subscription_gate",
		TenantID:  tenantID,
		Resource:  resource,
		Action:    "gate_check",
		Result:    "allowed",
		Reason:    "operator_role",
	})
}
