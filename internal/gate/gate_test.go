package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ts(t time.Time) *time.Time { return &t }

// TestPurpose: Validates every effective-state transition of the subscription
// gate against wall-clock time.
// Scope: Unit Test
// Security: A wrong ALLOW here gives an unpaid tenant full access; a wrong
// DENY locks out a paying one.
// Expected: Each nominal status and timestamp combination yields the
// documented decision and reason code.
func TestDecide_Transitions(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		sub     Subscription
		allowed bool
		reason  string
	}{
		{
			name:    "trial with a day left",
			sub:     Subscription{Status: StatusTrial, TrialEndsAt: ts(now.Add(24 * time.Hour))},
			allowed: true,
		},
		{
			name:    "trial expired a second ago",
			sub:     Subscription{Status: StatusTrial, TrialEndsAt: ts(now.Add(-time.Second))},
			allowed: false,
			reason:  ReasonTrialExpired,
		},
		{
			name:    "trial ending exactly now",
			sub:     Subscription{Status: StatusTrial, TrialEndsAt: ts(now)},
			allowed: false,
			reason:  ReasonTrialExpired,
		},
		{
			name:    "active subscription",
			sub:     Subscription{Status: StatusActive, SubscriptionEndsAt: ts(now.Add(30 * 24 * time.Hour))},
			allowed: true,
		},
		{
			name:    "active past its end date",
			sub:     Subscription{Status: StatusActive, SubscriptionEndsAt: ts(now.Add(-24 * time.Hour))},
			allowed: false,
			reason:  ReasonSubscriptionExpired,
		},
		{
			name:    "cancelled denies regardless of timestamps",
			sub:     Subscription{Status: StatusCancelled, SubscriptionEndsAt: ts(now.Add(24 * time.Hour))},
			allowed: false,
			reason:  ReasonSubscriptionInactive,
		},
		{
			name:    "already expired",
			sub:     Subscription{Status: StatusExpired},
			allowed: false,
			reason:  ReasonSubscriptionInactive,
		},
		{
			name:    "trial missing its trial end but carrying a subscription end",
			sub:     Subscription{Status: StatusTrial, SubscriptionEndsAt: ts(now.Add(24 * time.Hour))},
			allowed: false,
			reason:  ReasonTrialExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.sub, "TenantAdmin", now)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.reason, d.ReasonCode)
			if !tt.allowed {
				assert.Equal(t, UpgradeHint, d.UpgradeHint, "every deny carries the upgrade hint")
			}
		})
	}
}

// The fail-open branch: pre-billing records carry no timestamps and must stay
// allowed. This is an intentional compatibility default, not a bug.
func TestDecide_FailOpenForLegacyRecords(t *testing.T) {
	now := time.Now()

	for _, status := range []Status{StatusTrial, StatusActive, ""} {
		d := Decide(Subscription{Status: status}, "TenantAdmin", now)
		assert.True(t, d.Allowed, "status %q", status)
		assert.Empty(t, d.ReasonCode)
	}

	// But a terminal status denies even without timestamps.
	d := Decide(Subscription{Status: StatusCancelled}, "TenantAdmin", now)
	assert.False(t, d.Allowed)
}

func TestDecide_OperatorBypassesEverything(t *testing.T) {
	now := time.Now()
	subs := []Subscription{
		{Status: StatusCancelled},
		{Status: StatusExpired},
		{Status: StatusTrial, TrialEndsAt: ts(now.Add(-time.Hour))},
	}
	for _, sub := range subs {
		d := Decide(sub, RoleOperator, now)
		assert.True(t, d.Allowed)
	}
}

func TestRemainingTrialDays(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, RemainingTrialDays(Subscription{}, now))
	assert.Equal(t, 0, RemainingTrialDays(Subscription{TrialEndsAt: ts(now.Add(-time.Hour))}, now))
	assert.Equal(t, 1, RemainingTrialDays(Subscription{TrialEndsAt: ts(now.Add(2 * time.Hour))}, now))
	assert.Equal(t, 7, RemainingTrialDays(Subscription{TrialEndsAt: ts(now.Add(7 * 24 * time.Hour))}, now))
}

func TestTrialExpiringSoon(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	assert.True(t, TrialExpiringSoon(Subscription{TrialEndsAt: ts(now.Add(48 * time.Hour))}, now))
	assert.False(t, TrialExpiringSoon(Subscription{TrialEndsAt: ts(now.Add(10 * 24 * time.Hour))}, now))
	assert.False(t, TrialExpiringSoon(Subscription{TrialEndsAt: ts(now.Add(-time.Hour))}, now))
	assert.False(t, TrialExpiringSoon(Subscription{}, now))
}
