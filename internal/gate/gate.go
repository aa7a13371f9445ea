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

// Package gate decides whether a tenant's subscription state currently
// permits a request. It is stateless: each decision is computed fresh from
// the upstream-owned subscription record, never cached, so billing changes
// take effect on the very next request.
package gate

import (
	"math"
	"time"
)

// Status is the nominal subscription status recorded upstream. It may be
// stale relative to the clock; Decide computes the effective status.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// RoleOperator is the distinguished platform-operator role. Operators are
// never gated, whatever the tenant's subscription state.
const RoleOperator = "SuperAdmin"

// Deny reason codes, machine-readable so the client can route to the right
// upgrade flow.
const (
	ReasonTrialExpired         = "TRIAL_EXPIRED"
	ReasonSubscriptionExpired  = "SUBSCRIPTION_EXPIRED"
	ReasonSubscriptionInactive = "SUBSCRIPTION_INACTIVE"
)

// UpgradeHint is where denied clients are pointed to resubscribe.
const UpgradeHint = "/plans"

// Subscription is the tenant's subscription record as the upstream record API
// serves it. This subsystem only reads it; billing events upstream mutate it.
type Subscription struct {
	Status             Status     `json:"subscriptionStatus"`
	TrialEndsAt        *time.Time `json:"trialEndDate"`
	SubscriptionEndsAt *time.Time `json:"subscriptionEndDate"`
}

// Decision is the outcome of a gate check. Computed per request, never
// stored.
type Decision struct {
	Allowed     bool   `json:"allowed"`
	ReasonCode  string `json:"reasonCode,omitempty"`
	UpgradeHint string `json:"upgradeHint,omitempty"`

	// Effective is the status after comparing the record's timestamps against
	// the clock; it may differ from the nominal status when upstream's cron
	// has not caught up yet.
	Effective Status `json:"-"`
}

func allow(effective Status) Decision {
	return Decision{Allowed: true, Effective: effective}
}

func deny(code string, effective Status) Decision {
	return Decision{
		Allowed:     false,
		ReasonCode:  code,
		UpgradeHint: UpgradeHint,
		Effective:   effective,
	}
}

// Decide computes the effective subscription state at now and the resulting
// allow/deny outcome.
//
// The nominal status is trusted only as far as the timestamps confirm it: a
// "trial" past its trial end is effectively expired even before upstream
// flips the stored status.
func Decide(sub Subscription, role string, now time.Time) Decision {
	if role == RoleOperator {
		return allow(sub.Status)
	}

	// Fail-open: records predating the billing rollout carry no timestamps at
	// all. Those tenants stay allowed. This is a deliberate compatibility
	// default, kept as its own branch so it cannot regress silently.
	if sub.TrialEndsAt == nil && sub.SubscriptionEndsAt == nil &&
		(sub.Status == StatusTrial || sub.Status == StatusActive || sub.Status == "") {
		return allow(sub.Status)
	}

	switch sub.Status {
	case StatusTrial:
		if sub.TrialEndsAt != nil && now.Before(*sub.TrialEndsAt) {
			return allow(StatusTrial)
		}
		return deny(ReasonTrialExpired, StatusExpired)

	case StatusActive:
		if sub.SubscriptionEndsAt != nil && now.Before(*sub.SubscriptionEndsAt) {
			return allow(StatusActive)
		}
		return deny(ReasonSubscriptionExpired, StatusExpired)

	case StatusCancelled, StatusExpired:
		return deny(ReasonSubscriptionInactive, sub.Status)

	default:
		// Unknown status values behave like the legacy records above.
		return allow(sub.Status)
	}
}

// RemainingTrialDays returns how many whole-or-partial days of trial are
// left, zero once the trial has ended or when no trial end is recorded.
func RemainingTrialDays(sub Subscription, now time.Time) int {
	if sub.TrialEndsAt == nil {
		return 0
	}
	left := sub.TrialEndsAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// TrialExpiringSoon reports whether the trial ends within the next three
// days, for the client's renewal nudge.
func TrialExpiringSoon(sub Subscription, now time.Time) bool {
	days := RemainingTrialDays(sub, now)
	return days > 0 && days <= 3
}
