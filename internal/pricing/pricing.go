package pricing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Tier string

const (
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Price is the USD monthly price pair for a tier.
type Price struct {
	Launch  decimal.Decimal
	Regular decimal.Decimal
}

var prices = map[Tier]Price{
	TierBasic:      {Launch: decimal.NewFromInt(67), Regular: decimal.NewFromInt(97)},
	TierPro:        {Launch: decimal.NewFromInt(147), Regular: decimal.NewFromInt(297)},
	TierEnterprise: {Launch: decimal.NewFromInt(497), Regular: decimal.NewFromInt(1500)},
}

// ParseTier normalizes a client-supplied tier name. ok is false for
// anything outside the three known tiers.
func ParseTier(raw string) (Tier, bool) {
	tier := Tier(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := prices[tier]
	return tier, ok
}

// Prices returns the launch/regular pair for a tier, falling back to basic
// for unknown tiers.
func Prices(tier Tier) Price {
	if p, ok := prices[tier]; ok {
		return p
	}
	return prices[TierBasic]
}

// Snapshot is the slice of customer state the price decision depends on.
type Snapshot struct {
	Grandfathered       bool
	CurrentPrice        decimal.Decimal
	LaunchPricingEndsAt time.Time
}

// CurrentPrice resolves what a customer pays right now. Grandfathered
// customers keep their frozen price regardless of the tables; everyone else
// pays launch until the launch window closes and regular after.
func CurrentPrice(tier Tier, snap Snapshot, now time.Time) decimal.Decimal {
	if snap.Grandfathered {
		return snap.CurrentPrice
	}
	p := Prices(tier)
	if now.After(snap.LaunchPricingEndsAt) {
		return p.Regular
	}
	return p.Launch
}

// Permissions is the capability set attached to a tier.
type Permissions struct {
	Tier1Access       bool `json:"tier1_access"`
	Tier2Access       bool `json:"tier2_access"`
	APICallsPerMinute int  `json:"api_calls_per_minute"`
	WebhookAccess     bool `json:"webhook_access"`
	PriorityAccess    bool `json:"priority_access"`
}

var permissions = map[Tier]Permissions{
	TierBasic: {
		Tier1Access:       true,
		Tier2Access:       false,
		APICallsPerMinute: 60,
		WebhookAccess:     false,
		PriorityAccess:    false,
	},
	TierPro: {
		Tier1Access:       true,
		Tier2Access:       true,
		APICallsPerMinute: 300,
		WebhookAccess:     false,
		PriorityAccess:    false,
	},
	TierEnterprise: {
		Tier1Access:       true,
		Tier2Access:       true,
		APICallsPerMinute: 1000,
		WebhookAccess:     true,
		PriorityAccess:    true,
	},
}

// PermissionsFor returns the capability set for a tier. Unrecognized tiers
// get basic permissions.
func PermissionsFor(tier Tier) Permissions {
	if p, ok := permissions[tier]; ok {
		return p
	}
	return permissions[TierBasic]
}
