package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseTier(t *testing.T) {
	tests := []struct {
		in   string
		want Tier
		ok   bool
	}{
		{"basic", TierBasic, true},
		{"Pro", TierPro, true},
		{" ENTERPRISE ", TierEnterprise, true},
		{"platinum", Tier("platinum"), false},
		{"", Tier(""), false},
	}
	for _, tt := range tests {
		got, ok := ParseTier(tt.in)
		if ok != tt.ok {
			t.Fatalf("ParseTier(%q) ok=%v want %v", tt.in, ok, tt.ok)
		}
		if ok && got != tt.want {
			t.Fatalf("ParseTier(%q)=%q want %q", tt.in, got, tt.want)
		}
	}
}

func TestPricesTable(t *testing.T) {
	tests := []struct {
		tier    Tier
		launch  int64
		regular int64
	}{
		{TierBasic, 67, 97},
		{TierPro, 147, 297},
		{TierEnterprise, 497, 1500},
		{Tier("unknown"), 67, 97},
	}
	for _, tt := range tests {
		p := Prices(tt.tier)
		if !p.Launch.Equal(decimal.NewFromInt(tt.launch)) {
			t.Fatalf("%s launch=%s want %d", tt.tier, p.Launch, tt.launch)
		}
		if !p.Regular.Equal(decimal.NewFromInt(tt.regular)) {
			t.Fatalf("%s regular=%s want %d", tt.tier, p.Regular, tt.regular)
		}
	}
}

func TestCurrentPrice(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	// Inside the launch window.
	snap := Snapshot{LaunchPricingEndsAt: now.Add(24 * time.Hour)}
	if got := CurrentPrice(TierPro, snap, now); !got.Equal(decimal.NewFromInt(147)) {
		t.Fatalf("launch window price=%s want 147", got)
	}

	// Window expired, not grandfathered.
	snap = Snapshot{LaunchPricingEndsAt: now.Add(-time.Hour)}
	if got := CurrentPrice(TierPro, snap, now); !got.Equal(decimal.NewFromInt(297)) {
		t.Fatalf("expired window price=%s want 297", got)
	}

	// Grandfathered keeps the frozen price even past the window.
	snap = Snapshot{
		Grandfathered:       true,
		CurrentPrice:        decimal.NewFromInt(147),
		LaunchPricingEndsAt: now.Add(-30 * 24 * time.Hour),
	}
	if got := CurrentPrice(TierPro, snap, now); !got.Equal(decimal.NewFromInt(147)) {
		t.Fatalf("grandfathered price=%s want 147", got)
	}
}

func TestPermissionsFor(t *testing.T) {
	basic := PermissionsFor(TierBasic)
	if !basic.Tier1Access || basic.Tier2Access {
		t.Fatalf("basic permissions wrong: %+v", basic)
	}
	if basic.APICallsPerMinute != 60 {
		t.Fatalf("basic rate=%d want 60", basic.APICallsPerMinute)
	}

	pro := PermissionsFor(TierPro)
	if !pro.Tier2Access || pro.WebhookAccess {
		t.Fatalf("pro permissions wrong: %+v", pro)
	}

	ent := PermissionsFor(TierEnterprise)
	if !ent.Tier2Access || !ent.WebhookAccess || !ent.PriorityAccess {
		t.Fatalf("enterprise permissions wrong: %+v", ent)
	}
	if ent.APICallsPerMinute != 1000 {
		t.Fatalf("enterprise rate=%d want 1000", ent.APICallsPerMinute)
	}

	// Unknown tiers degrade to basic.
	if got := PermissionsFor(Tier("vip")); got != basic {
		t.Fatalf("unknown tier permissions=%+v want basic", got)
	}
}
