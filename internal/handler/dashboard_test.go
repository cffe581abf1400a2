package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"arbsignals/internal/catalog"
	"arbsignals/internal/models"
	"arbsignals/internal/pricing"
	"arbsignals/internal/repository"
)

func newDashboardRouter(repo *stubRepo) *gin.Engine {
	h := &DashboardHandler{Repo: repo, Catalog: &catalog.Catalog{}}
	engine := gin.New()
	h.Register(engine)
	return engine
}

// The dashboard prices against the wall clock, so seeds place their pricing
// windows relative to time.Now rather than the fixed test clock.

func TestDashboardUnknownCustomer(t *testing.T) {
	engine := newDashboardRouter(newStubRepo())

	for _, id := range []string{"abc", "999"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/customer/dashboard/"+id, nil)
		w := serve(engine, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("id %q: status = %d, want 404", id, w.Code)
		}
		if env := decodeEnvelope(t, w); env.Message != "customer not found" {
			t.Fatalf("id %q: message = %q", id, env.Message)
		}
	}
}

type dashboardView struct {
	Customer struct {
		ID    uint64 `json:"id"`
		Email string `json:"email"`
	} `json:"customer"`
	Subscription struct {
		CurrentPrice    string     `json:"current_price"`
		RegularPrice    string     `json:"regular_price"`
		MonthlySavings  string     `json:"monthly_savings"`
		IsGrandfathered bool       `json:"is_grandfathered"`
		NextBilling     *time.Time `json:"next_billing"`
	} `json:"subscription"`
	API struct {
		Key       *string `json:"key"`
		Endpoints struct {
			Tier1 string `json:"tier1"`
			Tier2 string `json:"tier2"`
		} `json:"endpoints"`
		Permissions struct {
			Tier2Access       bool `json:"tier2_access"`
			APICallsPerMinute int  `json:"api_calls_per_minute"`
		} `json:"permissions"`
	} `json:"api"`
	Usage []struct {
		Requests int64 `json:"requests"`
	} `json:"usage"`
	LiveData struct {
		Refreshing bool `json:"refreshing"`
	} `json:"live_data"`
}

func fetchDashboard(t *testing.T, engine *gin.Engine, id string) dashboardView {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/customer/dashboard/"+id, nil)
	w := serve(engine, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	var data dashboardView
	decodeData(t, decodeEnvelope(t, w), &data)
	return data
}

func TestDashboardActiveProCustomer(t *testing.T) {
	repo := newStubRepo()
	now := time.Now().UTC()
	key := "as_dashkey0000000000000000"
	next := now.AddDate(0, 0, 12)
	seedCustomer(t, repo, &models.Customer{
		Email:               "dash@example.com",
		Tier:                "pro",
		SubscriptionStatus:  models.SubscriptionActive,
		APIKey:              &key,
		TrialEndsAt:         now.AddDate(0, 0, 3),
		LaunchPricingEndsAt: now.AddDate(0, 0, 20),
		NextBillingDate:     &next,
		CurrentPrice:        pricing.Prices(pricing.TierPro).Launch,
	})
	repo.daily = []repository.DailyUsage{{Date: now.AddDate(0, 0, -1), Requests: 12}}
	engine := newDashboardRouter(repo)

	data := fetchDashboard(t, engine, "1")
	if data.Customer.ID != 1 || data.Customer.Email != "dash@example.com" {
		t.Fatalf("customer = %+v", data.Customer)
	}
	sub := data.Subscription
	if sub.CurrentPrice != "147" || sub.RegularPrice != "297" || sub.MonthlySavings != "150" {
		t.Fatalf("subscription = %+v", sub)
	}
	if sub.IsGrandfathered || sub.NextBilling == nil {
		t.Fatalf("subscription = %+v", sub)
	}
	if data.API.Key == nil || *data.API.Key != key {
		t.Fatalf("api key = %v", data.API.Key)
	}
	if data.API.Endpoints.Tier1 != "GET /api/v1/signals/tier1" || data.API.Endpoints.Tier2 != "GET /api/v1/signals/tier2" {
		t.Fatalf("endpoints = %+v", data.API.Endpoints)
	}
	if !data.API.Permissions.Tier2Access || data.API.Permissions.APICallsPerMinute != 300 {
		t.Fatalf("permissions = %+v", data.API.Permissions)
	}
	if len(data.Usage) != 1 || data.Usage[0].Requests != 12 {
		t.Fatalf("usage = %+v", data.Usage)
	}
	if data.LiveData.Refreshing {
		t.Fatalf("live_data = %+v", data.LiveData)
	}
}

func TestDashboardBasicTierUpgradeHint(t *testing.T) {
	repo := newStubRepo()
	now := time.Now().UTC()
	seedCustomer(t, repo, &models.Customer{
		Email:               "starter@example.com",
		Tier:                "basic",
		SubscriptionStatus:  models.SubscriptionTrial,
		TrialEndsAt:         now.AddDate(0, 0, 3),
		LaunchPricingEndsAt: now.AddDate(0, 0, 33),
		CurrentPrice:        pricing.Prices(pricing.TierBasic).Launch,
	})
	engine := newDashboardRouter(repo)

	data := fetchDashboard(t, engine, "1")
	if data.API.Key != nil {
		t.Fatalf("trial customer has api key %q", *data.API.Key)
	}
	if data.API.Endpoints.Tier2 != "Upgrade required" {
		t.Fatalf("tier2 endpoint = %q", data.API.Endpoints.Tier2)
	}
	if data.API.Permissions.Tier2Access {
		t.Fatalf("basic tier has tier2 access")
	}
	if data.Subscription.NextBilling != nil {
		t.Fatalf("trial customer has next billing date")
	}
}

func TestDashboardGrandfatheredPriceFrozen(t *testing.T) {
	repo := newStubRepo()
	now := time.Now().UTC()
	key := "as_grandkey000000000000000"
	seedCustomer(t, repo, &models.Customer{
		Email:               "early@example.com",
		Tier:                "pro",
		SubscriptionStatus:  models.SubscriptionActive,
		APIKey:              &key,
		TrialEndsAt:         now.AddDate(0, 0, -40),
		LaunchPricingEndsAt: now.AddDate(0, 0, -7),
		CurrentPrice:        pricing.Prices(pricing.TierPro).Launch,
		IsGrandfathered:     true,
	})
	engine := newDashboardRouter(repo)

	data := fetchDashboard(t, engine, "1")
	sub := data.Subscription
	if sub.CurrentPrice != "147" || !sub.IsGrandfathered {
		t.Fatalf("subscription = %+v, want frozen launch price", sub)
	}
	if sub.MonthlySavings != "150" {
		t.Fatalf("monthly_savings = %q, want 150", sub.MonthlySavings)
	}
}
