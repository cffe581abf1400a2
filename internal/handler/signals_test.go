package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"arbsignals/internal/catalog"
	"arbsignals/internal/extractor"
	"arbsignals/internal/models"
	"arbsignals/internal/pricing"
	"arbsignals/internal/service"
)

type docSource map[string]string

func (s docSource) ReadDocument(_ context.Context, name string) ([]byte, error) {
	doc, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", name, fs.ErrNotExist)
	}
	return []byte(doc), nil
}

const signalsOpportunitiesDoc = `[
  {
    "symbol": "ALPHA",
    "arbitrageRoutes": [
      {
        "routeId": "r1",
        "status": "PROFITABLE",
        "toCex": "gate",
        "network": "BEP20",
        "estimatedDuration": 12.5,
        "score": 88.5,
        "confidence": 0.9,
        "profitability": {"profitPercent": 2.345, "profit": 11.725, "requiredCapital": 500}
      }
    ]
  }
]`

func cyclesDocWith(t *testing.T, passed, failed int) string {
	t.Helper()
	cycles := make([]map[string]any, 0, passed+failed)
	for i := 0; i < passed; i++ {
		cycles = append(cycles, map[string]any{
			"cycle_id":             fmt.Sprintf("p%d", i),
			"symbol":               "ALPHA",
			"total_profit_percent": 1.2,
			"hop1":                 map[string]any{"from_exchange": "BINANCE", "to_exchange": "GATE", "network": "BEP20"},
			"executable":           true,
			"simulation_result":    "SUCCESS",
		})
	}
	for i := 0; i < failed; i++ {
		cycles = append(cycles, map[string]any{
			"cycle_id":             fmt.Sprintf("f%d", i),
			"symbol":               "BETA",
			"total_profit_percent": 0.4,
			"hop1":                 map[string]any{"from_exchange": "BINANCE", "to_exchange": "MEXC", "network": "BEP20"},
			"executable":           false,
			"simulation_result":    "FAILED",
			"failure_reason":       "profit below threshold",
			"failure_category":     "PROFIT_TOO_LOW",
		})
	}
	doc, err := json.Marshal(map[string]any{"simulated_cycles": cycles})
	if err != nil {
		t.Fatalf("marshal cycles doc: %v", err)
	}
	return string(doc)
}

func newSignalsRouter(t *testing.T, repo *stubRepo) *gin.Engine {
	t.Helper()
	ext := &extractor.Extractor{
		Source: docSource{
			"binance_tokens2e.json": signalsOpportunitiesDoc,
			"binance_bot2.json":     cyclesDocWith(t, 1, 12),
		},
		Exchanges: []string{"binance"},
		Now:       func() time.Time { return handlerNow },
	}
	cat := &catalog.Catalog{Extractor: ext}
	if started, err := cat.Refresh(context.Background()); !started || err != nil {
		t.Fatalf("Refresh() = (%v, %v), want (true, nil)", started, err)
	}
	h := &SignalsHandler{
		Catalog:      cat,
		Entitlements: &service.EntitlementService{Store: repo, Now: func() time.Time { return handlerNow }},
	}
	engine := gin.New()
	h.Register(engine)
	return engine
}

func seedCustomer(t *testing.T, repo *stubRepo, c *models.Customer) *models.Customer {
	t.Helper()
	if err := repo.CreateCustomer(context.Background(), c); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return c
}

func activeCustomer(email, tier, key string) *models.Customer {
	return &models.Customer{
		Email:               email,
		Tier:                tier,
		SubscriptionStatus:  models.SubscriptionActive,
		APIKey:              &key,
		TrialEndsAt:         handlerNow.AddDate(0, 0, 3),
		LaunchPricingEndsAt: handlerNow.AddDate(0, 0, 33),
		CurrentPrice:        pricing.Prices(pricing.Tier(tier)).Launch,
	}
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, w.Body.String())
	}
	return env
}

func decodeData(t *testing.T, env envelope, out any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data: %v (data %s)", err, env.Data)
	}
}

func TestTier1RejectsBadCredentials(t *testing.T) {
	repo := newStubRepo()
	engine := newSignalsRouter(t, repo)

	for _, auth := range []string{"", "Bearer as_doesnotexist"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/signals/tier1", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		w := serve(engine, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("auth %q: status = %d, want 401", auth, w.Code)
		}
		env := decodeEnvelope(t, w)
		if env.Message != "invalid api key" {
			t.Fatalf("auth %q: message = %q", auth, env.Message)
		}
	}
}

func TestTier1RejectsExpiredTrial(t *testing.T) {
	repo := newStubRepo()
	key := "as_trialkey0000000000000000"
	c := activeCustomer("trial@example.com", "basic", key)
	c.SubscriptionStatus = models.SubscriptionTrial
	c.TrialEndsAt = handlerNow.AddDate(0, 0, -1)
	seedCustomer(t, repo, c)
	engine := newSignalsRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals/tier1", nil)
	req.Header.Set("Authorization", "Bearer "+key)
	w := serve(engine, req)
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Message != "trial expired - subscription required" {
		t.Fatalf("message = %q", env.Message)
	}
}

func TestTier1ServesDataset(t *testing.T) {
	repo := newStubRepo()
	key := "as_prokey00000000000000000"
	customer := seedCustomer(t, repo, activeCustomer("pro@example.com", "pro", key))
	engine := newSignalsRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals/tier1", nil)
	req.Header.Set("Authorization", "Bearer "+key)
	w := serve(engine, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	var data struct {
		Signals []struct {
			SignalID     string `json:"signal_id"`
			TradingRoute string `json:"trading_route"`
		} `json:"signals"`
		TotalOpportunities int `json:"total_opportunities"`
		SignalStats        struct {
			ExchangesCovered []string `json:"exchanges_covered"`
		} `json:"signal_stats"`
		CustomerTier string `json:"customer_tier"`
		PricingInfo  struct {
			CurrentPrice    string `json:"current_price"`
			IsGrandfathered bool   `json:"is_grandfathered"`
		} `json:"pricing_info"`
		LastUpdated *time.Time `json:"last_updated"`
		DataSource  string     `json:"data_source"`
	}
	decodeData(t, decodeEnvelope(t, w), &data)

	if data.TotalOpportunities != 1 || len(data.Signals) != 1 {
		t.Fatalf("opportunities = %d, signals = %d, want 1 each", data.TotalOpportunities, len(data.Signals))
	}
	wantID := fmt.Sprintf("T1_BINANCE_ALPHA_r1_%d", handlerNow.Unix())
	if data.Signals[0].SignalID != wantID {
		t.Fatalf("signal_id = %q, want %q", data.Signals[0].SignalID, wantID)
	}
	if data.Signals[0].TradingRoute != "BINANCE → GATE" {
		t.Fatalf("trading_route = %q", data.Signals[0].TradingRoute)
	}
	if data.CustomerTier != "pro" {
		t.Fatalf("customer_tier = %q", data.CustomerTier)
	}
	if data.PricingInfo.CurrentPrice != "147" || data.PricingInfo.IsGrandfathered {
		t.Fatalf("pricing_info = %+v", data.PricingInfo)
	}
	if data.LastUpdated == nil {
		t.Fatalf("last_updated is nil")
	}
	if data.DataSource != "Live bot detection - all exchanges" {
		t.Fatalf("data_source = %q", data.DataSource)
	}
	if got := repo.usageCount(customer.ID, "tier1", handlerNow); got != 1 {
		t.Fatalf("tier1 usage = %d, want 1", got)
	}
}

func TestTier1AcceptsRawKeyHeader(t *testing.T) {
	repo := newStubRepo()
	key := "as_rawkey00000000000000000"
	seedCustomer(t, repo, activeCustomer("raw@example.com", "basic", key))
	engine := newSignalsRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals/tier1", nil)
	req.Header.Set("Authorization", key)
	if w := serve(engine, req); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestTier2RequiresProOrEnterprise(t *testing.T) {
	repo := newStubRepo()
	key := "as_basickey000000000000000"
	seedCustomer(t, repo, activeCustomer("basic@example.com", "basic", key))
	engine := newSignalsRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals/tier2", nil)
	req.Header.Set("Authorization", "Bearer "+key)
	w := serve(engine, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Message != "Tier 2 access requires Pro or Enterprise subscription" {
		t.Fatalf("message = %q", env.Message)
	}
}

func TestTier2ServesValidatedAndTruncatesFiltered(t *testing.T) {
	repo := newStubRepo()
	key := "as_prokey00000000000000000"
	seedCustomer(t, repo, activeCustomer("pro@example.com", "pro", key))
	engine := newSignalsRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals/tier2", nil)
	req.Header.Set("Authorization", "Bearer "+key)
	w := serve(engine, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	var data struct {
		ValidatedSignals []struct {
			SignalID string `json:"signal_id"`
		} `json:"validated_signals"`
		FilteredSignals []struct {
			FailureReason string `json:"failure_reason"`
		} `json:"filtered_signals"`
		ValidationSummary struct {
			TotalPassed        int `json:"total_passed"`
			TotalFailed        int `json:"total_failed"`
			ValidationAccuracy map[string]struct {
				TotalValidated int `json:"total_validated"`
			} `json:"validation_accuracy"`
		} `json:"validation_summary"`
		FailureBreakdown map[string]int `json:"failure_breakdown"`
		DataSource       string         `json:"data_source"`
	}
	decodeData(t, decodeEnvelope(t, w), &data)

	if len(data.ValidatedSignals) != 1 {
		t.Fatalf("validated = %d, want 1", len(data.ValidatedSignals))
	}
	if len(data.FilteredSignals) != filteredSignalsShown {
		t.Fatalf("filtered = %d, want %d", len(data.FilteredSignals), filteredSignalsShown)
	}
	if data.ValidationSummary.TotalPassed != 1 || data.ValidationSummary.TotalFailed != 12 {
		t.Fatalf("summary = %+v", data.ValidationSummary)
	}
	if got := data.ValidationSummary.ValidationAccuracy["binance"].TotalValidated; got != 13 {
		t.Fatalf("binance total_validated = %d, want 13", got)
	}
	if got := data.FailureBreakdown["Profit margin too low after real-time price check"]; got != 12 {
		t.Fatalf("failure_breakdown = %v", data.FailureBreakdown)
	}
	if data.DataSource != "Live bot validation engine" {
		t.Fatalf("data_source = %q", data.DataSource)
	}
}
