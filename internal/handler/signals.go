package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arbsignals/internal/catalog"
	"arbsignals/internal/extractor"
	"arbsignals/internal/pricing"
	"arbsignals/internal/service"
)

const filteredSignalsShown = 10

// SignalsHandler serves the entitlement-gated tier-1 and tier-2 datasets.
type SignalsHandler struct {
	Catalog      *catalog.Catalog
	Entitlements *service.EntitlementService
	Logger       *zap.Logger
}

func (h *SignalsHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/signals")
	group.GET("/tier1", h.tier1)
	group.GET("/tier2", h.tier2)
}

type pricingInfo struct {
	CurrentPrice    decimal.Decimal `json:"current_price"`
	IsGrandfathered bool            `json:"is_grandfathered"`
}

type tier1Response struct {
	Signals            []extractor.Signal     `json:"signals"`
	TotalOpportunities int                    `json:"total_opportunities"`
	SignalStats        extractor.TierOneStats `json:"signal_stats"`
	CustomerTier       pricing.Tier           `json:"customer_tier"`
	PricingInfo        pricingInfo            `json:"pricing_info"`
	LastUpdated        *time.Time             `json:"last_updated"`
	DataSource         string                 `json:"data_source"`
}

type validationSummary struct {
	TotalPassed        int                                  `json:"total_passed"`
	TotalFailed        int                                  `json:"total_failed"`
	ValidationAccuracy map[string]extractor.ExchangeSummary `json:"validation_accuracy"`
}

type tier2Response struct {
	ValidatedSignals  []extractor.ValidatedSignal `json:"validated_signals"`
	FilteredSignals   []extractor.ValidatedSignal `json:"filtered_signals"`
	ValidationSummary validationSummary           `json:"validation_summary"`
	FailureBreakdown  map[string]int              `json:"failure_breakdown"`
	CustomerTier      pricing.Tier                `json:"customer_tier"`
	PricingInfo       pricingInfo                 `json:"pricing_info"`
	LastUpdated       *time.Time                  `json:"last_updated"`
	DataSource        string                      `json:"data_source"`
}

// @Summary Tier-1 arbitrage opportunities
// @Tags signals
// @Param Authorization header string true "Bearer api key"
// @Success 200 {object} apiResponse
// @Failure 401 {object} apiResponse
// @Failure 402 {object} apiResponse
// @Failure 403 {object} apiResponse
// @Router /api/v1/signals/tier1 [get]
func (h *SignalsHandler) tier1(c *gin.Context) {
	ent, ok := h.verify(c, "tier1")
	if !ok {
		return
	}
	if !ent.Permissions.Tier1Access {
		Error(c, http.StatusForbidden, "Tier 1 access required", nil)
		return
	}
	signals, stats, lastUpdated := h.Catalog.Tier1()
	Ok(c, tier1Response{
		Signals:            signals,
		TotalOpportunities: len(signals),
		SignalStats:        stats,
		CustomerTier:       ent.Tier,
		PricingInfo:        pricingInfo{CurrentPrice: ent.CurrentPrice, IsGrandfathered: ent.Grandfathered},
		LastUpdated:        lastUpdated,
		DataSource:         "Live bot detection - all exchanges",
	}, nil)
}

// @Summary Validated tier-2 signals
// @Tags signals
// @Param Authorization header string true "Bearer api key"
// @Success 200 {object} apiResponse
// @Failure 401 {object} apiResponse
// @Failure 402 {object} apiResponse
// @Failure 403 {object} apiResponse
// @Router /api/v1/signals/tier2 [get]
func (h *SignalsHandler) tier2(c *gin.Context) {
	ent, ok := h.verify(c, "tier2")
	if !ok {
		return
	}
	if !ent.Permissions.Tier2Access {
		Error(c, http.StatusForbidden, "Tier 2 access requires Pro or Enterprise subscription", nil)
		return
	}
	tier2, lastUpdated := h.Catalog.Tier2()
	filtered := tier2.Failed
	if len(filtered) > filteredSignalsShown {
		filtered = filtered[:filteredSignalsShown]
	}
	Ok(c, tier2Response{
		ValidatedSignals: tier2.Passed,
		FilteredSignals:  filtered,
		ValidationSummary: validationSummary{
			TotalPassed:        len(tier2.Passed),
			TotalFailed:        len(tier2.Failed),
			ValidationAccuracy: tier2.ValidationSummary,
		},
		FailureBreakdown: tier2.FailureBreakdown,
		CustomerTier:     ent.Tier,
		PricingInfo:      pricingInfo{CurrentPrice: ent.CurrentPrice, IsGrandfathered: ent.Grandfathered},
		LastUpdated:      lastUpdated,
		DataSource:       "Live bot validation engine",
	}, nil)
}

func (h *SignalsHandler) verify(c *gin.Context, endpoint string) (*service.Entitlement, bool) {
	ent, err := h.Entitlements.Verify(c.Request.Context(), bearerToken(c), endpoint)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAPIKey):
			Error(c, http.StatusUnauthorized, "invalid api key", nil)
		case errors.Is(err, service.ErrTrialExpired):
			Error(c, http.StatusPaymentRequired, "trial expired - subscription required", nil)
		default:
			if h.Logger != nil {
				h.Logger.Warn("entitlement check failed", zap.String("endpoint", endpoint), zap.Error(err))
			}
			Error(c, http.StatusBadGateway, err.Error(), nil)
		}
		return nil, false
	}
	return ent, true
}

func bearerToken(c *gin.Context) string {
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return auth
}
