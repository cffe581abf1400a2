package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"arbsignals/internal/catalog"
	"arbsignals/internal/pricing"
)

// StatusHandler serves the unauthenticated service banner and the catalog
// status endpoint.
type StatusHandler struct {
	Catalog *catalog.Catalog
	Version string
}

func (h *StatusHandler) Register(r *gin.Engine) {
	r.GET("/", h.root)
	r.GET("/api/v1/signals/status", h.signalStatus)
}

// @Summary Service banner with live signal counts
// @Tags status
// @Success 200 {object} map[string]any
// @Router / [get]
func (h *StatusHandler) root(c *gin.Context) {
	status := h.Catalog.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":  "Professional Arbitrage Signals API - Live",
		"version": h.version(),
		"system":  status,
		"live_signals": gin.H{
			"tier1_opportunities": status.Tier1Count,
			"tier2_validated":     status.Tier2Passed,
			"tier2_filtered":      status.Tier2Failed,
			"success_rate":        fmt.Sprintf("%.1f%%", status.SuccessRate),
		},
		"pricing":     pricingBlurbs(),
		"data_source": "Live signal extraction from the detection engine",
	})
}

// @Summary Catalog status
// @Tags signals
// @Success 200 {object} apiResponse
// @Router /api/v1/signals/status [get]
func (h *StatusHandler) signalStatus(c *gin.Context) {
	Ok(c, h.Catalog.Status(), nil)
}

func (h *StatusHandler) version() string {
	if h.Version != "" {
		return h.Version
	}
	return "2.0.0"
}

func pricingBlurbs() gin.H {
	blurb := func(tier pricing.Tier) string {
		p := pricing.Prices(tier)
		return fmt.Sprintf("$%s/month (launch) -> $%s/month (regular after 1 month)", p.Launch, p.Regular)
	}
	return gin.H{
		"basic":      blurb(pricing.TierBasic),
		"pro":        blurb(pricing.TierPro),
		"enterprise": blurb(pricing.TierEnterprise),
	}
}
