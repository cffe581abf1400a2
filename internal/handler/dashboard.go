package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arbsignals/internal/catalog"
	"arbsignals/internal/pricing"
	"arbsignals/internal/repository"
)

const usageWindowDays = 7

// DashboardHandler serves the per-customer account view.
type DashboardHandler struct {
	Repo    repository.Repository
	Catalog *catalog.Catalog
	Logger  *zap.Logger
}

func (h *DashboardHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/customer/dashboard/:id", h.dashboard)
}

type dashboardResponse struct {
	Customer     dashboardCustomer       `json:"customer"`
	Subscription dashboardSubscription   `json:"subscription"`
	API          dashboardAPI            `json:"api"`
	Usage        []repository.DailyUsage `json:"usage"`
	LiveData     catalog.Status          `json:"live_data"`
}

type dashboardCustomer struct {
	ID                 uint64    `json:"id"`
	Email              string    `json:"email"`
	Tier               string    `json:"tier"`
	SubscriptionStatus string    `json:"subscription_status"`
	TrialEndsAt        time.Time `json:"trial_ends_at"`
	CreatedAt          time.Time `json:"created_at"`
}

type dashboardSubscription struct {
	Tier              string          `json:"tier"`
	Status            string          `json:"status"`
	CurrentPrice      decimal.Decimal `json:"current_price"`
	RegularPrice      decimal.Decimal `json:"regular_price"`
	MonthlySavings    decimal.Decimal `json:"monthly_savings"`
	IsGrandfathered   bool            `json:"is_grandfathered"`
	LaunchPricingEnds time.Time       `json:"launch_pricing_ends"`
	NextBilling       *time.Time      `json:"next_billing"`
}

type dashboardAPI struct {
	Key         *string             `json:"key"`
	Endpoints   dashboardEndpoints  `json:"endpoints"`
	Permissions pricing.Permissions `json:"permissions"`
}

type dashboardEndpoints struct {
	Tier1 string `json:"tier1"`
	Tier2 string `json:"tier2"`
}

// @Summary Customer account dashboard
// @Tags customers
// @Param id path int true "customer id"
// @Success 200 {object} apiResponse{data=dashboardResponse}
// @Failure 404 {object} apiResponse
// @Failure 502 {object} apiResponse
// @Router /api/v1/customer/dashboard/{id} [get]
func (h *DashboardHandler) dashboard(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		Error(c, http.StatusNotFound, "customer not found", nil)
		return
	}
	customer, err := h.Repo.GetCustomerByID(c.Request.Context(), id)
	if err != nil {
		h.logger().Warn("dashboard customer lookup failed", zap.Uint64("customer_id", id), zap.Error(err))
		Error(c, http.StatusBadGateway, "storage unavailable", nil)
		return
	}
	if customer == nil {
		Error(c, http.StatusNotFound, "customer not found", nil)
		return
	}

	now := time.Now().UTC()
	tier, _ := pricing.ParseTier(customer.Tier)
	current := pricing.CurrentPrice(tier, pricing.Snapshot{
		Grandfathered:       customer.IsGrandfathered,
		CurrentPrice:        customer.CurrentPrice,
		LaunchPricingEndsAt: customer.LaunchPricingEndsAt,
	}, now)
	regular := pricing.Prices(tier).Regular
	perms := pricing.PermissionsFor(tier)

	usage, err := h.Repo.ListDailyUsage(c.Request.Context(), customer.ID, now.AddDate(0, 0, -usageWindowDays))
	if err != nil {
		h.logger().Warn("dashboard usage lookup failed", zap.Uint64("customer_id", id), zap.Error(err))
		usage = nil
	}
	if usage == nil {
		usage = []repository.DailyUsage{}
	}

	tier2Endpoint := "Upgrade required"
	if perms.Tier2Access {
		tier2Endpoint = "GET /api/v1/signals/tier2"
	}

	resp := dashboardResponse{
		Customer: dashboardCustomer{
			ID:                 customer.ID,
			Email:              customer.Email,
			Tier:               customer.Tier,
			SubscriptionStatus: customer.SubscriptionStatus,
			TrialEndsAt:        customer.TrialEndsAt,
			CreatedAt:          customer.CreatedAt,
		},
		Subscription: dashboardSubscription{
			Tier:              customer.Tier,
			Status:            customer.SubscriptionStatus,
			CurrentPrice:      current,
			RegularPrice:      regular,
			MonthlySavings:    regular.Sub(current),
			IsGrandfathered:   customer.IsGrandfathered,
			LaunchPricingEnds: customer.LaunchPricingEndsAt,
			NextBilling:       customer.NextBillingDate,
		},
		API: dashboardAPI{
			Key: customer.APIKey,
			Endpoints: dashboardEndpoints{
				Tier1: "GET /api/v1/signals/tier1",
				Tier2: tier2Endpoint,
			},
			Permissions: perms,
		},
		Usage:    usage,
		LiveData: h.Catalog.Status(),
	}
	Ok(c, resp, nil)
}

func (h *DashboardHandler) logger() *zap.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return zap.NewNop()
}
