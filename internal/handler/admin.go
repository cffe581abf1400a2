package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arbsignals/internal/repository"
	"arbsignals/internal/service"
)

// AdminHandler exposes operator endpoints. These sit behind network-level
// access control, not API keys.
type AdminHandler struct {
	Lifecycle *service.CustomerLifecycleService
	Repo      repository.Repository
	Logger    *zap.Logger
}

func (h *AdminHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/admin")
	g.POST("/check-pricing-transitions", h.checkPricingTransitions)
	g.GET("/customers", h.listCustomers)
}

// @Summary Run the grandfathering sweep now
// @Tags admin
// @Success 200 {object} apiResponse
// @Failure 500 {object} apiResponse
// @Router /api/v1/admin/check-pricing-transitions [post]
func (h *AdminHandler) checkPricingTransitions(c *gin.Context) {
	count, err := h.Lifecycle.CheckPricingTransitions(c.Request.Context())
	if err != nil {
		h.logger().Error("pricing transition sweep failed", zap.Error(err))
		Error(c, http.StatusInternalServerError, "pricing transition sweep failed", nil)
		return
	}
	Ok(c, gin.H{"status": "pricing transitions checked", "transitioned": count}, nil)
}

type adminCustomer struct {
	ID                  uint64          `json:"id"`
	Email               string          `json:"email"`
	Tier                string          `json:"tier"`
	SubscriptionStatus  string          `json:"subscription_status"`
	CurrentPrice        decimal.Decimal `json:"current_price"`
	IsGrandfathered     bool            `json:"is_grandfathered"`
	HasAPIKey           bool            `json:"has_api_key"`
	TrialEndsAt         time.Time       `json:"trial_ends_at"`
	LaunchPricingEndsAt time.Time       `json:"launch_pricing_ends_at"`
	NextBillingDate     *time.Time      `json:"next_billing_date"`
	CreatedAt           time.Time       `json:"created_at"`
}

// @Summary List customers
// @Tags admin
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Param status query string false "filter by subscription status"
// @Param tier query string false "filter by tier"
// @Success 200 {object} apiResponse{data=[]adminCustomer}
// @Failure 502 {object} apiResponse
// @Router /api/v1/admin/customers [get]
func (h *AdminHandler) listCustomers(c *gin.Context) {
	params := repository.ListCustomersParams{
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
		Status: strQueryPtr(c, "status"),
		Tier:   strQueryPtr(c, "tier"),
	}
	customers, err := h.Repo.ListCustomers(c.Request.Context(), params)
	if err != nil {
		h.logger().Warn("customer list failed", zap.Error(err))
		Error(c, http.StatusBadGateway, "storage unavailable", nil)
		return
	}
	total, err := h.Repo.CountCustomers(c.Request.Context(), params)
	if err != nil {
		h.logger().Warn("customer count failed", zap.Error(err))
		Error(c, http.StatusBadGateway, "storage unavailable", nil)
		return
	}

	items := make([]adminCustomer, 0, len(customers))
	for _, cu := range customers {
		items = append(items, adminCustomer{
			ID:                  cu.ID,
			Email:               cu.Email,
			Tier:                cu.Tier,
			SubscriptionStatus:  cu.SubscriptionStatus,
			CurrentPrice:        cu.CurrentPrice,
			IsGrandfathered:     cu.IsGrandfathered,
			HasAPIKey:           cu.APIKey != nil,
			TrialEndsAt:         cu.TrialEndsAt,
			LaunchPricingEndsAt: cu.LaunchPricingEndsAt,
			NextBillingDate:     cu.NextBillingDate,
			CreatedAt:           cu.CreatedAt,
		})
	}
	Ok(c, items, paginationMeta(params.Limit, params.Offset, total))
}

func (h *AdminHandler) logger() *zap.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return zap.NewNop()
}
