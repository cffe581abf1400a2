package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arbsignals/internal/models"
	"arbsignals/internal/pricing"
	"arbsignals/internal/repository"
)

// Entitlement is what a verified API key grants: identity, the price the
// customer currently pays, and the tier's capability set.
type Entitlement struct {
	CustomerID    uint64              `json:"customer_id"`
	Email         string              `json:"email"`
	Tier          pricing.Tier        `json:"tier"`
	CurrentPrice  decimal.Decimal     `json:"current_price"`
	Grandfathered bool                `json:"grandfathered"`
	Permissions   pricing.Permissions `json:"permissions"`
}

// EntitlementService is the sole admission-control checkpoint for signal
// reads. Verify resolves the key, distinguishes an expired trial from a bad
// credential, and records a usage increment for the calling endpoint.
type EntitlementService struct {
	Store  repository.Repository
	Logger *zap.Logger
	Now    func() time.Time
}

func (s *EntitlementService) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *EntitlementService) logger() *zap.Logger {
	if s != nil && s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}

func (s *EntitlementService) Verify(ctx context.Context, apiKey, endpoint string) (*Entitlement, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrInvalidAPIKey
	}
	customer, err := s.Store.GetCustomerByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, ErrInvalidAPIKey
	}
	now := s.now()
	if customer.SubscriptionStatus == models.SubscriptionTrial && now.After(customer.TrialEndsAt) {
		return nil, ErrTrialExpired
	}
	// Counters feed dashboards only; a failed increment must not block access.
	if err := s.Store.IncrementUsage(ctx, customer.ID, endpoint, now); err != nil {
		s.logger().Warn("usage increment failed",
			zap.Uint64("customer_id", customer.ID),
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
	}
	tier, _ := pricing.ParseTier(customer.Tier)
	snap := pricing.Snapshot{
		Grandfathered:       customer.IsGrandfathered,
		CurrentPrice:        customer.CurrentPrice,
		LaunchPricingEndsAt: customer.LaunchPricingEndsAt,
	}
	return &Entitlement{
		CustomerID:    customer.ID,
		Email:         customer.Email,
		Tier:          tier,
		CurrentPrice:  pricing.CurrentPrice(tier, snap, now),
		Grandfathered: customer.IsGrandfathered,
		Permissions:   pricing.PermissionsFor(tier),
	}, nil
}
