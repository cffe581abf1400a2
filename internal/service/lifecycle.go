package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"arbsignals/internal/models"
	"arbsignals/internal/pricing"
	"arbsignals/internal/repository"
)

const (
	trialDays         = 3
	launchWindowDays  = 33
	billingPeriodDays = 30

	// Key mints retry on a unique-index collision instead of surfacing it.
	apiKeyMintAttempts = 3
)

// CustomerLifecycleService owns the customer state machine: trial creation,
// activation on payment confirmation, and the one-way grandfathering
// transition once the launch-pricing window closes.
type CustomerLifecycleService struct {
	Store  repository.Repository
	Logger *zap.Logger
	Now    func() time.Time
}

func (s *CustomerLifecycleService) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *CustomerLifecycleService) logger() *zap.Logger {
	if s != nil && s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}

// Create registers a new customer in trial state. The trial window nests
// inside the launch-pricing window, and the recorded price is the tier's
// launch price.
func (s *CustomerLifecycleService) Create(ctx context.Context, email, tier string) (*models.Customer, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	parsedTier, ok := pricing.ParseTier(tier)
	if !ok {
		return nil, ErrInvalidTier
	}

	existing, err := s.Store.GetCustomerByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	now := s.now()
	customer := &models.Customer{
		Email:               normalized,
		Tier:                string(parsedTier),
		SubscriptionStatus:  models.SubscriptionTrial,
		TrialEndsAt:         now.AddDate(0, 0, trialDays),
		LaunchPricingEndsAt: now.AddDate(0, 0, launchWindowDays),
		CurrentPrice:        pricing.Prices(parsedTier).Launch,
	}
	if err := s.Store.CreateCustomer(ctx, customer); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	s.logger().Info("customer created",
		zap.Uint64("customer_id", customer.ID),
		zap.String("tier", customer.Tier),
		zap.Time("trial_ends_at", customer.TrialEndsAt),
	)
	return customer, nil
}

// Activate moves a customer to active, minting the API key and setting the
// next billing date. Re-activating an already-active customer is a no-op
// that returns the existing key; duplicate payment confirmations must never
// mint a second one.
func (s *CustomerLifecycleService) Activate(ctx context.Context, customerID uint64) (*models.Customer, error) {
	var out *models.Customer
	var lastErr error
	for attempt := 0; attempt < apiKeyMintAttempts; attempt++ {
		lastErr = s.Store.InTx(ctx, func(tx *gorm.DB) error {
			customer, err := s.Store.GetCustomerByIDForUpdateTx(ctx, tx, customerID)
			if err != nil {
				return err
			}
			if customer == nil {
				return ErrCustomerNotFound
			}
			if customer.SubscriptionStatus == models.SubscriptionActive && customer.APIKey != nil {
				out = customer
				return nil
			}
			key := mintAPIKey()
			now := s.now()
			next := now.AddDate(0, 0, billingPeriodDays)
			customer.SubscriptionStatus = models.SubscriptionActive
			customer.APIKey = &key
			customer.NextBillingDate = &next
			if err := s.Store.SaveCustomerTx(ctx, tx, customer); err != nil {
				return err
			}
			out = customer
			return nil
		})
		if lastErr == nil {
			return out, nil
		}
		// A duplicate-key abort can only come from the api_key index here;
		// retry the whole transaction with a fresh key.
		if errors.Is(lastErr, gorm.ErrDuplicatedKey) {
			s.logger().Warn("api key collision, retrying",
				zap.Uint64("customer_id", customerID),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		return nil, lastErr
	}
	return nil, lastErr
}

// CheckPricingTransitions grandfathers every active customer whose
// launch-pricing window has closed, freezing their current price. The sweep
// is idempotent; a customer failing does not stop the rest.
func (s *CustomerLifecycleService) CheckPricingTransitions(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.Store.ListPricingTransitionDue(ctx, now)
	if err != nil {
		return 0, err
	}
	transitioned := 0
	for _, id := range ids {
		err := s.Store.InTx(ctx, func(tx *gorm.DB) error {
			customer, err := s.Store.GetCustomerByIDForUpdateTx(ctx, tx, id)
			if err != nil {
				return err
			}
			if customer == nil || customer.IsGrandfathered {
				return nil
			}
			if customer.SubscriptionStatus != models.SubscriptionActive {
				return nil
			}
			if customer.LaunchPricingEndsAt.After(now) {
				return nil
			}
			customer.IsGrandfathered = true
			if err := s.Store.SaveCustomerTx(ctx, tx, customer); err != nil {
				return err
			}
			transitioned++
			s.logger().Info("customer grandfathered",
				zap.Uint64("customer_id", customer.ID),
				zap.String("tier", customer.Tier),
				zap.String("price", customer.CurrentPrice.String()),
			)
			return nil
		})
		if err != nil {
			s.logger().Warn("pricing transition failed",
				zap.Uint64("customer_id", id),
				zap.Error(err),
			)
		}
	}
	return transitioned, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func mintAPIKey() string {
	return "as_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}
