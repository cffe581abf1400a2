package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"arbsignals/internal/client/nowpayments"
	"arbsignals/internal/models"
	"arbsignals/internal/pricing"
	"arbsignals/internal/repository"
)

const defaultPayCurrency = "usdterc20"

// PaymentProvider is the outbound payment surface. *nowpayments.Client
// satisfies it.
type PaymentProvider interface {
	CreatePayment(ctx context.Context, req nowpayments.CreatePaymentRequest) (*nowpayments.CreatePaymentResponse, error)
}

// PaymentService drives the subscribe and confirm flows: customer creation,
// provider payment creation, and webhook-triggered activation.
type PaymentService struct {
	Store          repository.Repository
	Lifecycle      *CustomerLifecycleService
	Provider       PaymentProvider
	IPNCallbackURL string
	Logger         *zap.Logger
	Now            func() time.Time
}

// SubscriptionInstructions is what a new subscriber needs to complete the
// crypto payment.
type SubscriptionInstructions struct {
	CustomerID  uint64          `json:"customer_id"`
	PaymentID   string          `json:"payment_id"`
	PayAddress  string          `json:"pay_address"`
	PayAmount   float64         `json:"pay_amount"`
	PayCurrency string          `json:"pay_currency"`
	PriceUSD    decimal.Decimal `json:"price_usd"`
	PricingInfo PricingInfo     `json:"pricing_info"`
}

type PricingInfo struct {
	Current           decimal.Decimal `json:"current"`
	Regular           decimal.Decimal `json:"regular"`
	LaunchPricingEnds time.Time       `json:"launch_pricing_ends"`
}

func (s *PaymentService) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *PaymentService) logger() *zap.Logger {
	if s != nil && s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}

// CreateSubscription registers the customer and creates the provider payment
// at the customer's current price. A provider failure leaves the trial
// customer row in place; only the payment is missing.
func (s *PaymentService) CreateSubscription(ctx context.Context, email, tier, payCurrency string) (*SubscriptionInstructions, error) {
	customer, err := s.Lifecycle.Create(ctx, email, tier)
	if err != nil {
		return nil, err
	}
	payCurrency = strings.ToLower(strings.TrimSpace(payCurrency))
	if payCurrency == "" {
		payCurrency = defaultPayCurrency
	}

	now := s.now()
	price := customer.CurrentPrice
	pricingType := models.PricingTypeLaunch
	if now.After(customer.LaunchPricingEndsAt) {
		pricingType = models.PricingTypeRegular
	}
	orderID := fmt.Sprintf("%d_%s_%d", customer.ID, customer.Tier, now.Unix())
	resp, err := s.Provider.CreatePayment(ctx, nowpayments.CreatePaymentRequest{
		PriceAmount:      price.InexactFloat64(),
		PriceCurrency:    "usd",
		PayCurrency:      payCurrency,
		OrderID:          orderID,
		OrderDescription: fmt.Sprintf("%s Signals - Monthly Subscription ($%s/month)", titleCase(customer.Tier), price.StringFixed(2)),
		IPNCallbackURL:   s.IPNCallbackURL,
		CustomerEmail:    customer.Email,
	})
	if err != nil {
		s.logger().Error("payment provider create failed",
			zap.Uint64("customer_id", customer.ID),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return nil, ErrPaymentProvider
	}

	payment := &models.Payment{
		CustomerID:        customer.ID,
		ProviderPaymentID: resp.PaymentID.String(),
		AmountUSD:         price,
		PayCurrency:       resp.PayCurrency,
		PricingType:       pricingType,
		Status:            models.PaymentWaiting,
		ProviderPayload:   datatypes.JSON(resp.Raw),
	}
	if err := s.Store.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}
	s.logger().Info("subscription payment created",
		zap.Uint64("customer_id", customer.ID),
		zap.String("payment_id", payment.ProviderPaymentID),
		zap.String("pricing_type", pricingType),
	)

	regular := pricing.Prices(pricing.Tier(customer.Tier)).Regular
	return &SubscriptionInstructions{
		CustomerID:  customer.ID,
		PaymentID:   payment.ProviderPaymentID,
		PayAddress:  resp.PayAddress,
		PayAmount:   resp.PayAmount,
		PayCurrency: resp.PayCurrency,
		PriceUSD:    price,
		PricingInfo: PricingInfo{
			Current:           price,
			Regular:           regular,
			LaunchPricingEnds: customer.LaunchPricingEndsAt,
		},
	}, nil
}

// ConfirmPayment activates the paying customer and completes the payment
// row. Idempotent: re-confirming a completed payment is a no-op, and
// concurrent duplicate confirmations mint exactly one API key and record
// exactly one completion.
func (s *PaymentService) ConfirmPayment(ctx context.Context, providerPaymentID string) error {
	providerPaymentID = strings.TrimSpace(providerPaymentID)
	payment, err := s.Store.GetPaymentByProviderID(ctx, providerPaymentID)
	if err != nil {
		return err
	}
	if payment == nil {
		return ErrPaymentNotFound
	}
	if payment.Status == models.PaymentCompleted {
		return nil
	}

	customer, err := s.Lifecycle.Activate(ctx, payment.CustomerID)
	if err != nil {
		return err
	}

	err = s.Store.InTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.Store.GetPaymentByProviderIDForUpdateTx(ctx, tx, providerPaymentID)
		if err != nil {
			return err
		}
		if locked == nil {
			return ErrPaymentNotFound
		}
		if locked.Status == models.PaymentCompleted {
			return nil
		}
		now := s.now()
		locked.Status = models.PaymentCompleted
		locked.ConfirmedAt = &now
		return s.Store.SavePaymentTx(ctx, tx, locked)
	})
	if err != nil {
		return err
	}
	s.logger().Info("payment confirmed",
		zap.String("payment_id", providerPaymentID),
		zap.Uint64("customer_id", customer.ID),
		zap.String("tier", customer.Tier),
	)
	return nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
