package service

import (
	"context"
	"strconv"
	"time"

	"gorm.io/gorm"

	"arbsignals/internal/models"
	"arbsignals/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// Lookups return copies so mutations only persist through the save methods,
// matching how the real store behaves.
type stubRepo struct {
	customers map[uint64]*models.Customer
	payments  map[string]*models.Payment
	events    map[uint64]*models.WebhookEvent
	usage     map[string]int64
	nextID    uint64

	customerSaves int
	paymentSaves  int

	failCreateCustomer error
	failIncrement      error

	// Popped one per SaveCustomerTx call; nil entries succeed.
	saveCustomerErrs []error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		customers: make(map[uint64]*models.Customer),
		payments:  make(map[string]*models.Payment),
		events:    make(map[uint64]*models.WebhookEvent),
		usage:     make(map[string]int64),
	}
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (s *stubRepo) CreateCustomer(ctx context.Context, item *models.Customer) error {
	if s.failCreateCustomer != nil {
		return s.failCreateCustomer
	}
	for _, c := range s.customers {
		if c.Email == item.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	s.nextID++
	item.ID = s.nextID
	stored := *item
	s.customers[item.ID] = &stored
	return nil
}

func (s *stubRepo) GetCustomerByID(ctx context.Context, id uint64) (*models.Customer, error) {
	stored, ok := s.customers[id]
	if !ok {
		return nil, nil
	}
	c := *stored
	return &c, nil
}

func (s *stubRepo) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	for _, stored := range s.customers {
		if stored.Email == email {
			c := *stored
			return &c, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) GetCustomerByAPIKey(ctx context.Context, apiKey string) (*models.Customer, error) {
	for _, stored := range s.customers {
		if stored.APIKey != nil && *stored.APIKey == apiKey {
			c := *stored
			return &c, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) GetCustomerByIDForUpdateTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Customer, error) {
	return s.GetCustomerByID(ctx, id)
}

func (s *stubRepo) SaveCustomerTx(ctx context.Context, tx *gorm.DB, item *models.Customer) error {
	s.customerSaves++
	if len(s.saveCustomerErrs) > 0 {
		err := s.saveCustomerErrs[0]
		s.saveCustomerErrs = s.saveCustomerErrs[1:]
		if err != nil {
			return err
		}
	}
	stored := *item
	s.customers[item.ID] = &stored
	return nil
}

func (s *stubRepo) ListCustomers(ctx context.Context, params repository.ListCustomersParams) ([]models.Customer, error) {
	out := make([]models.Customer, 0)
	for _, stored := range s.customers {
		if params.Status != nil && stored.SubscriptionStatus != *params.Status {
			continue
		}
		if params.Tier != nil && stored.Tier != *params.Tier {
			continue
		}
		out = append(out, *stored)
	}
	return out, nil
}

func (s *stubRepo) CountCustomers(ctx context.Context, params repository.ListCustomersParams) (int64, error) {
	items, err := s.ListCustomers(ctx, params)
	return int64(len(items)), err
}

func (s *stubRepo) ListPricingTransitionDue(ctx context.Context, now time.Time) ([]uint64, error) {
	var ids []uint64
	for id, stored := range s.customers {
		if stored.SubscriptionStatus != models.SubscriptionActive || stored.IsGrandfathered {
			continue
		}
		if stored.LaunchPricingEndsAt.After(now) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *stubRepo) CreatePayment(ctx context.Context, item *models.Payment) error {
	if _, ok := s.payments[item.ProviderPaymentID]; ok {
		return gorm.ErrDuplicatedKey
	}
	s.nextID++
	item.ID = s.nextID
	stored := *item
	s.payments[item.ProviderPaymentID] = &stored
	return nil
}

func (s *stubRepo) GetPaymentByProviderID(ctx context.Context, providerPaymentID string) (*models.Payment, error) {
	stored, ok := s.payments[providerPaymentID]
	if !ok {
		return nil, nil
	}
	p := *stored
	return &p, nil
}

func (s *stubRepo) GetPaymentByProviderIDForUpdateTx(ctx context.Context, tx *gorm.DB, providerPaymentID string) (*models.Payment, error) {
	return s.GetPaymentByProviderID(ctx, providerPaymentID)
}

func (s *stubRepo) SavePaymentTx(ctx context.Context, tx *gorm.DB, item *models.Payment) error {
	s.paymentSaves++
	stored := *item
	s.payments[item.ProviderPaymentID] = &stored
	return nil
}

func (s *stubRepo) ListPaymentsByCustomerID(ctx context.Context, customerID uint64) ([]models.Payment, error) {
	out := make([]models.Payment, 0)
	for _, stored := range s.payments {
		if stored.CustomerID == customerID {
			out = append(out, *stored)
		}
	}
	return out, nil
}

func (s *stubRepo) IncrementUsage(ctx context.Context, customerID uint64, endpoint string, day time.Time) error {
	if s.failIncrement != nil {
		return s.failIncrement
	}
	s.usage[usageKey(customerID, endpoint, day)]++
	return nil
}

func (s *stubRepo) ListDailyUsage(ctx context.Context, customerID uint64, since time.Time) ([]repository.DailyUsage, error) {
	return nil, nil
}

func (s *stubRepo) InsertWebhookEvent(ctx context.Context, item *models.WebhookEvent) error {
	s.nextID++
	item.ID = s.nextID
	stored := *item
	s.events[item.ID] = &stored
	return nil
}

func (s *stubRepo) MarkWebhookEventProcessed(ctx context.Context, id uint64, processedAt time.Time) error {
	if stored, ok := s.events[id]; ok {
		stored.ProcessedAt = &processedAt
	}
	return nil
}

func usageKey(customerID uint64, endpoint string, day time.Time) string {
	return day.UTC().Format("2006-01-02") + "|" + endpoint + "|" + strconv.FormatUint(customerID, 10)
}

var _ repository.Repository = (*stubRepo)(nil)
