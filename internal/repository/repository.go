package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"arbsignals/internal/models"
)

// Repository is the persistence surface for customers, payments, usage
// counters, and the webhook audit trail. The *Tx variants run against the
// transaction handed out by InTx so lifecycle transitions can lock a single
// customer or payment row without serializing unrelated work.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Customers
	CreateCustomer(ctx context.Context, item *models.Customer) error
	GetCustomerByID(ctx context.Context, id uint64) (*models.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	GetCustomerByAPIKey(ctx context.Context, apiKey string) (*models.Customer, error)
	GetCustomerByIDForUpdateTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Customer, error)
	SaveCustomerTx(ctx context.Context, tx *gorm.DB, item *models.Customer) error
	ListCustomers(ctx context.Context, params ListCustomersParams) ([]models.Customer, error)
	CountCustomers(ctx context.Context, params ListCustomersParams) (int64, error)
	ListPricingTransitionDue(ctx context.Context, now time.Time) ([]uint64, error)

	// Payments
	CreatePayment(ctx context.Context, item *models.Payment) error
	GetPaymentByProviderID(ctx context.Context, providerPaymentID string) (*models.Payment, error)
	GetPaymentByProviderIDForUpdateTx(ctx context.Context, tx *gorm.DB, providerPaymentID string) (*models.Payment, error)
	SavePaymentTx(ctx context.Context, tx *gorm.DB, item *models.Payment) error
	ListPaymentsByCustomerID(ctx context.Context, customerID uint64) ([]models.Payment, error)

	// Usage counters
	IncrementUsage(ctx context.Context, customerID uint64, endpoint string, day time.Time) error
	ListDailyUsage(ctx context.Context, customerID uint64, since time.Time) ([]DailyUsage, error)

	// Webhook audit trail
	InsertWebhookEvent(ctx context.Context, item *models.WebhookEvent) error
	MarkWebhookEventProcessed(ctx context.Context, id uint64, processedAt time.Time) error
}

type ListCustomersParams struct {
	Limit  int
	Offset int
	Status *string
	Tier   *string
}

// DailyUsage is one customer's request total for a calendar day, summed
// across endpoints.
type DailyUsage struct {
	Date     time.Time `json:"date"`
	Requests int64     `json:"requests"`
}
