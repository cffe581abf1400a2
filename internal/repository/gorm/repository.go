package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"arbsignals/internal/models"
	"arbsignals/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Customers ---------------------------------------------------------------

func (s *Store) CreateCustomer(ctx context.Context, item *models.Customer) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetCustomerByID(ctx context.Context, id uint64) (*models.Customer, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if id == 0 {
		return nil, nil
	}
	var item models.Customer
	err := s.db.WithContext(ctx).Model(&models.Customer{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	var item models.Customer
	err := s.db.WithContext(ctx).Model(&models.Customer{}).Where("email = ?", email).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetCustomerByAPIKey(ctx context.Context, apiKey string) (*models.Customer, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, nil
	}
	var item models.Customer
	err := s.db.WithContext(ctx).Model(&models.Customer{}).Where("api_key = ?", apiKey).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetCustomerByIDForUpdateTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Customer, error) {
	if tx == nil || id == 0 {
		return nil, nil
	}
	var item models.Customer
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveCustomerTx(ctx context.Context, tx *gorm.DB, item *models.Customer) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Save(item).Error
}

func (s *Store) ListCustomers(ctx context.Context, params repository.ListCustomersParams) ([]models.Customer, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Customer{})
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("subscription_status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Tier != nil && strings.TrimSpace(*params.Tier) != "" {
		query = query.Where("tier = ?", strings.TrimSpace(*params.Tier))
	}
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Customer
	if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountCustomers(ctx context.Context, params repository.ListCustomersParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Customer{})
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("subscription_status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Tier != nil && strings.TrimSpace(*params.Tier) != "" {
		query = query.Where("tier = ?", strings.TrimSpace(*params.Tier))
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListPricingTransitionDue(ctx context.Context, now time.Time) ([]uint64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	var ids []uint64
	err := s.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("subscription_status = ?", models.SubscriptionActive).
		Where("is_grandfathered = ?", false).
		Where("launch_pricing_ends_at <= ?", now.UTC()).
		Order("id asc").
		Pluck("id", &ids).Error
	return ids, err
}

// --- Payments ----------------------------------------------------------------

func (s *Store) CreatePayment(ctx context.Context, item *models.Payment) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetPaymentByProviderID(ctx context.Context, providerPaymentID string) (*models.Payment, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	providerPaymentID = strings.TrimSpace(providerPaymentID)
	if providerPaymentID == "" {
		return nil, nil
	}
	var item models.Payment
	err := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("provider_payment_id = ?", providerPaymentID).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetPaymentByProviderIDForUpdateTx(ctx context.Context, tx *gorm.DB, providerPaymentID string) (*models.Payment, error) {
	if tx == nil {
		return nil, nil
	}
	providerPaymentID = strings.TrimSpace(providerPaymentID)
	if providerPaymentID == "" {
		return nil, nil
	}
	var item models.Payment
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider_payment_id = ?", providerPaymentID).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SavePaymentTx(ctx context.Context, tx *gorm.DB, item *models.Payment) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Save(item).Error
}

func (s *Store) ListPaymentsByCustomerID(ctx context.Context, customerID uint64) ([]models.Payment, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if customerID == 0 {
		return nil, nil
	}
	var items []models.Payment
	if err := s.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("customer_id = ?", customerID).
		Order("created_at desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Usage counters ----------------------------------------------------------

func (s *Store) IncrementUsage(ctx context.Context, customerID uint64, endpoint string, day time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	endpoint = strings.TrimSpace(endpoint)
	if customerID == 0 || endpoint == "" {
		return nil
	}
	if day.IsZero() {
		day = time.Now().UTC()
	}
	item := &models.APIUsage{
		CustomerID:    customerID,
		Endpoint:      endpoint,
		Date:          datatypes.Date(day),
		RequestsCount: 1,
	}
	// Uniqueness is enforced by uniq_usage_customer_endpoint_date.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "customer_id"}, {Name: "endpoint"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]any{
			"requests_count": gorm.Expr("api_usage.requests_count + 1"),
		}),
	}).Create(item).Error
}

func (s *Store) ListDailyUsage(ctx context.Context, customerID uint64, since time.Time) ([]repository.DailyUsage, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if customerID == 0 {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Table("api_usage").
		Select("date AS date, COALESCE(SUM(requests_count),0) AS requests").
		Where("customer_id = ?", customerID)
	if !since.IsZero() {
		query = query.Where("date >= ?", since.UTC())
	}
	var rows []repository.DailyUsage
	if err := query.Group("date").Order("date asc").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// --- Webhook audit trail -----------------------------------------------------

func (s *Store) InsertWebhookEvent(ctx context.Context, item *models.WebhookEvent) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) MarkWebhookEventProcessed(ctx context.Context, id uint64, processedAt time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	if id == 0 {
		return nil
	}
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Update("processed_at", &processedAt).Error
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

var _ repository.Repository = (*Store)(nil)
