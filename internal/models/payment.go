package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	PaymentWaiting   = "waiting"
	PaymentCompleted = "completed"

	PricingTypeLaunch  = "launch"
	PricingTypeRegular = "regular"
)

// Payment is one provider payment attempt, keyed by the provider's own
// payment id. Status moves waiting → completed exactly once, on the first
// confirmed callback.
type Payment struct {
	ID                uint64          `gorm:"primaryKey;autoIncrement"`
	CustomerID        uint64          `gorm:"not null;index"`
	ProviderPaymentID string          `gorm:"type:varchar(64);uniqueIndex;not null"`
	AmountUSD         decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	PayCurrency       string          `gorm:"type:varchar(20);not null"`
	PricingType       string          `gorm:"type:varchar(20);not null"`
	Status            string          `gorm:"type:varchar(20);not null;default:'waiting';index"`
	ProviderPayload   datatypes.JSON  `gorm:"type:jsonb"`
	ConfirmedAt       *time.Time      `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Payment) TableName() string {
	return "payments"
}
