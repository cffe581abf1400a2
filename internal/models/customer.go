package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SubscriptionTrial  = "trial"
	SubscriptionActive = "active"
)

// Customer is one subscriber. APIKey stays null until the first confirmed
// payment activates the subscription; CurrentPrice freezes permanently once
// IsGrandfathered is set.
type Customer struct {
	ID                  uint64          `gorm:"primaryKey;autoIncrement"`
	Email               string          `gorm:"type:varchar(255);uniqueIndex;not null"`
	Tier                string          `gorm:"type:varchar(20);not null"`
	SubscriptionStatus  string          `gorm:"type:varchar(20);not null;default:'trial';index"`
	APIKey              *string         `gorm:"type:varchar(40);uniqueIndex"`
	TrialEndsAt         time.Time       `gorm:"type:timestamptz;not null"`
	LaunchPricingEndsAt time.Time       `gorm:"type:timestamptz;not null;index"`
	NextBillingDate     *time.Time      `gorm:"type:timestamptz"`
	CurrentPrice        decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	IsGrandfathered     bool            `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Customer) TableName() string {
	return "customers"
}
