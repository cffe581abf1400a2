package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is the audit trail of signature-verified provider callbacks.
// ProcessedAt is set once the confirmation the event triggered has finished.
type WebhookEvent struct {
	ID                uint64         `gorm:"primaryKey;autoIncrement"`
	Provider          string         `gorm:"type:varchar(30);not null;index"`
	ProviderPaymentID string         `gorm:"type:varchar(64);index"`
	PaymentStatus     string         `gorm:"type:varchar(30);not null"`
	Payload           datatypes.JSON `gorm:"type:jsonb;not null"`
	ProcessedAt       *time.Time     `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
