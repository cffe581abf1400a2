package models

import (
	"gorm.io/datatypes"
)

// APIUsage counts requests per customer, endpoint, and calendar day.
// Increments are single-statement upserts on the composite key; the counts
// feed dashboards only.
type APIUsage struct {
	ID            uint64         `gorm:"primaryKey;autoIncrement"`
	CustomerID    uint64         `gorm:"not null;uniqueIndex:uniq_usage_customer_endpoint_date"`
	Endpoint      string         `gorm:"type:varchar(50);not null;uniqueIndex:uniq_usage_customer_endpoint_date"`
	Date          datatypes.Date `gorm:"not null;uniqueIndex:uniq_usage_customer_endpoint_date"`
	RequestsCount int            `gorm:"not null;default:1"`
}

func (APIUsage) TableName() string {
	return "api_usage"
}
