package model

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryRecord is one webhook delivery attempt, kept for auditing. The
// subscription's counters are the source of truth for statistics; records
// here are retained for a bounded window and then dropped.
type DeliveryRecord struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	SubscriptionID uuid.UUID `gorm:"type:uuid;not null;index:idx_deliveries_subscription_time"`
	TriggerEvent   string    `gorm:"type:varchar(100);not null"`
	EndpointURL    string    `gorm:"type:text"`
	StatusCode     int32     `gorm:"default:0"`
	Success        bool      `gorm:"not null"`
	DurationMs     int64     `gorm:"default:0"`
	AttemptedAt    time.Time `gorm:"not null;index:idx_deliveries_subscription_time"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (DeliveryRecord) TableName() string {
	return "webhook_deliveries"
}
