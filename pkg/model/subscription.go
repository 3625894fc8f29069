package model

import (
	"time"

	"github.com/google/uuid"
)

// WebhookSubscription is an operator-configured endpoint listening for one
// trigger event. Statistics are mutated only by the dispatcher, with in-place
// SQL increments, so total_calls == success_count + failure_count holds after
// every attempt.
type WebhookSubscription struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name          string    `gorm:"not null"`
	TriggerEvent  string    `gorm:"not null;index"`
	EndpointURL   string    `gorm:"not null"`
	HTTPMethod    string    `gorm:"type:varchar(10);default:'POST'"`
	IsActive      bool      `gorm:"default:true;index"`
	TotalCalls    int64     `gorm:"default:0"`
	SuccessCount  int64     `gorm:"default:0"`
	FailureCount  int64     `gorm:"default:0"`
	LastTriggered *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
