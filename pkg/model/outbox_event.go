package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	OutboxStatusPending   = "pending"
	OutboxStatusPublished = "published"
	OutboxStatusFailed    = "failed"
)

// OutboxEvent is an envelope written in the same transaction as the entity
// mutation that produced it. The dispatcher relay drains pending rows, so a
// slow or unreachable endpoint can never delay or fail the write.
type OutboxEvent struct {
	EventID      uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TriggerEvent string    `gorm:"not null"`
	Payload      JSONB     `gorm:"type:jsonb;not null"`
	Status       string    `gorm:"not null;default:'pending';index"`
	CreatedAt    time.Time `gorm:"autoCreateTime;not null"`
	PublishedAt  *time.Time
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}
