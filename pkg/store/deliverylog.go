package store

import (
	"context"
	"time"

	"github.com/relaypoint/relaypoint/pkg/model"
)

// DeliveryLogStore defines the interface for delivery audit storage backends
// (PostgreSQL, ClickHouse)
type DeliveryLogStore interface {
	// CreateBatch inserts a batch of delivery records efficiently
	CreateBatch(ctx context.Context, records []*model.DeliveryRecord) error

	// List retrieves delivery records for a subscription with pagination
	List(ctx context.Context, subscriptionID string, sinceTime *time.Time, limit int) ([]model.DeliveryRecord, error)

	// Query retrieves delivery records matching the given filters
	Query(ctx context.Context, query DeliveryQuery) ([]model.DeliveryRecord, error)

	// DeleteOld deletes records older than the retention period (if the
	// backend requires it)
	DeleteOld(ctx context.Context, retentionDays int) error

	// Close closes the connection to the storage backend
	Close() error
}

// DeliveryQuery filters delivery records.
type DeliveryQuery struct {
	SubscriptionID string
	TriggerEvent   string
	Success        *bool
	StartTime      *time.Time
	EndTime        *time.Time
	Limit          int
}
