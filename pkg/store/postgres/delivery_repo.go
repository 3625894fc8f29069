package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/relaypoint/relaypoint/pkg/model"
	"github.com/relaypoint/relaypoint/pkg/store"
)

type DeliveryLogRepository struct {
	db *gorm.DB
}

func NewDeliveryLogRepository(db *gorm.DB) *DeliveryLogRepository {
	return &DeliveryLogRepository{db: db}
}

func (r *DeliveryLogRepository) CreateBatch(ctx context.Context, records []*model.DeliveryRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(records, 100).Error
}

func (r *DeliveryLogRepository) List(ctx context.Context, subscriptionID string, sinceTime *time.Time, limit int) ([]model.DeliveryRecord, error) {
	var records []model.DeliveryRecord
	query := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("attempted_at DESC")

	if sinceTime != nil {
		query = query.Where("attempted_at > ?", sinceTime)
	}

	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&records).Error
	return records, err
}

func (r *DeliveryLogRepository) Query(ctx context.Context, query store.DeliveryQuery) ([]model.DeliveryRecord, error) {
	if query.SubscriptionID == "" {
		return nil, gorm.ErrInvalidValue
	}

	var records []model.DeliveryRecord
	dbQuery := r.db.WithContext(ctx).
		Where("subscription_id = ?", query.SubscriptionID).
		Order("attempted_at DESC")

	if query.TriggerEvent != "" {
		dbQuery = dbQuery.Where("trigger_event = ?", query.TriggerEvent)
	}

	if query.Success != nil {
		dbQuery = dbQuery.Where("success = ?", *query.Success)
	}

	if query.StartTime != nil {
		dbQuery = dbQuery.Where("attempted_at >= ?", *query.StartTime)
	}

	if query.EndTime != nil {
		dbQuery = dbQuery.Where("attempted_at <= ?", *query.EndTime)
	}

	if query.Limit > 0 {
		dbQuery = dbQuery.Limit(query.Limit)
	}

	err := dbQuery.Find(&records).Error
	return records, err
}

func (r *DeliveryLogRepository) DeleteOld(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return r.db.WithContext(ctx).
		Where("attempted_at < ?", cutoff).
		Delete(&model.DeliveryRecord{}).Error
}

func (r *DeliveryLogRepository) Close() error {
	// GORM manages connection pooling, the underlying sql.DB is closed by the
	// owning Store
	return nil
}
