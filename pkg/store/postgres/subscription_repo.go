package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/relaypoint/relaypoint/pkg/model"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, subscription *model.WebhookSubscription) error {
	return r.db.WithContext(ctx).Create(subscription).Error
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.WebhookSubscription, error) {
	var subscription model.WebhookSubscription
	err := r.db.WithContext(ctx).First(&subscription, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

func (r *SubscriptionRepository) List(ctx context.Context, limit, offset int) ([]model.WebhookSubscription, int64, error) {
	var subscriptions []model.WebhookSubscription
	var total int64

	query := r.db.WithContext(ctx).Model(&model.WebhookSubscription{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&subscriptions).Error

	return subscriptions, total, err
}

func (r *SubscriptionRepository) Update(ctx context.Context, subscription *model.WebhookSubscription) error {
	return r.db.WithContext(ctx).
		Model(&model.WebhookSubscription{}).
		Where("id = ?", subscription.ID).
		Updates(map[string]interface{}{
			"name":          subscription.Name,
			"trigger_event": subscription.TriggerEvent,
			"endpoint_url":  subscription.EndpointURL,
			"http_method":   subscription.HTTPMethod,
			"is_active":     subscription.IsActive,
			"updated_at":    time.Now(),
		}).Error
}

func (r *SubscriptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.WebhookSubscription{}, "id = ?", id).Error
}

func (r *SubscriptionRepository) ListActiveByEvent(ctx context.Context, triggerEvent string) ([]model.WebhookSubscription, error) {
	var subscriptions []model.WebhookSubscription
	err := r.db.WithContext(ctx).
		Where("trigger_event = ? AND is_active = ?", triggerEvent, true).
		Find(&subscriptions).Error
	return subscriptions, err
}

// RecordAttempt applies the statistics update for one delivery attempt as
// in-place increments, never read-modify-write, so concurrent dispatches to
// the same subscription cannot lose counts.
func (r *SubscriptionRepository) RecordAttempt(ctx context.Context, id uuid.UUID, success bool, attemptedAt time.Time) error {
	updates := map[string]interface{}{
		"total_calls":    gorm.Expr("total_calls + 1"),
		"last_triggered": attemptedAt,
	}
	if success {
		updates["success_count"] = gorm.Expr("success_count + 1")
	} else {
		updates["failure_count"] = gorm.Expr("failure_count + 1")
	}

	return r.db.WithContext(ctx).
		Model(&model.WebhookSubscription{}).
		Where("id = ?", id).
		Updates(updates).Error
}
