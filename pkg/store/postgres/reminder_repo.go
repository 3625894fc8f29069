package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/relaypoint/relaypoint/pkg/model"
)

type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ReminderRule, error) {
	var rule model.ReminderRule
	err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *ReminderRepository) ListByParent(ctx context.Context, parentEntityID uuid.UUID) ([]model.ReminderRule, error) {
	var rules []model.ReminderRule
	err := r.db.WithContext(ctx).
		Where("parent_entity_id = ?", parentEntityID).
		Order("created_at ASC").
		Find(&rules).Error
	return rules, err
}

func (r *ReminderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.ReminderRule{}, "id = ?", id).Error
}

func (r *ReminderRepository) DeleteByParent(ctx context.Context, parentEntityID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("parent_entity_id = ?", parentEntityID).
		Delete(&model.ReminderRule{}).Error
}

// ListDue returns unsent rules whose fire time has passed, oldest first.
// Rules with a null fire time are never selected.
func (r *ReminderRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]model.ReminderRule, error) {
	if limit <= 0 {
		limit = 200
	}
	var rules []model.ReminderRule
	err := r.db.WithContext(ctx).
		Where("is_sent = ? AND calculated_fire_time IS NOT NULL AND calculated_fire_time <= ?", false, now).
		Order("calculated_fire_time ASC").
		Limit(limit).
		Find(&rules).Error
	return rules, err
}

// Claim flips is_sent and sets sent_at in one conditional update. The WHERE
// clause only matches while the rule is still unsent, so of two overlapping
// sweeps exactly one sees a claimed row.
func (r *ReminderRepository) Claim(ctx context.Context, id uuid.UUID, sentAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ReminderRule{}).
		Where("id = ? AND is_sent = ?", id, false).
		Updates(map[string]interface{}{
			"is_sent": true,
			"sent_at": sentAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
