package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/relaypoint/relaypoint/pkg/model"
)

type WorkflowRepository struct {
	db *gorm.DB
}

func NewWorkflowRepository(db *gorm.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

func (r *WorkflowRepository) CreateDefinition(ctx context.Context, definition *model.WorkflowDefinition) error {
	return r.db.WithContext(ctx).Create(definition).Error
}

func (r *WorkflowRepository) GetDefinition(ctx context.Context, id uuid.UUID) (*model.WorkflowDefinition, error) {
	var definition model.WorkflowDefinition
	err := r.db.WithContext(ctx).First(&definition, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &definition, nil
}

func (r *WorkflowRepository) ListDefinitions(ctx context.Context, limit, offset int) ([]model.WorkflowDefinition, int64, error) {
	var definitions []model.WorkflowDefinition
	var total int64

	query := r.db.WithContext(ctx).Model(&model.WorkflowDefinition{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&definitions).Error

	return definitions, total, err
}

func (r *WorkflowRepository) UpdateDefinition(ctx context.Context, definition *model.WorkflowDefinition) error {
	return r.db.WithContext(ctx).
		Model(&model.WorkflowDefinition{}).
		Where("id = ?", definition.ID).
		Updates(map[string]interface{}{
			"name":        definition.Name,
			"description": definition.Description,
			"status":      definition.Status,
			"nodes":       definition.Nodes,
			"updated_at":  time.Now(),
		}).Error
}

func (r *WorkflowRepository) DeleteDefinition(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.WorkflowDefinition{}, "id = ?", id).Error
}

func (r *WorkflowRepository) ListActiveDefinitions(ctx context.Context) ([]model.WorkflowDefinition, error) {
	var definitions []model.WorkflowDefinition
	err := r.db.WithContext(ctx).
		Where("status = ?", model.WorkflowActive).
		Find(&definitions).Error
	return definitions, err
}

func (r *WorkflowRepository) CreateExecution(ctx context.Context, execution *model.WorkflowExecution) error {
	return r.db.WithContext(ctx).Create(execution).Error
}

func (r *WorkflowRepository) GetExecution(ctx context.Context, id uuid.UUID) (*model.WorkflowExecution, error) {
	var execution model.WorkflowExecution
	err := r.db.WithContext(ctx).First(&execution, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &execution, nil
}

func (r *WorkflowRepository) ListExecutions(ctx context.Context, workflowID uuid.UUID, limit, offset int) ([]model.WorkflowExecution, int64, error) {
	var executions []model.WorkflowExecution
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.WorkflowExecution{}).
		Where("workflow_id = ?", workflowID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&executions).Error

	return executions, total, err
}
