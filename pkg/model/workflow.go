package model

import (
	"time"

	"github.com/google/uuid"
)

type WorkflowStatus string

const (
	WorkflowActive WorkflowStatus = "ACTIVE"
	WorkflowPaused WorkflowStatus = "PAUSED"
	WorkflowDraft  WorkflowStatus = "DRAFT"
)

// WorkflowDefinition is a multi-step automation template. Node 0 is the
// trigger node carrying the event name condition; the remaining nodes are
// action steps executed by the external runner. This engine only evaluates
// node 0.
type WorkflowDefinition struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name        string         `gorm:"not null"`
	Description string
	Status      WorkflowStatus `gorm:"type:varchar(50);default:'DRAFT';index"`
	Nodes       JSONBList      `gorm:"type:jsonb;not null"`
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "PENDING"
	ExecutionRunning   ExecutionStatus = "RUNNING"
	ExecutionCompleted ExecutionStatus = "COMPLETED"
	ExecutionFailed    ExecutionStatus = "FAILED"
)

// WorkflowExecution is one run of a definition, created by the enqueuer and
// owned by the external runner from then on.
type WorkflowExecution struct {
	ID              uuid.UUID           `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	WorkflowID      uuid.UUID           `gorm:"type:uuid;not null;index"`
	Definition      *WorkflowDefinition `gorm:"foreignKey:WorkflowID"`
	TriggerType     string              `gorm:"not null"`
	TriggerSnapshot JSONB               `gorm:"type:jsonb;not null"`
	Status          ExecutionStatus     `gorm:"type:varchar(50);default:'PENDING';index"`
	StepsCompleted  int                 `gorm:"default:0"`
	TotalSteps      int                 `gorm:"not null"`
	StartedAt       *time.Time
	CompletedAt     *time.Time
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
