package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type TaskStatus string

const (
	TaskOpen       TaskStatus = "OPEN"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskCancelled  TaskStatus = "CANCELLED"
)

// Task is a business entity observed by the dispatch engine. Assignee and
// contact display fields are denormalized copies maintained by the resolver;
// they mirror the reference at write time and are never corrected between
// writes.
type Task struct {
	ID           uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Title        string         `gorm:"not null"`
	Description  string
	Status       TaskStatus     `gorm:"type:varchar(50);default:'OPEN';index"`
	Priority     int            `gorm:"default:0"`
	Tags         pq.StringArray `gorm:"type:text[]"`
	StartDate    *time.Time
	DueDate      *time.Time
	AssigneeID   *uuid.UUID `gorm:"type:uuid;index"`
	ContactID    *uuid.UUID `gorm:"type:uuid;index"`
	AssigneeName *string
	ContactName  *string
	ContactPhone *string
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EventFields flattens the task into the field map carried by event
// envelopes. Nil references and dates stay nil so consumers can tell
// cleared fields from absent ones.
func (t *Task) EventFields() map[string]interface{} {
	fields := map[string]interface{}{
		"id":          t.ID.String(),
		"title":       t.Title,
		"description": t.Description,
		"status":      string(t.Status),
		"priority":    t.Priority,
		"tags":        []string(t.Tags),
		"start_date":  formatTimePtr(t.StartDate),
		"due_date":    formatTimePtr(t.DueDate),
		"assignee_id": formatUUIDPtr(t.AssigneeID),
		"contact_id":  formatUUIDPtr(t.ContactID),
		"created_by":  t.CreatedBy,
		"created_at":  t.CreatedAt.UTC().Format(time.RFC3339),
	}
	fields["assignee_name"] = stringPtrValue(t.AssigneeName)
	fields["contact_name"] = stringPtrValue(t.ContactName)
	fields["contact_phone"] = stringPtrValue(t.ContactPhone)
	return fields
}

type Contact struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name      string    `gorm:"not null"`
	Phone     string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Contact) EventFields() map[string]interface{} {
	return map[string]interface{}{
		"id":         c.ID.String(),
		"name":       c.Name,
		"phone":      c.Phone,
		"email":      c.Email,
		"created_at": c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type TeamMember struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name      string    `gorm:"not null"`
	Email     string    `gorm:"uniqueIndex"`
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func formatTimePtr(value *time.Time) interface{} {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339)
}

func formatUUIDPtr(value *uuid.UUID) interface{} {
	if value == nil {
		return nil
	}
	return value.String()
}

func stringPtrValue(value *string) interface{} {
	if value == nil {
		return nil
	}
	return *value
}
