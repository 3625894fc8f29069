package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/relaypoint/relaypoint/pkg/denorm"
	"github.com/relaypoint/relaypoint/pkg/event"
	"github.com/relaypoint/relaypoint/pkg/model"
	"github.com/relaypoint/relaypoint/pkg/reminder"
)

var (
	ErrReminderAlreadySent = errors.New("reminder has already been sent")
	ErrParentNotFound      = errors.New("parent entity not found")
)

// Committer is the write-path seam. Every entity mutation goes through one
// transaction that persists the change, keeps attached reminder rules
// consistent, and appends the outbox envelope. Delivery happens later in the
// relay, so nothing here blocks on the network.
type Committer struct {
	db       *gorm.DB
	resolver *denorm.Resolver
	tasks    *event.EntityAdapter
	contacts *event.EntityAdapter
	logger   *zap.Logger
}

func NewCommitter(db *gorm.DB, resolver *denorm.Resolver, logger *zap.Logger) *Committer {
	return &Committer{
		db:       db,
		resolver: resolver,
		tasks:    event.TaskAdapter(),
		contacts: event.ContactAdapter(),
		logger:   logger,
	}
}

func (c *Committer) CreateTask(ctx context.Context, task *model.Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	c.resolver.ResolveTask(ctx, task)

	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(task).Error; err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		env := c.tasks.BuildEnvelope(event.OpCreate, nil, task.EventFields())
		return appendOutbox(tx, env)
	})
}

func (c *Committer) UpdateTask(ctx context.Context, task *model.Task) error {
	c.resolver.ResolveTask(ctx, task)

	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Task
		if err := tx.First(&existing, "id = ?", task.ID).Error; err != nil {
			return fmt.Errorf("load task: %w", err)
		}
		oldFields := existing.EventFields()

		task.CreatedAt = existing.CreatedAt
		task.CreatedBy = existing.CreatedBy
		if err := tx.Save(task).Error; err != nil {
			return fmt.Errorf("update task: %w", err)
		}

		if datesChanged(&existing, task) {
			if err := c.recalculateReminders(tx, task); err != nil {
				return err
			}
		}

		env := c.tasks.BuildEnvelope(event.OpUpdate, oldFields, task.EventFields())
		return appendOutbox(tx, env)
	})
}

// DeleteTask removes the task and cascade-deletes its reminder rules, so a
// deleted entity never leaves reminders pending forever.
func (c *Committer) DeleteTask(ctx context.Context, id uuid.UUID) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Task
		if err := tx.First(&existing, "id = ?", id).Error; err != nil {
			return fmt.Errorf("load task: %w", err)
		}

		if err := tx.Delete(&model.Task{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		if err := tx.Where("parent_entity_id = ?", id).Delete(&model.ReminderRule{}).Error; err != nil {
			return fmt.Errorf("delete reminders: %w", err)
		}

		env := c.tasks.BuildEnvelope(event.OpDelete, existing.EventFields(), nil)
		return appendOutbox(tx, env)
	})
}

func (c *Committer) CreateContact(ctx context.Context, contact *model.Contact) error {
	if contact.ID == uuid.Nil {
		contact.ID = uuid.New()
	}
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(contact).Error; err != nil {
			return fmt.Errorf("create contact: %w", err)
		}
		env := c.contacts.BuildEnvelope(event.OpCreate, nil, contact.EventFields())
		return appendOutbox(tx, env)
	})
}

func (c *Committer) UpdateContact(ctx context.Context, contact *model.Contact) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Contact
		if err := tx.First(&existing, "id = ?", contact.ID).Error; err != nil {
			return fmt.Errorf("load contact: %w", err)
		}
		oldFields := existing.EventFields()

		contact.CreatedAt = existing.CreatedAt
		if err := tx.Save(contact).Error; err != nil {
			return fmt.Errorf("update contact: %w", err)
		}

		env := c.contacts.BuildEnvelope(event.OpUpdate, oldFields, contact.EventFields())
		return appendOutbox(tx, env)
	})
}

func (c *Committer) DeleteContact(ctx context.Context, id uuid.UUID) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Contact
		if err := tx.First(&existing, "id = ?", id).Error; err != nil {
			return fmt.Errorf("load contact: %w", err)
		}
		if err := tx.Delete(&model.Contact{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete contact: %w", err)
		}
		env := c.contacts.BuildEnvelope(event.OpDelete, existing.EventFields(), nil)
		return appendOutbox(tx, env)
	})
}

// CreateReminder validates the rule, computes its fire time from the parent
// task, and persists it.
func (c *Committer) CreateReminder(ctx context.Context, rule *model.ReminderRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}

	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent model.Task
		if err := tx.First(&parent, "id = ?", rule.ParentEntityID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrParentNotFound
			}
			return fmt.Errorf("load parent task: %w", err)
		}

		reminder.Calculate(rule, &parent)

		if err := tx.Create(rule).Error; err != nil {
			return fmt.Errorf("create reminder: %w", err)
		}
		return nil
	})
}

// UpdateReminder recomputes the fire time from the current parent dates. Sent
// rules are immutable.
func (c *Committer) UpdateReminder(ctx context.Context, rule *model.ReminderRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.ReminderRule
		if err := tx.First(&existing, "id = ?", rule.ID).Error; err != nil {
			return fmt.Errorf("load reminder: %w", err)
		}
		if existing.IsSent {
			return ErrReminderAlreadySent
		}

		var parent model.Task
		if err := tx.First(&parent, "id = ?", rule.ParentEntityID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrParentNotFound
			}
			return fmt.Errorf("load parent task: %w", err)
		}

		reminder.Calculate(rule, &parent)

		rule.IsSent = existing.IsSent
		rule.SentAt = existing.SentAt
		rule.CreatedAt = existing.CreatedAt
		if err := tx.Save(rule).Error; err != nil {
			return fmt.Errorf("update reminder: %w", err)
		}
		return nil
	})
}

// recalculateReminders re-runs the fire-time calculator for every unsent,
// non-custom rule attached to the task. Custom and already-sent rules are
// never touched.
func (c *Committer) recalculateReminders(tx *gorm.DB, task *model.Task) error {
	var rules []model.ReminderRule
	err := tx.
		Where("parent_entity_id = ? AND is_sent = ? AND reference_type <> ?",
			task.ID, false, model.ReferenceCustom).
		Find(&rules).Error
	if err != nil {
		return fmt.Errorf("load reminders: %w", err)
	}

	for i := range rules {
		reminder.Calculate(&rules[i], task)
		err := tx.Model(&model.ReminderRule{}).
			Where("id = ?", rules[i].ID).
			Update("calculated_fire_time", rules[i].CalculatedFireTime).Error
		if err != nil {
			return fmt.Errorf("recalculate reminder %s: %w", rules[i].ID, err)
		}
	}
	return nil
}

func datesChanged(old, current *model.Task) bool {
	return !equalTime(old.StartDate, current.StartDate) || !equalTime(old.DueDate, current.DueDate)
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func appendOutbox(tx *gorm.DB, env event.Envelope) error {
	outboxEvent := &model.OutboxEvent{
		EventID:      uuid.New(),
		TriggerEvent: env.TriggerEvent,
		Payload:      env.Payload,
		Status:       model.OutboxStatusPending,
	}
	if err := tx.Create(outboxEvent).Error; err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	return nil
}
