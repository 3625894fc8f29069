package denorm

import (
	"context"

	"go.uber.org/zap"

	"github.com/relaypoint/relaypoint/pkg/model"
)

// ReferenceStore resolves the foreign keys a task denormalizes. A missing
// record is reported as (nil, nil), not an error.
type ReferenceStore interface {
	GetTeamMember(ctx context.Context, id string) (*model.TeamMember, error)
	GetContact(ctx context.Context, id string) (*model.Contact, error)
}

// Resolver copies display fields from referenced records onto the task before
// it is committed. Resolution failures never fail the write; the display
// fields are cleared instead of left stale.
type Resolver struct {
	store  ReferenceStore
	logger *zap.Logger
}

func NewResolver(store ReferenceStore, logger *zap.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

func (r *Resolver) ResolveTask(ctx context.Context, task *model.Task) {
	task.AssigneeName = nil
	task.ContactName = nil
	task.ContactPhone = nil

	if task.AssigneeID != nil {
		member, err := r.store.GetTeamMember(ctx, task.AssigneeID.String())
		if err != nil {
			r.logger.Warn("failed to resolve assignee",
				zap.String("task_id", task.ID.String()),
				zap.String("assignee_id", task.AssigneeID.String()),
				zap.Error(err))
		} else if member != nil {
			task.AssigneeName = &member.Name
		}
	}

	if task.ContactID != nil {
		contact, err := r.store.GetContact(ctx, task.ContactID.String())
		if err != nil {
			r.logger.Warn("failed to resolve contact",
				zap.String("task_id", task.ID.String()),
				zap.String("contact_id", task.ContactID.String()),
				zap.Error(err))
		} else if contact != nil {
			task.ContactName = &contact.Name
			task.ContactPhone = &contact.Phone
		}
	}
}
