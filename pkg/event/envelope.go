package event

import (
	"time"

	"github.com/relaypoint/relaypoint/pkg/model"
)

// Trigger event names carried by envelopes and matched by subscriptions and
// workflow trigger nodes.
const (
	TaskCreated  = "TASK_CREATED"
	TaskUpdated  = "TASK_UPDATED"
	TaskDeleted  = "TASK_DELETED"
	TaskReminder = "TASK_REMINDER"

	ContactCreated = "CONTACT_CREATED"
	ContactUpdated = "CONTACT_UPDATED"
	ContactDeleted = "CONTACT_DELETED"
)

type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Envelope is the canonical event record for one entity mutation or one fired
// reminder. Payload is the flat wire shape: the entity fields plus
// trigger_event, an optional previous map on updates, and deleted_at on
// deletes. The same payload is posted to webhook endpoints and stored as the
// trigger snapshot of enqueued executions.
type Envelope struct {
	TriggerEvent string
	Payload      model.JSONB
}

// ReminderEnvelope builds the envelope for one fired reminder rule. It
// carries the parent entity's fields plus the reminder_* keys.
func ReminderEnvelope(rule *model.ReminderRule, parentFields map[string]interface{}, display string) Envelope {
	payload := make(model.JSONB, len(parentFields)+8)
	for key, value := range parentFields {
		payload[key] = value
	}
	payload["trigger_event"] = TaskReminder
	payload["reminder_id"] = rule.ID.String()
	payload["reminder_type"] = string(rule.ReferenceType)
	payload["reminder_offset_timing"] = string(rule.OffsetDirection)
	payload["reminder_offset_value"] = rule.OffsetAmount
	payload["reminder_offset_unit"] = string(rule.OffsetUnit)
	payload["reminder_display"] = display
	if rule.CalculatedFireTime != nil {
		payload["reminder_scheduled_time"] = rule.CalculatedFireTime.UTC().Format(time.RFC3339)
	}
	return Envelope{TriggerEvent: TaskReminder, Payload: payload}
}
