package event

import (
	"reflect"
	"time"

	"github.com/relaypoint/relaypoint/pkg/model"
)

// Builder converts a committed mutation into an envelope. Implementations are
// pure: no I/O, no stored state beyond configuration.
type Builder interface {
	BuildEnvelope(op Operation, old, current map[string]interface{}) Envelope
}

// EntityAdapter is the single generic builder behind every entity type. The
// trigger event name is derived from the entity name and operation, and
// previousFields is the per-entity allow-list of update fields surfaced to
// downstream consumers.
type EntityAdapter struct {
	entity         string
	previousFields []string
	now            func() time.Time
}

func NewEntityAdapter(entity string, previousFields []string) *EntityAdapter {
	return &EntityAdapter{
		entity:         entity,
		previousFields: previousFields,
		now:            time.Now,
	}
}

// TaskAdapter builds task envelopes. The previous-field allow-list covers the
// fields automation consumers branch on, not a full diff.
func TaskAdapter() *EntityAdapter {
	return NewEntityAdapter("TASK", []string{
		"status",
		"priority",
		"start_date",
		"due_date",
		"assignee_id",
	})
}

func ContactAdapter() *EntityAdapter {
	return NewEntityAdapter("CONTACT", []string{
		"name",
		"phone",
		"email",
	})
}

// BuildEnvelope returns the canonical envelope for one mutation. On update,
// previous contains only allow-listed fields whose values changed; an empty
// previous map is omitted. On delete, the pre-delete fields are carried and
// deleted_at is appended.
func (a *EntityAdapter) BuildEnvelope(op Operation, old, current map[string]interface{}) Envelope {
	name := a.triggerEvent(op)

	source := current
	if op == OpDelete {
		source = old
	}

	payload := make(model.JSONB, len(source)+2)
	for key, value := range source {
		payload[key] = value
	}
	payload["trigger_event"] = name

	switch op {
	case OpUpdate:
		previous := make(map[string]interface{})
		for _, field := range a.previousFields {
			oldValue, ok := old[field]
			if !ok {
				continue
			}
			if !reflect.DeepEqual(oldValue, current[field]) {
				previous[field] = oldValue
			}
		}
		if len(previous) > 0 {
			payload["previous"] = previous
		}
	case OpDelete:
		payload["deleted_at"] = a.now().UTC().Format(time.RFC3339)
	}

	return Envelope{TriggerEvent: name, Payload: payload}
}

func (a *EntityAdapter) triggerEvent(op Operation) string {
	switch op {
	case OpCreate:
		return a.entity + "_CREATED"
	case OpUpdate:
		return a.entity + "_UPDATED"
	case OpDelete:
		return a.entity + "_DELETED"
	}
	return a.entity + "_" + string(op)
}
