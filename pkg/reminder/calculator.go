package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/relaypoint/relaypoint/pkg/model"
)

// Calculate resolves the rule's reference timestamp against its parent and
// sets the calculated fire time in place. A null reference leaves the fire
// time null, which keeps the rule out of every sweep.
//
// Calculate runs on every rule create and update, and again whenever the
// parent's start or due date changes, but only for unsent, non-custom rules.
// The caller enforces that restriction.
func Calculate(rule *model.ReminderRule, parent *model.Task) {
	reference := referenceTime(rule, parent)
	if reference == nil {
		rule.CalculatedFireTime = nil
		return
	}

	offset := offsetDuration(rule)
	fireTime := reference.Add(offset)
	if rule.OffsetDirection == model.OffsetBefore {
		fireTime = reference.Add(-offset)
	}
	fireTime = fireTime.UTC()
	rule.CalculatedFireTime = &fireTime
}

func referenceTime(rule *model.ReminderRule, parent *model.Task) *time.Time {
	switch rule.ReferenceType {
	case model.ReferenceCustom:
		return rule.CustomDatetime
	case model.ReferenceStart:
		if parent == nil {
			return nil
		}
		return parent.StartDate
	case model.ReferenceDue:
		if parent == nil {
			return nil
		}
		return parent.DueDate
	}
	return nil
}

func offsetDuration(rule *model.ReminderRule) time.Duration {
	amount := time.Duration(rule.OffsetAmount)
	switch rule.OffsetUnit {
	case model.OffsetMinutes:
		return amount * time.Minute
	case model.OffsetHours:
		return amount * time.Hour
	case model.OffsetDays:
		return amount * 24 * time.Hour
	}
	return 0
}

// Display renders the rule for humans, e.g. "2 hours before Due Date".
func Display(rule *model.ReminderRule) string {
	unit := strings.ToLower(string(rule.OffsetUnit))
	if rule.OffsetAmount == 1 {
		unit = strings.TrimSuffix(unit, "s")
	}

	timing := "after"
	if rule.OffsetDirection == model.OffsetBefore {
		timing = "before"
	}

	return fmt.Sprintf("%d %s %s %s", rule.OffsetAmount, unit, timing, referenceName(rule.ReferenceType))
}

func referenceName(reference model.ReferenceType) string {
	switch reference {
	case model.ReferenceStart:
		return "Start Date"
	case model.ReferenceDue:
		return "Due Date"
	case model.ReferenceCustom:
		return "Scheduled Time"
	}
	return string(reference)
}
