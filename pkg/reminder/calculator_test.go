package reminder

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/relaypoint/relaypoint/pkg/model"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestCalculateBeforeDueDate(t *testing.T) {
	due := time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
	task := &model.Task{ID: uuid.New(), DueDate: timePtr(due)}
	rule := &model.ReminderRule{
		ReferenceType:   model.ReferenceDue,
		OffsetDirection: model.OffsetBefore,
		OffsetAmount:    2,
		OffsetUnit:      model.OffsetHours,
	}

	Calculate(rule, task)

	if rule.CalculatedFireTime == nil {
		t.Fatal("expected fire time to be set")
	}
	want := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	if !rule.CalculatedFireTime.Equal(want) {
		t.Fatalf("expected fire time %v, got %v", want, rule.CalculatedFireTime)
	}
}

func TestCalculateAfterStartDate(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	task := &model.Task{ID: uuid.New(), StartDate: timePtr(start)}
	rule := &model.ReminderRule{
		ReferenceType:   model.ReferenceStart,
		OffsetDirection: model.OffsetAfter,
		OffsetAmount:    30,
		OffsetUnit:      model.OffsetMinutes,
	}

	Calculate(rule, task)

	want := start.Add(30 * time.Minute)
	if rule.CalculatedFireTime == nil || !rule.CalculatedFireTime.Equal(want) {
		t.Fatalf("expected fire time %v, got %v", want, rule.CalculatedFireTime)
	}
}

func TestCalculateDaysOffset(t *testing.T) {
	due := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	task := &model.Task{ID: uuid.New(), DueDate: timePtr(due)}
	rule := &model.ReminderRule{
		ReferenceType:   model.ReferenceDue,
		OffsetDirection: model.OffsetBefore,
		OffsetAmount:    3,
		OffsetUnit:      model.OffsetDays,
	}

	Calculate(rule, task)

	want := due.Add(-3 * 24 * time.Hour)
	if rule.CalculatedFireTime == nil || !rule.CalculatedFireTime.Equal(want) {
		t.Fatalf("expected fire time %v, got %v", want, rule.CalculatedFireTime)
	}
}

func TestCalculateCustomIgnoresParent(t *testing.T) {
	custom := time.Date(2025, 2, 14, 18, 30, 0, 0, time.UTC)
	rule := &model.ReminderRule{
		ReferenceType:   model.ReferenceCustom,
		CustomDatetime:  timePtr(custom),
		OffsetDirection: model.OffsetAfter,
		OffsetAmount:    0,
		OffsetUnit:      model.OffsetMinutes,
	}

	Calculate(rule, nil)

	if rule.CalculatedFireTime == nil || !rule.CalculatedFireTime.Equal(custom) {
		t.Fatalf("expected fire time %v, got %v", custom, rule.CalculatedFireTime)
	}
}

func TestCalculateNullReferenceClearsFireTime(t *testing.T) {
	task := &model.Task{ID: uuid.New()} // no due date
	stale := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rule := &model.ReminderRule{
		ReferenceType:      model.ReferenceDue,
		OffsetDirection:    model.OffsetBefore,
		OffsetAmount:       1,
		OffsetUnit:         model.OffsetHours,
		CalculatedFireTime: timePtr(stale),
	}

	Calculate(rule, task)

	if rule.CalculatedFireTime != nil {
		t.Fatalf("expected nil fire time, got %v", rule.CalculatedFireTime)
	}
}

func TestCalculateRecomputesAfterDateChange(t *testing.T) {
	due := time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
	task := &model.Task{ID: uuid.New(), DueDate: timePtr(due)}
	rule := &model.ReminderRule{
		ReferenceType:   model.ReferenceDue,
		OffsetDirection: model.OffsetBefore,
		OffsetAmount:    2,
		OffsetUnit:      model.OffsetHours,
	}

	Calculate(rule, task)
	first := *rule.CalculatedFireTime

	task.DueDate = timePtr(due.Add(48 * time.Hour))
	Calculate(rule, task)

	want := first.Add(48 * time.Hour)
	if !rule.CalculatedFireTime.Equal(want) {
		t.Fatalf("expected recomputed fire time %v, got %v", want, rule.CalculatedFireTime)
	}
}

func TestDisplay(t *testing.T) {
	tests := []struct {
		name string
		rule model.ReminderRule
		want string
	}{
		{
			name: "plural hours before due",
			rule: model.ReminderRule{
				ReferenceType:   model.ReferenceDue,
				OffsetDirection: model.OffsetBefore,
				OffsetAmount:    2,
				OffsetUnit:      model.OffsetHours,
			},
			want: "2 hours before Due Date",
		},
		{
			name: "singular day after start",
			rule: model.ReminderRule{
				ReferenceType:   model.ReferenceStart,
				OffsetDirection: model.OffsetAfter,
				OffsetAmount:    1,
				OffsetUnit:      model.OffsetDays,
			},
			want: "1 day after Start Date",
		},
		{
			name: "minutes before custom",
			rule: model.ReminderRule{
				ReferenceType:   model.ReferenceCustom,
				OffsetDirection: model.OffsetBefore,
				OffsetAmount:    15,
				OffsetUnit:      model.OffsetMinutes,
			},
			want: "15 minutes before Scheduled Time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Display(&tt.rule); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
