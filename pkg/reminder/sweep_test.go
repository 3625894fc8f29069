package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaypoint/relaypoint/pkg/event"
	"github.com/relaypoint/relaypoint/pkg/model"
)

type fakeReminderStore struct {
	mu    sync.Mutex
	rules map[uuid.UUID]*model.ReminderRule
}

func newFakeReminderStore(rules ...*model.ReminderRule) *fakeReminderStore {
	s := &fakeReminderStore{rules: make(map[uuid.UUID]*model.ReminderRule)}
	for _, r := range rules {
		s.rules[r.ID] = r
	}
	return s
}

func (s *fakeReminderStore) ListDue(_ context.Context, now time.Time, limit int) ([]model.ReminderRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []model.ReminderRule
	for _, r := range s.rules {
		if r.IsSent || r.CalculatedFireTime == nil {
			continue
		}
		if r.CalculatedFireTime.After(now) {
			continue
		}
		due = append(due, *r)
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (s *fakeReminderStore) Claim(_ context.Context, id uuid.UUID, sentAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok || r.IsSent {
		return false, nil
	}
	r.IsSent = true
	r.SentAt = &sentAt
	return true, nil
}

type fakeParentStore struct {
	tasks map[uuid.UUID]*model.Task
}

func (s *fakeParentStore) GetTask(_ context.Context, id uuid.UUID) (*model.Task, error) {
	return s.tasks[id], nil
}

type captureDispatcher struct {
	mu        sync.Mutex
	envelopes []event.Envelope
}

func (d *captureDispatcher) Dispatch(_ context.Context, env event.Envelope) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.envelopes = append(d.envelopes, env)
}

func (d *captureDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.envelopes)
}

func dueRule(parentID uuid.UUID, fireTime time.Time) *model.ReminderRule {
	return &model.ReminderRule{
		ID:                 uuid.New(),
		ParentEntityID:     parentID,
		ReferenceType:      model.ReferenceDue,
		OffsetDirection:    model.OffsetBefore,
		OffsetAmount:       2,
		OffsetUnit:         model.OffsetHours,
		CalculatedFireTime: &fireTime,
	}
}

func TestSweepFiresDueReminder(t *testing.T) {
	now := time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
	task := &model.Task{ID: uuid.New(), Title: "Renew contract", Status: model.TaskOpen}
	rule := dueRule(task.ID, now.Add(-time.Minute))

	store := newFakeReminderStore(rule)
	parents := &fakeParentStore{tasks: map[uuid.UUID]*model.Task{task.ID: task}}
	dispatcher := &captureDispatcher{}

	sweep := NewSweep(store, parents, dispatcher, nil, zap.NewNop(), time.Minute, 100)
	sweep.now = func() time.Time { return now }

	result, err := sweep.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Fired) != 1 || result.Fired[0] != rule.ID {
		t.Fatalf("expected one fired reminder %s, got %v", rule.ID, result.Fired)
	}
	if dispatcher.count() != 1 {
		t.Fatalf("expected one dispatched envelope, got %d", dispatcher.count())
	}

	env := dispatcher.envelopes[0]
	if env.TriggerEvent != event.TaskReminder {
		t.Fatalf("expected trigger event %s, got %s", event.TaskReminder, env.TriggerEvent)
	}
	if env.Payload["reminder_id"] != rule.ID.String() {
		t.Fatalf("expected reminder_id %s, got %v", rule.ID, env.Payload["reminder_id"])
	}
	if env.Payload["title"] != "Renew contract" {
		t.Fatalf("expected parent title in payload, got %v", env.Payload["title"])
	}
	if env.Payload["reminder_display"] != "2 hours before Due Date" {
		t.Fatalf("unexpected display: %v", env.Payload["reminder_display"])
	}

	stored := store.rules[rule.ID]
	if !stored.IsSent || stored.SentAt == nil {
		t.Fatal("expected rule to be marked sent with sent_at")
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	now := time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
	task := &model.Task{ID: uuid.New(), Title: "Follow up"}
	rule := dueRule(task.ID, now.Add(-time.Minute))

	store := newFakeReminderStore(rule)
	parents := &fakeParentStore{tasks: map[uuid.UUID]*model.Task{task.ID: task}}
	dispatcher := &captureDispatcher{}

	sweep := NewSweep(store, parents, dispatcher, nil, zap.NewNop(), time.Minute, 100)
	sweep.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := sweep.RunOnce(context.Background()); err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
	}

	if dispatcher.count() != 1 {
		t.Fatalf("expected exactly one dispatch across repeated sweeps, got %d", dispatcher.count())
	}
}

func TestSweepSkipsFutureAndNullFireTimes(t *testing.T) {
	now := time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
	task := &model.Task{ID: uuid.New()}

	future := dueRule(task.ID, now.Add(time.Hour))
	unscheduled := dueRule(task.ID, now)
	unscheduled.CalculatedFireTime = nil

	store := newFakeReminderStore(future, unscheduled)
	parents := &fakeParentStore{tasks: map[uuid.UUID]*model.Task{task.ID: task}}
	dispatcher := &captureDispatcher{}

	sweep := NewSweep(store, parents, dispatcher, nil, zap.NewNop(), time.Minute, 100)
	sweep.now = func() time.Time { return now }

	result, err := sweep.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Fired) != 0 || dispatcher.count() != 0 {
		t.Fatalf("expected nothing fired, got %v", result.Fired)
	}
}

func TestSweepSkipsMissingParentWithoutClaiming(t *testing.T) {
	now := time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
	rule := dueRule(uuid.New(), now.Add(-time.Minute))

	store := newFakeReminderStore(rule)
	parents := &fakeParentStore{tasks: map[uuid.UUID]*model.Task{}}
	dispatcher := &captureDispatcher{}

	sweep := NewSweep(store, parents, dispatcher, nil, zap.NewNop(), time.Minute, 100)
	sweep.now = func() time.Time { return now }

	result, err := sweep.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Fired) != 0 || dispatcher.count() != 0 {
		t.Fatal("expected no dispatch for orphaned rule")
	}
	if store.rules[rule.ID].IsSent {
		t.Fatal("orphaned rule must not be claimed")
	}
}

func TestConcurrentSweepsFireOnce(t *testing.T) {
	now := time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
	task := &model.Task{ID: uuid.New(), Title: "Ship release"}
	rule := dueRule(task.ID, now.Add(-time.Minute))

	store := newFakeReminderStore(rule)
	parents := &fakeParentStore{tasks: map[uuid.UUID]*model.Task{task.ID: task}}
	dispatcher := &captureDispatcher{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweep := NewSweep(store, parents, dispatcher, nil, zap.NewNop(), time.Minute, 100)
			sweep.now = func() time.Time { return now }
			if _, err := sweep.RunOnce(context.Background()); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if dispatcher.count() != 1 {
		t.Fatalf("expected exactly one dispatch across concurrent sweeps, got %d", dispatcher.count())
	}
}
