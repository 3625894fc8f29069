package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaypoint/relaypoint/pkg/event"
	"github.com/relaypoint/relaypoint/pkg/model"
)

type fakeOutboxRepo struct {
	mu        sync.Mutex
	pending   []model.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
}

func (r *fakeOutboxRepo) ListPending(_ context.Context, limit int) ([]model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) > limit {
		return r.pending[:limit], nil
	}
	return r.pending, nil
}

func (r *fakeOutboxRepo) MarkPublished(_ context.Context, eventID uuid.UUID, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, eventID)
	return nil
}

func (r *fakeOutboxRepo) MarkFailed(_ context.Context, eventID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, eventID)
	return nil
}

func newTestRelay(repo OutboxRepository, subs *fakeSubscriptionStore, defs *fakeDefinitionStore) *Relay {
	logger := zap.NewNop()
	webhooks := NewWebhooks(subs, nil, nil, logger, time.Second)
	enqueuer := NewEnqueuer(defs, &fakeNotifier{}, nil, logger)
	return NewRelay(repo, webhooks, enqueuer, logger, time.Second, 100)
}

func TestProcessPendingFansOut(t *testing.T) {
	var delivered int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		delivered++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	outboxEvent := model.OutboxEvent{
		EventID:      uuid.New(),
		TriggerEvent: event.TaskCreated,
		Payload:      model.JSONB{"trigger_event": event.TaskCreated, "title": "New task"},
		Status:       model.OutboxStatusPending,
	}
	repo := &fakeOutboxRepo{pending: []model.OutboxEvent{outboxEvent}}
	subs := &fakeSubscriptionStore{subscriptions: []model.WebhookSubscription{subscription(event.TaskCreated, server.URL)}}
	defs := &fakeDefinitionStore{definitions: []model.WorkflowDefinition{activeDefinition(event.TaskCreated, 1)}}

	relay := newTestRelay(repo, subs, defs)
	relay.ProcessPending(context.Background())

	if delivered != 1 {
		t.Fatalf("expected 1 webhook delivery, got %d", delivered)
	}
	if len(defs.executions) != 1 {
		t.Fatalf("expected 1 execution enqueued, got %d", len(defs.executions))
	}
	if len(repo.published) != 1 || repo.published[0] != outboxEvent.EventID {
		t.Fatalf("expected event marked published, got %v", repo.published)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("expected no failures, got %v", repo.failed)
	}
}

func TestProcessPendingMarksMalformedFailed(t *testing.T) {
	malformed := model.OutboxEvent{
		EventID: uuid.New(),
		Status:  model.OutboxStatusPending,
	}
	repo := &fakeOutboxRepo{pending: []model.OutboxEvent{malformed}}
	subs := &fakeSubscriptionStore{}
	defs := &fakeDefinitionStore{}

	relay := newTestRelay(repo, subs, defs)
	relay.ProcessPending(context.Background())

	if len(repo.failed) != 1 || repo.failed[0] != malformed.EventID {
		t.Fatalf("expected malformed event marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 0 {
		t.Fatalf("expected nothing published, got %v", repo.published)
	}
}

func TestProcessPendingPublishesEvenWithNoConsumers(t *testing.T) {
	outboxEvent := model.OutboxEvent{
		EventID:      uuid.New(),
		TriggerEvent: event.ContactUpdated,
		Payload:      model.JSONB{"trigger_event": event.ContactUpdated},
		Status:       model.OutboxStatusPending,
	}
	repo := &fakeOutboxRepo{pending: []model.OutboxEvent{outboxEvent}}

	relay := newTestRelay(repo, &fakeSubscriptionStore{}, &fakeDefinitionStore{})
	relay.ProcessPending(context.Background())

	if len(repo.published) != 1 {
		t.Fatalf("expected event published with no consumers, got %v", repo.published)
	}
}

func TestRelayRunStopsOnCancel(t *testing.T) {
	repo := &fakeOutboxRepo{}
	relay := newTestRelay(repo, &fakeSubscriptionStore{}, &fakeDefinitionStore{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- relay.Run(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}
