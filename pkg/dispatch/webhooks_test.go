package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaypoint/relaypoint/pkg/event"
	"github.com/relaypoint/relaypoint/pkg/model"
	"github.com/relaypoint/relaypoint/pkg/store"
)

type attemptRecord struct {
	id      uuid.UUID
	success bool
}

type fakeSubscriptionStore struct {
	mu            sync.Mutex
	subscriptions []model.WebhookSubscription
	attempts      []attemptRecord
}

func (s *fakeSubscriptionStore) ListActiveByEvent(_ context.Context, triggerEvent string) ([]model.WebhookSubscription, error) {
	var matched []model.WebhookSubscription
	for _, sub := range s.subscriptions {
		if sub.IsActive && sub.TriggerEvent == triggerEvent {
			matched = append(matched, sub)
		}
	}
	return matched, nil
}

func (s *fakeSubscriptionStore) RecordAttempt(_ context.Context, id uuid.UUID, success bool, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, attemptRecord{id: id, success: success})
	return nil
}

func (s *fakeSubscriptionStore) attemptsFor(id uuid.UUID) (total, successes, failures int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.id != id {
			continue
		}
		total++
		if a.success {
			successes++
		} else {
			failures++
		}
	}
	return total, successes, failures
}

func subscription(triggerEvent, url string) model.WebhookSubscription {
	return model.WebhookSubscription{
		ID:           uuid.New(),
		Name:         "test",
		TriggerEvent: triggerEvent,
		EndpointURL:  url,
		IsActive:     true,
	}
}

func TestDispatchDeliversPayload(t *testing.T) {
	var received map[string]interface{}
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sub := subscription(event.TaskCreated, server.URL)
	store := &fakeSubscriptionStore{subscriptions: []model.WebhookSubscription{sub}}
	webhooks := NewWebhooks(store, nil, nil, zap.NewNop(), time.Second)

	env := event.Envelope{
		TriggerEvent: event.TaskCreated,
		Payload:      model.JSONB{"trigger_event": event.TaskCreated, "title": "Call supplier"},
	}
	webhooks.Dispatch(context.Background(), env)

	if contentType != "application/json" {
		t.Fatalf("expected application/json, got %q", contentType)
	}
	if received["title"] != "Call supplier" {
		t.Fatalf("expected payload delivered, got %v", received)
	}

	total, successes, failures := store.attemptsFor(sub.ID)
	if total != 1 || successes != 1 || failures != 0 {
		t.Fatalf("expected 1/1/0, got %d/%d/%d", total, successes, failures)
	}
}

func TestDispatchRecordsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sub := subscription(event.TaskUpdated, server.URL)
	store := &fakeSubscriptionStore{subscriptions: []model.WebhookSubscription{sub}}
	webhooks := NewWebhooks(store, nil, nil, zap.NewNop(), time.Second)

	webhooks.Dispatch(context.Background(), event.Envelope{
		TriggerEvent: event.TaskUpdated,
		Payload:      model.JSONB{"trigger_event": event.TaskUpdated},
	})

	total, successes, failures := store.attemptsFor(sub.ID)
	if total != 1 || successes != 0 || failures != 1 {
		t.Fatalf("expected 1/0/1, got %d/%d/%d", total, successes, failures)
	}
}

func TestDispatchUnreachableEndpointRecordsFailure(t *testing.T) {
	sub := subscription(event.TaskDeleted, "http://127.0.0.1:1/hook")
	store := &fakeSubscriptionStore{subscriptions: []model.WebhookSubscription{sub}}
	webhooks := NewWebhooks(store, nil, nil, zap.NewNop(), 500*time.Millisecond)

	webhooks.Dispatch(context.Background(), event.Envelope{
		TriggerEvent: event.TaskDeleted,
		Payload:      model.JSONB{"trigger_event": event.TaskDeleted},
	})

	total, successes, failures := store.attemptsFor(sub.ID)
	if total != 1 || successes != 0 || failures != 1 {
		t.Fatalf("expected 1/0/1, got %d/%d/%d", total, successes, failures)
	}
}

func TestDispatchIsolatesSubscriptions(t *testing.T) {
	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer okServer.Close()

	badServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer badServer.Close()

	okSub := subscription(event.TaskCreated, okServer.URL)
	badSub := subscription(event.TaskCreated, badServer.URL)
	otherSub := subscription(event.ContactCreated, okServer.URL)
	inactiveSub := subscription(event.TaskCreated, okServer.URL)
	inactiveSub.IsActive = false

	store := &fakeSubscriptionStore{subscriptions: []model.WebhookSubscription{okSub, badSub, otherSub, inactiveSub}}
	webhooks := NewWebhooks(store, nil, nil, zap.NewNop(), time.Second)

	webhooks.Dispatch(context.Background(), event.Envelope{
		TriggerEvent: event.TaskCreated,
		Payload:      model.JSONB{"trigger_event": event.TaskCreated},
	})

	if total, successes, _ := store.attemptsFor(okSub.ID); total != 1 || successes != 1 {
		t.Fatalf("expected healthy endpoint delivery, got %d/%d", total, successes)
	}
	if total, _, failures := store.attemptsFor(badSub.ID); total != 1 || failures != 1 {
		t.Fatalf("expected failing endpoint recorded, got %d/%d", total, failures)
	}
	if total, _, _ := store.attemptsFor(otherSub.ID); total != 0 {
		t.Fatal("subscription for another event must not be called")
	}
	if total, _, _ := store.attemptsFor(inactiveSub.ID); total != 0 {
		t.Fatal("inactive subscription must not be called")
	}
}

func TestDispatchFansOutConcurrently(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var subs []model.WebhookSubscription
	for i := 0; i < 20; i++ {
		subs = append(subs, subscription(event.TaskReminder, server.URL))
	}
	store := &fakeSubscriptionStore{subscriptions: subs}
	webhooks := NewWebhooks(store, nil, nil, zap.NewNop(), time.Second)

	webhooks.Dispatch(context.Background(), event.Envelope{
		TriggerEvent: event.TaskReminder,
		Payload:      model.JSONB{"trigger_event": event.TaskReminder},
	})

	if calls.Load() != 20 {
		t.Fatalf("expected 20 deliveries, got %d", calls.Load())
	}
	store.mu.Lock()
	recorded := len(store.attempts)
	store.mu.Unlock()
	if recorded != 20 {
		t.Fatalf("expected 20 recorded attempts, got %d", recorded)
	}
}

func TestDispatchDefaultsMethodToPost(t *testing.T) {
	var method string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sub := subscription(event.TaskCreated, server.URL)
	sub.HTTPMethod = ""
	store := &fakeSubscriptionStore{subscriptions: []model.WebhookSubscription{sub}}
	webhooks := NewWebhooks(store, nil, nil, zap.NewNop(), time.Second)

	webhooks.Dispatch(context.Background(), event.Envelope{
		TriggerEvent: event.TaskCreated,
		Payload:      model.JSONB{"trigger_event": event.TaskCreated},
	})

	if method != http.MethodPost {
		t.Fatalf("expected POST, got %q", method)
	}
}

type fakeDeliveryLog struct {
	mu      sync.Mutex
	records []*model.DeliveryRecord
}

func (l *fakeDeliveryLog) CreateBatch(_ context.Context, records []*model.DeliveryRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, records...)
	return nil
}

func (l *fakeDeliveryLog) List(_ context.Context, _ string, _ *time.Time, _ int) ([]model.DeliveryRecord, error) {
	return nil, nil
}

func (l *fakeDeliveryLog) Query(_ context.Context, _ store.DeliveryQuery) ([]model.DeliveryRecord, error) {
	return nil, nil
}

func (l *fakeDeliveryLog) DeleteOld(_ context.Context, _ int) error { return nil }

func (l *fakeDeliveryLog) Close() error { return nil }

func TestDispatchWritesDeliveryRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	okSub := subscription(event.TaskCreated, server.URL)
	badSub := subscription(event.TaskCreated, "http://127.0.0.1:1/hook")
	subs := &fakeSubscriptionStore{subscriptions: []model.WebhookSubscription{okSub, badSub}}
	deliveryLog := &fakeDeliveryLog{}
	webhooks := NewWebhooks(subs, deliveryLog, nil, zap.NewNop(), time.Second)

	webhooks.Dispatch(context.Background(), event.Envelope{
		TriggerEvent: event.TaskCreated,
		Payload:      model.JSONB{"trigger_event": event.TaskCreated},
	})

	if len(deliveryLog.records) != 2 {
		t.Fatalf("expected 2 delivery records, got %d", len(deliveryLog.records))
	}
	byID := make(map[string]*model.DeliveryRecord)
	for _, r := range deliveryLog.records {
		byID[r.SubscriptionID.String()] = r
	}
	ok := byID[okSub.ID.String()]
	if ok == nil || !ok.Success || ok.StatusCode != http.StatusOK {
		t.Fatalf("expected successful record with status 200, got %+v", ok)
	}
	bad := byID[badSub.ID.String()]
	if bad == nil || bad.Success || bad.StatusCode != 0 {
		t.Fatalf("expected failed record with status 0, got %+v", bad)
	}
	if ok.TriggerEvent != event.TaskCreated || ok.EndpointURL != server.URL {
		t.Fatalf("expected trigger event and endpoint recorded, got %+v", ok)
	}
}
