package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaypoint/relaypoint/pkg/event"
	"github.com/relaypoint/relaypoint/pkg/eventbus"
	"github.com/relaypoint/relaypoint/pkg/metrics"
	"github.com/relaypoint/relaypoint/pkg/model"
	"github.com/relaypoint/relaypoint/pkg/store"
)

const defaultHTTPTimeout = 10 * time.Second

// SubscriptionStore supplies active subscriptions and records delivery
// attempts. RecordAttempt must increment in place: total_calls by one and
// exactly one of success_count or failure_count, with last_triggered set,
// regardless of outcome.
type SubscriptionStore interface {
	ListActiveByEvent(ctx context.Context, triggerEvent string) ([]model.WebhookSubscription, error)
	RecordAttempt(ctx context.Context, id uuid.UUID, success bool, attemptedAt time.Time) error
}

// Webhooks delivers envelopes to matching subscriptions. One HTTP attempt per
// subscription, no retry; every attempt updates that subscription's
// statistics. Failures are recorded and logged, never returned.
type Webhooks struct {
	subscriptions SubscriptionStore
	deliveryLog   store.DeliveryLogStore
	client        *http.Client
	bus           *eventbus.Bus
	logger        *zap.Logger
}

func NewWebhooks(subscriptions SubscriptionStore, deliveryLog store.DeliveryLogStore, bus *eventbus.Bus, logger *zap.Logger, timeout time.Duration) *Webhooks {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Webhooks{
		subscriptions: subscriptions,
		deliveryLog:   deliveryLog,
		client:        &http.Client{Timeout: timeout},
		bus:           bus,
		logger:        logger,
	}
}

// Dispatch fans the envelope out to every active subscription for its trigger
// event. Subscriptions are delivered to independently: one endpoint's failure
// cannot affect delivery to, or the statistics of, another.
func (w *Webhooks) Dispatch(ctx context.Context, env event.Envelope) {
	subscriptions, err := w.subscriptions.ListActiveByEvent(ctx, env.TriggerEvent)
	if err != nil {
		w.logger.Error("failed to list subscriptions",
			zap.String("trigger_event", env.TriggerEvent),
			zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	body, err := json.Marshal(env.Payload)
	if err != nil {
		w.logger.Error("failed to encode envelope",
			zap.String("trigger_event", env.TriggerEvent),
			zap.Error(err))
		return
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var records []*model.DeliveryRecord

	for i := range subscriptions {
		subscription := subscriptions[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			record := w.deliver(ctx, subscription, env.TriggerEvent, body)
			mu.Lock()
			records = append(records, record)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if w.deliveryLog != nil {
		if err := w.deliveryLog.CreateBatch(ctx, records); err != nil {
			w.logger.Warn("failed to write delivery records",
				zap.String("trigger_event", env.TriggerEvent),
				zap.Error(err))
		}
	}
}

func (w *Webhooks) deliver(ctx context.Context, subscription model.WebhookSubscription, triggerEvent string, body []byte) *model.DeliveryRecord {
	start := time.Now()
	success, statusCode := w.attempt(ctx, subscription, body)
	elapsed := time.Since(start)
	metrics.WebhookDeliveryDuration.WithLabelValues(triggerEvent).Observe(elapsed.Seconds())

	outcome := "success"
	if !success {
		outcome = "failure"
		w.logger.Warn("webhook delivery failed",
			zap.String("subscription_id", subscription.ID.String()),
			zap.String("trigger_event", triggerEvent),
			zap.String("endpoint", subscription.EndpointURL))
	}
	metrics.WebhookDeliveries.WithLabelValues(triggerEvent, outcome).Inc()

	attemptedAt := time.Now().UTC()
	if err := w.subscriptions.RecordAttempt(ctx, subscription.ID, success, attemptedAt); err != nil {
		w.logger.Error("failed to record delivery attempt",
			zap.String("subscription_id", subscription.ID.String()),
			zap.Error(err))
	}

	w.announce(ctx, subscription, triggerEvent, success)

	return &model.DeliveryRecord{
		SubscriptionID: subscription.ID,
		TriggerEvent:   triggerEvent,
		EndpointURL:    subscription.EndpointURL,
		StatusCode:     int32(statusCode),
		Success:        success,
		DurationMs:     elapsed.Milliseconds(),
		AttemptedAt:    attemptedAt,
	}
}

func (w *Webhooks) attempt(ctx context.Context, subscription model.WebhookSubscription, body []byte) (bool, int) {
	method := subscription.HTTPMethod
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, subscription.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return false, 0
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return false, 0
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300, resp.StatusCode
}

func (w *Webhooks) announce(ctx context.Context, subscription model.WebhookSubscription, triggerEvent string, success bool) {
	if w.bus == nil {
		return
	}
	outcome := eventbus.DispatchOutcome{
		SubscriptionID: subscription.ID.String(),
		TriggerEvent:   triggerEvent,
		Success:        success,
	}
	if busEvent, err := eventbus.NewEvent("webhook_dispatched", outcome); err == nil {
		_ = w.bus.Publish(ctx, eventbus.ChannelDispatch, busEvent)
	}
}
