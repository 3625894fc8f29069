package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaypoint/relaypoint/pkg/event"
	"github.com/relaypoint/relaypoint/pkg/metrics"
	"github.com/relaypoint/relaypoint/pkg/model"
)

// OutboxRepository drains the envelopes mutations left behind.
type OutboxRepository interface {
	ListPending(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkPublished(ctx context.Context, eventID uuid.UUID, publishedAt time.Time) error
	MarkFailed(ctx context.Context, eventID uuid.UUID) error
}

// Relay polls the outbox and fans each envelope out through the webhook
// dispatcher and the workflow enqueuer. Running it in its own process keeps
// HTTP delivery off the write path entirely.
type Relay struct {
	repo         OutboxRepository
	webhooks     *Webhooks
	enqueuer     *Enqueuer
	logger       *zap.Logger
	pollInterval time.Duration
	batchSize    int
}

func NewRelay(repo OutboxRepository, webhooks *Webhooks, enqueuer *Enqueuer, logger *zap.Logger, pollInterval time.Duration, batchSize int) *Relay {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		repo:         repo,
		webhooks:     webhooks,
		enqueuer:     enqueuer,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("dispatch relay starting",
		zap.Duration("poll_interval", r.pollInterval),
		zap.Int("batch_size", r.batchSize),
	)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.ProcessPending(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("dispatch relay shutting down")
			return ctx.Err()
		case <-ticker.C:
			r.ProcessPending(ctx)
		}
	}
}

// ProcessPending drains one batch of pending outbox events. Each event is
// dispatched to webhooks and evaluated against workflow definitions; both
// paths are best-effort, so an event is marked published once the fan-out has
// run, and failed only when its envelope is unusable.
func (r *Relay) ProcessPending(ctx context.Context) {
	events, err := r.repo.ListPending(ctx, r.batchSize)
	if err != nil {
		r.logger.Warn("failed to list pending outbox events", zap.Error(err))
		return
	}

	for i := range events {
		r.process(ctx, events[i])
	}
}

func (r *Relay) process(ctx context.Context, outboxEvent model.OutboxEvent) {
	if outboxEvent.TriggerEvent == "" || len(outboxEvent.Payload) == 0 {
		r.logger.Warn("dropping malformed outbox event",
			zap.String("event_id", outboxEvent.EventID.String()))
		if err := r.repo.MarkFailed(ctx, outboxEvent.EventID); err != nil {
			r.logger.Warn("failed to mark outbox event failed", zap.Error(err))
		}
		metrics.OutboxEvents.WithLabelValues(model.OutboxStatusFailed).Inc()
		return
	}

	env := event.Envelope{
		TriggerEvent: outboxEvent.TriggerEvent,
		Payload:      outboxEvent.Payload,
	}

	r.webhooks.Dispatch(ctx, env)
	r.enqueuer.Enqueue(ctx, env)

	if err := r.repo.MarkPublished(ctx, outboxEvent.EventID, time.Now().UTC()); err != nil {
		r.logger.Warn("failed to mark outbox event published",
			zap.String("event_id", outboxEvent.EventID.String()),
			zap.Error(err))
		return
	}
	metrics.OutboxEvents.WithLabelValues(model.OutboxStatusPublished).Inc()
}
