package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaypoint/relaypoint/pkg/event"
	"github.com/relaypoint/relaypoint/pkg/eventbus"
	"github.com/relaypoint/relaypoint/pkg/metrics"
	"github.com/relaypoint/relaypoint/pkg/model"
)

// ReminderStore supplies due rules and performs the claim. Claim must be a
// conditional update keyed by rule id and current is_sent value so that
// overlapping sweeps racing on one rule produce exactly one winner.
type ReminderStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.ReminderRule, error)
	Claim(ctx context.Context, id uuid.UUID, sentAt time.Time) (bool, error)
}

// ParentStore fetches the entity a rule is anchored to. A missing parent is
// reported as (nil, nil).
type ParentStore interface {
	GetTask(ctx context.Context, id uuid.UUID) (*model.Task, error)
}

// Dispatcher is the webhook delivery path reminder envelopes are handed to.
type Dispatcher interface {
	Dispatch(ctx context.Context, env event.Envelope)
}

// Result reports what one sweep invocation fired.
type Result struct {
	Fired []uuid.UUID
}

// Sweep periodically claims due, unsent reminder rules and fires one envelope
// per rule through the webhook path. Overlapping invocations are safe: the
// claim happens before the envelope is dispatched, so a rule that loses the
// race is skipped without firing.
type Sweep struct {
	reminders  ReminderStore
	parents    ParentStore
	dispatcher Dispatcher
	bus        *eventbus.Bus
	logger     *zap.Logger
	interval   time.Duration
	batchSize  int
	now        func() time.Time
}

func NewSweep(reminders ReminderStore, parents ParentStore, dispatcher Dispatcher, bus *eventbus.Bus, logger *zap.Logger, interval time.Duration, batchSize int) *Sweep {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Sweep{
		reminders:  reminders,
		parents:    parents,
		dispatcher: dispatcher,
		bus:        bus,
		logger:     logger,
		interval:   interval,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

func (s *Sweep) Run(ctx context.Context) error {
	s.logger.Info("reminder sweep starting",
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batchSize),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder sweep shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweep) sweep(ctx context.Context) {
	start := time.Now()
	result, err := s.RunOnce(ctx)
	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
		return
	}
	if len(result.Fired) > 0 {
		s.logger.Info("sweep fired reminders", zap.Int("count", len(result.Fired)))
	}
}

// RunOnce processes every rule that is unsent with a non-null fire time at or
// before now, oldest first. Rules whose parent no longer exists are skipped
// without being claimed.
func (s *Sweep) RunOnce(ctx context.Context) (Result, error) {
	now := s.now().UTC()

	rules, err := s.reminders.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return Result{}, err
	}

	var fired []uuid.UUID
	for i := range rules {
		rule := rules[i]

		parent, err := s.parents.GetTask(ctx, rule.ParentEntityID)
		if err != nil {
			s.logger.Warn("failed to fetch reminder parent",
				zap.String("reminder_id", rule.ID.String()),
				zap.Error(err))
			continue
		}
		if parent == nil {
			s.logger.Warn("reminder parent missing, skipping",
				zap.String("reminder_id", rule.ID.String()),
				zap.String("parent_entity_id", rule.ParentEntityID.String()))
			continue
		}

		claimed, err := s.reminders.Claim(ctx, rule.ID, s.now().UTC())
		if err != nil {
			s.logger.Error("failed to claim reminder",
				zap.String("reminder_id", rule.ID.String()),
				zap.Error(err))
			continue
		}
		if !claimed {
			// Another sweep got there first.
			continue
		}

		display := Display(&rule)
		env := event.ReminderEnvelope(&rule, parent.EventFields(), display)
		s.dispatcher.Dispatch(ctx, env)
		metrics.RemindersFired.Inc()

		s.announce(ctx, rule, display)
		fired = append(fired, rule.ID)
	}

	return Result{Fired: fired}, nil
}

func (s *Sweep) announce(ctx context.Context, rule model.ReminderRule, display string) {
	if s.bus == nil {
		return
	}
	firedEvent := eventbus.ReminderFired{
		ReminderID:     rule.ID.String(),
		ParentEntityID: rule.ParentEntityID.String(),
		Display:        display,
	}
	if busEvent, err := eventbus.NewEvent("reminder_fired", firedEvent); err == nil {
		_ = s.bus.Publish(ctx, eventbus.ChannelReminder, busEvent)
	}
}
