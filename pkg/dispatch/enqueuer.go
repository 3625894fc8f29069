package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaypoint/relaypoint/pkg/event"
	"github.com/relaypoint/relaypoint/pkg/eventbus"
	"github.com/relaypoint/relaypoint/pkg/metrics"
	"github.com/relaypoint/relaypoint/pkg/model"
	"github.com/relaypoint/relaypoint/pkg/workflow"
)

// DefinitionStore supplies active workflow definitions and persists the
// executions the enqueuer creates.
type DefinitionStore interface {
	ListActiveDefinitions(ctx context.Context) ([]model.WorkflowDefinition, error)
	CreateExecution(ctx context.Context, execution *model.WorkflowExecution) error
}

// ExecutionNotifier signals the external runner that an execution record is
// waiting.
type ExecutionNotifier interface {
	NotifyExecution(ctx context.Context, notification eventbus.ExecutionNotification) error
}

// Enqueuer starts workflow runs for matching envelopes. It evaluates only the
// trigger node of each active definition; action nodes belong to the external
// runner.
type Enqueuer struct {
	store    DefinitionStore
	notifier ExecutionNotifier
	bus      *eventbus.Bus
	logger   *zap.Logger
}

func NewEnqueuer(store DefinitionStore, notifier ExecutionNotifier, bus *eventbus.Bus, logger *zap.Logger) *Enqueuer {
	return &Enqueuer{store: store, notifier: notifier, bus: bus, logger: logger}
}

// Enqueue creates one pending execution per active definition whose trigger
// node matches the envelope's trigger event, then notifies the runner. A
// failure on one definition never stops evaluation of the rest.
func (e *Enqueuer) Enqueue(ctx context.Context, env event.Envelope) {
	definitions, err := e.store.ListActiveDefinitions(ctx)
	if err != nil {
		e.logger.Error("failed to list workflow definitions",
			zap.String("trigger_event", env.TriggerEvent),
			zap.Error(err))
		return
	}

	for i := range definitions {
		definition := definitions[i]
		nodes, err := workflow.ParseNodes(definition.Nodes)
		if err != nil {
			e.logger.Warn("skipping unparseable workflow definition",
				zap.String("workflow_id", definition.ID.String()),
				zap.Error(err))
			continue
		}

		eventName, ok := workflow.TriggerEventName(nodes)
		if !ok || eventName != env.TriggerEvent {
			continue
		}

		now := time.Now().UTC()
		execution := &model.WorkflowExecution{
			ID:              uuid.New(),
			WorkflowID:      definition.ID,
			TriggerType:     env.TriggerEvent,
			TriggerSnapshot: env.Payload,
			Status:          model.ExecutionPending,
			TotalSteps:      len(nodes) - 1,
			StartedAt:       &now,
		}

		if err := e.store.CreateExecution(ctx, execution); err != nil {
			e.logger.Error("failed to create workflow execution",
				zap.String("workflow_id", definition.ID.String()),
				zap.String("trigger_event", env.TriggerEvent),
				zap.Error(err))
			continue
		}
		metrics.ExecutionsEnqueued.WithLabelValues(env.TriggerEvent).Inc()

		notification := eventbus.ExecutionNotification{
			ExecutionID: execution.ID.String(),
			WorkflowID:  definition.ID.String(),
			TriggerType: env.TriggerEvent,
		}
		if err := e.notifier.NotifyExecution(ctx, notification); err != nil {
			e.logger.Warn("failed to notify runner",
				zap.String("execution_id", execution.ID.String()),
				zap.Error(err))
		}

		e.announce(ctx, notification)
	}
}

func (e *Enqueuer) announce(ctx context.Context, notification eventbus.ExecutionNotification) {
	if e.bus == nil {
		return
	}
	queued := eventbus.ExecutionQueued{
		ExecutionID: notification.ExecutionID,
		WorkflowID:  notification.WorkflowID,
		TriggerType: notification.TriggerType,
	}
	if busEvent, err := eventbus.NewEvent("execution_queued", queued); err == nil {
		_ = e.bus.Publish(ctx, eventbus.ChannelExecution, busEvent)
	}
}
