package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/internal/repository"
	"github.com/avyukt/invest-gateway/pkg/logger"
	"github.com/avyukt/invest-gateway/pkg/prom"
)

// MetaEventType is the queue metadata key carrying the event type.
const MetaEventType = "event_type"

// MetaOutboxID carries the originating outbox row id for tracing.
const MetaOutboxID = "outbox_id"

// Appender writes domain events into the outbox table. When the ctx
// carries a pg transaction the append commits atomically with the state
// change, so consumers can only ever observe committed events.
type Appender struct {
	repo *repository.OutboxRepository
}

func NewAppender(repo *repository.OutboxRepository) *Appender {
	return &Appender{repo: repo}
}

func (a *Appender) Append(ctx context.Context, eventType string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	if _, err := a.repo.Append(ctx, eventType, payload); err != nil {
		return fmt.Errorf("failed to append %s event: %w", eventType, err)
	}
	return nil
}

func (a *Appender) GoalSync(ctx context.Context, ev model.GoalSyncEvent) error {
	return a.Append(ctx, model.EventTypeGoalSync, ev)
}

func (a *Appender) TransactionSuccess(ctx context.Context, ev model.TransactionSuccessEvent) error {
	return a.Append(ctx, model.EventTypeTransactionSuccess, ev)
}

func (a *Appender) MandateProcess(ctx context.Context, ev model.MandateProcessEvent) error {
	return a.Append(ctx, model.EventTypeMandateProcess, ev)
}

func (a *Appender) Payment(ctx context.Context, ev model.PaymentEvent) error {
	return a.Append(ctx, model.EventTypePayment, ev)
}

func (a *Appender) LumpSumCompleted(ctx context.Context, ev model.LumpSumPaymentCompletedEvent) error {
	return a.Append(ctx, model.EventTypeLumpSumPaymentDone, ev)
}

// Publisher is the outbound edge the dispatcher pushes events to. The
// redis stream queue satisfies it.
type Publisher interface {
	Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error)
}

// Dispatcher drains undispatched outbox rows onto the event stream.
// Delivery is at-least-once: a crash between publish and mark re-publishes
// the row, and every consumer is idempotent by construction.
type Dispatcher struct {
	repo      *repository.OutboxRepository
	publisher Publisher
	batchSize int
}

func NewDispatcher(repo *repository.OutboxRepository, publisher Publisher, batchSize int) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Dispatcher{
		repo:      repo,
		publisher: publisher,
		batchSize: batchSize,
	}
}

// DispatchPending publishes one batch and returns how many rows moved.
func (d *Dispatcher) DispatchPending(ctx context.Context) (int, error) {
	rows, err := d.repo.FetchUndispatched(ctx, d.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch outbox rows: %w", err)
	}

	dispatched := 0
	for _, row := range rows {
		meta := map[string]string{
			MetaEventType: row.EventType,
			MetaOutboxID:  row.ID.String(),
		}
		if _, err := d.publisher.Publish(ctx, row.Payload, meta); err != nil {
			// Leave the row pending; the next sweep retries it. Later rows
			// are skipped to preserve per-sweep ordering.
			logger.Error("failed to publish outbox event", "outbox_id", row.ID, "event_type", row.EventType, "error", err)
			return dispatched, err
		}
		if err := d.repo.MarkDispatched(ctx, row.ID); err != nil {
			logger.Error("failed to mark outbox row dispatched", "outbox_id", row.ID, "error", err)
			return dispatched, err
		}
		prom.IncOutboxDispatched(row.EventType)
		dispatched++
	}
	return dispatched, nil
}
