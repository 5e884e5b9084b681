package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avyukt/invest-gateway/internal/jobs"
	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/internal/outbox"
	"github.com/avyukt/invest-gateway/internal/queue"
	"github.com/avyukt/invest-gateway/pkg/logger"
	"github.com/avyukt/invest-gateway/pkg/prom"
)

// Consumer is the inbound edge of the event stream; the redis streams
// queue satisfies it.
type Consumer interface {
	Consume(handler queue.MessageHandler) error
}

// Orchestrator routes committed domain events to their listeners. Events
// arrive at-least-once and carry hints only: every listener re-reads
// persisted state, and the mandate/payment listeners re-fetch the provider
// before acting.
type Orchestrator struct {
	consumer      Consumer
	mandates      *MandateListener
	payments      *PaymentListener
	goalSync      *jobs.GoalSync
	notifications *NotificationListener
}

func New(consumer Consumer, mandates *MandateListener, payments *PaymentListener, goalSync *jobs.GoalSync, notifications *NotificationListener) *Orchestrator {
	return &Orchestrator{
		consumer:      consumer,
		mandates:      mandates,
		payments:      payments,
		goalSync:      goalSync,
		notifications: notifications,
	}
}

func (o *Orchestrator) Start() error {
	return o.consumer.Consume(o.handle)
}

func (o *Orchestrator) handle(ctx context.Context, msg *queue.Message) error {
	eventType := msg.Metadata[outbox.MetaEventType]

	err := o.dispatch(ctx, eventType, msg.Data)
	if err != nil {
		prom.IncEventConsumed(eventType, "error")
		return err
	}
	prom.IncEventConsumed(eventType, "ok")
	return nil
}

func (o *Orchestrator) dispatch(ctx context.Context, eventType string, data []byte) error {
	switch eventType {
	case model.EventTypeMandateProcess:
		var ev model.MandateProcessEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("malformed %s event: %w", eventType, err)
		}
		return o.mandates.Handle(ctx, ev)

	case model.EventTypePayment:
		var ev model.PaymentEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("malformed %s event: %w", eventType, err)
		}
		return o.payments.Handle(ctx, ev)

	case model.EventTypeGoalSync:
		var ev model.GoalSyncEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("malformed %s event: %w", eventType, err)
		}
		o.goalSync.Trigger(ev.GoalID)
		return nil

	case model.EventTypeTransactionSuccess:
		var ev model.TransactionSuccessEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("malformed %s event: %w", eventType, err)
		}
		return o.notifications.Handle(ctx, ev)

	case model.EventTypeLumpSumPaymentDone:
		var ev model.LumpSumPaymentCompletedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("malformed %s event: %w", eventType, err)
		}
		logger.Info("lump sum payment completed", "payment_ref", ev.PaymentRef)
		return nil
	}

	// Unknown events are acked, not retried; a new producer version must
	// not wedge old consumers.
	logger.Warn("unknown event type, dropping", "event_type", eventType)
	return nil
}
