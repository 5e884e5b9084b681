package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/internal/provider"
	"github.com/avyukt/invest-gateway/internal/repository"
	"github.com/avyukt/invest-gateway/pkg/logger"
	"github.com/shopspring/decimal"
)

type OrderStore interface {
	ListByPayment(ctx context.Context, paymentID int64, kind *model.OrderKind) ([]*model.Order, error)
	UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error
	ItemRefsByPayment(ctx context.Context, paymentID int64) ([]string, error)
}

type GoalStore interface {
	IncrementCurrentAmount(ctx context.Context, id int64, delta decimal.Decimal) error
	PromoteStatus(ctx context.Context, id int64, from, to model.GoalStatus) error
}

type PaymentClient interface {
	FetchPayment(ctx context.Context, ref string) (*provider.PaymentDetails, error)
}

// FulfillmentScheduler starts the per-ref fulfillment polls once a payment
// lands.
type FulfillmentScheduler interface {
	Schedule(ref string, orderID int64)
}

type CompletionSink interface {
	LumpSumCompleted(ctx context.Context, ev model.LumpSumPaymentCompletedEvent) error
}

// PaymentListener resolves the buy axis of a payment. On provider-verified
// success it completes the BUY orders, feeds the goals, and hands every
// line-item ref to the fulfillment poller.
type PaymentListener struct {
	payments    PaymentStore
	orders      OrderStore
	goals       GoalStore
	provider    PaymentClient
	fulfillment FulfillmentScheduler
	events      CompletionSink
}

func NewPaymentListener(payments PaymentStore, orders OrderStore, goals GoalStore, client PaymentClient, fulfillment FulfillmentScheduler, events CompletionSink) *PaymentListener {
	return &PaymentListener{
		payments:    payments,
		orders:      orders,
		goals:       goals,
		provider:    client,
		fulfillment: fulfillment,
		events:      events,
	}
}

func (l *PaymentListener) Handle(ctx context.Context, ev model.PaymentEvent) error {
	payment, err := l.payments.GetByRef(ctx, ev.Ref)
	if err != nil {
		return err
	}
	if payment.BuyStatus != model.PaymentStatusSubmitted {
		logger.Debug("buy status already resolved, skipping payment event",
			"payment_id", payment.ID, "buy_status", payment.BuyStatus)
		return nil
	}

	details, err := l.provider.FetchPayment(ctx, payment.Ref)
	if err != nil {
		return err
	}

	switch details.Status {
	case provider.PaymentStatusSuccess:
		return l.complete(ctx, payment)

	case provider.PaymentStatusFailure:
		if err := l.payments.SetBuyStatus(ctx, payment.ID, model.PaymentStatusSubmitted, model.PaymentStatusFailed); err != nil && !errors.Is(err, repository.ErrStaleStatus) {
			return err
		}
		logger.Info("payment failed at provider", "payment_id", payment.ID, "ref", payment.Ref)
		return nil
	}

	logger.Debug("payment not resolved yet", "ref", payment.Ref, "status", details.Status)
	return nil
}

func (l *PaymentListener) complete(ctx context.Context, payment *model.Payment) error {
	if err := l.payments.SetBuyStatus(ctx, payment.ID, model.PaymentStatusSubmitted, model.PaymentStatusCompleted); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil
		}
		return err
	}

	kind := model.OrderKindBuy
	orders, err := l.orders.ListByPayment(ctx, payment.ID, &kind)
	if err != nil {
		return err
	}
	for _, order := range orders {
		if err := l.orders.UpdateStatus(ctx, order.ID, model.OrderStatusCompleted); err != nil {
			return err
		}
		if order.GoalID == nil {
			continue
		}
		if err := l.goals.IncrementCurrentAmount(ctx, *order.GoalID, order.Amount); err != nil {
			return err
		}
		if err := l.goals.PromoteStatus(ctx, *order.GoalID, model.GoalStatusPaymentPending, model.GoalStatusActive); err != nil && !errors.Is(err, repository.ErrStaleStatus) {
			return err
		}
	}

	refs, err := l.orders.ItemRefsByPayment(ctx, payment.ID)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		l.fulfillment.Schedule(ref, 0)
	}

	logger.Info("payment completed, fulfillment polls scheduled",
		"payment_id", payment.ID, "ref", payment.Ref, "order_refs", len(refs))

	return l.events.LumpSumCompleted(ctx, model.LumpSumPaymentCompletedEvent{
		PaymentRef: payment.Ref,
		Timestamp:  time.Now(),
	})
}
