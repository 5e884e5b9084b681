package orchestrator

import (
	"context"
	"fmt"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/internal/provider"
	"github.com/avyukt/invest-gateway/pkg/logger"
)

// OrderSubmitter hands a line item to the provider.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, sub provider.OrderSubmission) (*provider.OrderDetails, error)
}

// PlacerOrderStore is the order access the placer needs.
type PlacerOrderStore interface {
	ListByPayment(ctx context.Context, paymentID int64, kind *model.OrderKind) ([]*model.Order, error)
	ItemsByOrder(ctx context.Context, orderID int64) ([]*model.OrderItem, error)
	UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error
}

// ProviderOrderPlacer submits a payment's SIP orders to the provider and
// registers a fulfillment poll per line item. Only CREATED orders are
// submitted, so a re-delivered mandate event cannot double-place; the
// provider additionally keys submissions by ref.
type ProviderOrderPlacer struct {
	orders      PlacerOrderStore
	submitter   OrderSubmitter
	fulfillment FulfillmentScheduler
}

func NewProviderOrderPlacer(orders PlacerOrderStore, submitter OrderSubmitter, fulfillment FulfillmentScheduler) *ProviderOrderPlacer {
	return &ProviderOrderPlacer{
		orders:      orders,
		submitter:   submitter,
		fulfillment: fulfillment,
	}
}

func (p *ProviderOrderPlacer) PlaceSipOrders(ctx context.Context, payment *model.Payment) error {
	kind := model.OrderKindSip
	orders, err := p.orders.ListByPayment(ctx, payment.ID, &kind)
	if err != nil {
		return fmt.Errorf("failed to list sip orders for payment %d: %w", payment.ID, err)
	}

	for _, order := range orders {
		if order.Status != model.OrderStatusCreated {
			logger.Debug("sip order already placed, skipping", "order_id", order.ID, "status", order.Status)
			continue
		}

		items, err := p.orders.ItemsByOrder(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("failed to load items of order %d: %w", order.ID, err)
		}

		for _, item := range items {
			sub := provider.OrderSubmission{
				Ref:       item.Ref,
				UserID:    order.UserID,
				Kind:      string(order.Kind),
				FundID:    item.FundID,
				Amount:    item.Amount,
				MandateID: order.MandateRef,
			}
			if _, err := p.submitter.SubmitOrder(ctx, sub); err != nil {
				return fmt.Errorf("failed to submit item %s of order %d: %w", item.Ref, order.ID, err)
			}
		}

		if err := p.orders.UpdateStatus(ctx, order.ID, model.OrderStatusPlaced); err != nil {
			return fmt.Errorf("failed to mark order %d placed: %w", order.ID, err)
		}

		for _, item := range items {
			p.fulfillment.Schedule(item.Ref, order.ID)
		}
		logger.Info("sip order placed", "order_id", order.ID, "payment_id", payment.ID, "items", len(items))
	}
	return nil
}
