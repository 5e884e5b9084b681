package orchestrator

import (
	"context"
	"testing"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paymentFixture(t *testing.T) (*fakePayments, *fakeOrders, *fakeGoals) {
	goalID := int64(42)
	payments := newFakePayments(&model.Payment{ID: 5, UserID: 7, Ref: "PAY-5", BuyStatus: model.PaymentStatusSubmitted})
	orders := &fakeOrders{
		orders: map[int64]*model.Order{
			10: {ID: 10, PaymentID: 5, GoalID: &goalID, Kind: model.OrderKindBuy, Status: model.OrderStatusPlaced, Amount: dec(t, "5000")},
			11: {ID: 11, PaymentID: 5, Kind: model.OrderKindSip, Status: model.OrderStatusPlaced, Amount: dec(t, "500")},
		},
		refs: []string{"ORD-A", "ORD-B"},
	}
	goals := newFakeGoals()
	goals.statuses[goalID] = model.GoalStatusPaymentPending
	return payments, orders, goals
}

func TestPaymentListener_SuccessCompletesBuySide(t *testing.T) {
	payments, orders, goals := paymentFixture(t)
	client := &stubPaymentClient{status: provider.PaymentStatusSuccess}
	sched := &recordingScheduler{}
	sink := &recordingSink{}

	l := NewPaymentListener(payments, orders, goals, client, sched, sink)
	require.NoError(t, l.Handle(context.Background(), model.PaymentEvent{Ref: "PAY-5", Status: "SUCCESS"}))

	assert.Equal(t, model.PaymentStatusCompleted, payments.buyStatus(5))
	assert.Equal(t, model.OrderStatusCompleted, orders.orders[10].Status)
	assert.Equal(t, model.OrderStatusPlaced, orders.orders[11].Status, "sip order is not the buy flow's to move")

	assert.True(t, goals.amounts[42].Equal(dec(t, "5000")))
	assert.Equal(t, model.GoalStatusActive, goals.statuses[42])

	assert.ElementsMatch(t, []string{"ORD-A", "ORD-B"}, sched.refs)
	require.Len(t, sink.events, 1)
	assert.Equal(t, "PAY-5", sink.events[0].PaymentRef)
}

func TestPaymentListener_DuplicateDeliveryIsNoOp(t *testing.T) {
	payments, orders, goals := paymentFixture(t)
	client := &stubPaymentClient{status: provider.PaymentStatusSuccess}
	sched := &recordingScheduler{}
	sink := &recordingSink{}

	l := NewPaymentListener(payments, orders, goals, client, sched, sink)
	require.NoError(t, l.Handle(context.Background(), model.PaymentEvent{Ref: "PAY-5", Status: "SUCCESS"}))
	require.NoError(t, l.Handle(context.Background(), model.PaymentEvent{Ref: "PAY-5", Status: "SUCCESS"}))

	assert.True(t, goals.amounts[42].Equal(dec(t, "5000")), "goal must be credited exactly once")
	assert.Len(t, sched.refs, 2, "fulfillment polls scheduled once per ref")
	assert.Len(t, sink.events, 1)
}

func TestPaymentListener_ProviderSaysPendingDespiteEvent(t *testing.T) {
	payments, orders, goals := paymentFixture(t)
	client := &stubPaymentClient{status: provider.PaymentStatusPending}
	sched := &recordingScheduler{}
	sink := &recordingSink{}

	l := NewPaymentListener(payments, orders, goals, client, sched, sink)
	// Event claims success; the provider disagrees and wins.
	require.NoError(t, l.Handle(context.Background(), model.PaymentEvent{Ref: "PAY-5", Status: "SUCCESS"}))

	assert.Equal(t, model.PaymentStatusSubmitted, payments.buyStatus(5))
	assert.Empty(t, sched.refs)
	assert.Empty(t, sink.events)
}

func TestPaymentListener_FailureMarksBuyFailed(t *testing.T) {
	payments, orders, goals := paymentFixture(t)
	client := &stubPaymentClient{status: provider.PaymentStatusFailure}

	l := NewPaymentListener(payments, orders, goals, client, &recordingScheduler{}, &recordingSink{})
	require.NoError(t, l.Handle(context.Background(), model.PaymentEvent{Ref: "PAY-5", Status: "FAILURE"}))

	assert.Equal(t, model.PaymentStatusFailed, payments.buyStatus(5))
	assert.True(t, goals.amounts[42].IsZero())
}

func TestPaymentListener_ProviderErrorLeavesEventPending(t *testing.T) {
	payments, orders, goals := paymentFixture(t)
	client := &stubPaymentClient{err: assert.AnError}

	l := NewPaymentListener(payments, orders, goals, client, &recordingScheduler{}, &recordingSink{})
	require.Error(t, l.Handle(context.Background(), model.PaymentEvent{Ref: "PAY-5", Status: "SUCCESS"}))
	assert.Equal(t, model.PaymentStatusSubmitted, payments.buyStatus(5))
}
