package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	return decimal.RequireFromString(s)
}

func TestPaymentRepository_GuardedStatusUpdates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPaymentRepository(db.DB)
	ctx := context.Background()

	p, err := repo.Create(ctx, &model.Payment{
		UserID:    7,
		Ref:       "PAY-1",
		BuyStatus: model.PaymentStatusSubmitted,
		SipStatus: model.PaymentStatusPending,
		Amount:    dec(t, "5000"),
	})
	require.NoError(t, err)

	require.NoError(t, repo.SetBuyStatus(ctx, p.ID, model.PaymentStatusSubmitted, model.PaymentStatusCompleted))

	// The same transition again matches nothing.
	err = repo.SetBuyStatus(ctx, p.ID, model.PaymentStatusSubmitted, model.PaymentStatusCompleted)
	assert.ErrorIs(t, err, ErrStaleStatus)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCompleted, got.BuyStatus)
	assert.Equal(t, model.PaymentStatusPending, got.SipStatus, "buy axis must not touch the sip axis")

	// Sip axis moves independently.
	err = repo.SetSipStatus(ctx, p.ID, model.PaymentStatusSubmitted, model.PaymentStatusActive)
	assert.ErrorIs(t, err, ErrStaleStatus)
	require.NoError(t, repo.SetSipStatus(ctx, p.ID, model.PaymentStatusPending, model.PaymentStatusSubmitted))
}

func TestPaymentRepository_ListUnresolved(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPaymentRepository(db.DB)
	ctx := context.Background()

	mandate := "MND-1"
	_, err := repo.Create(ctx, &model.Payment{UserID: 1, Ref: "PAY-1", BuyStatus: model.PaymentStatusSubmitted, SipStatus: model.PaymentStatusPending, Amount: dec(t, "100")})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &model.Payment{UserID: 1, Ref: "PAY-2", MandateID: &mandate, BuyStatus: model.PaymentStatusCompleted, SipStatus: model.PaymentStatusSubmitted, Amount: dec(t, "200")})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &model.Payment{UserID: 1, Ref: "PAY-3", BuyStatus: model.PaymentStatusCompleted, SipStatus: model.PaymentStatusActive, Amount: dec(t, "300")})
	require.NoError(t, err)

	unresolved, err := repo.ListUnresolved(ctx)
	require.NoError(t, err)
	require.Len(t, unresolved, 2)
	assert.Equal(t, "PAY-1", unresolved[0].Ref)
	assert.Equal(t, "PAY-2", unresolved[1].Ref)
}

func TestPaymentRepository_ListActiveSipWithUnplacedOrders(t *testing.T) {
	db := setupTestDB(t)
	payments := NewPaymentRepository(db.DB)
	orders := NewOrderRepository(db.DB)
	ctx := context.Background()

	mk := func(ref string, sip model.PaymentStatus, orderStatus model.OrderStatus) *model.Payment {
		t.Helper()
		p, err := payments.Create(ctx, &model.Payment{
			UserID: 1, Ref: ref,
			BuyStatus: model.PaymentStatusCompleted, SipStatus: sip,
			Amount: dec(t, "100"),
		})
		require.NoError(t, err)
		_, err = orders.Create(ctx, &model.Order{
			UserID: 1, PaymentID: p.ID, Kind: model.OrderKindSip,
			Status: orderStatus, Amount: dec(t, "100"),
		})
		require.NoError(t, err)
		return p
	}

	stranded := mk("PAY-1", model.PaymentStatusActive, model.OrderStatusCreated)
	mk("PAY-2", model.PaymentStatusActive, model.OrderStatusPlaced)
	mk("PAY-3", model.PaymentStatusSubmitted, model.OrderStatusCreated)

	got, err := payments.ListActiveSipWithUnplacedOrders(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1, "only the active axis with an unplaced order qualifies")
	assert.Equal(t, stranded.Ref, got[0].Ref)
}

func TestOrderRepository_ItemQueries(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrderRepository(db.DB)
	ctx := context.Background()

	order, err := repo.Create(ctx, &model.Order{
		UserID: 7, PaymentID: 5, Kind: model.OrderKindBuy,
		Status: model.OrderStatusPlaced, Amount: dec(t, "3000"),
	})
	require.NoError(t, err)

	for i, fund := range []int64{101, 102} {
		_, err = repo.CreateItem(ctx, &model.OrderItem{
			OrderID: order.ID,
			FundID:  fund,
			Amount:  dec(t, "1500"),
			Ref:     "ORD-A",
			Status:  model.OrderItemStatusCreated,
		})
		require.NoError(t, err, "item %d", i)
	}

	items, err := repo.ItemsByRef(ctx, "ORD-A")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(101), items[0].FundID, "items come back in id order")

	byOrder, err := repo.ItemsByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, byOrder, 2)

	refs, err := repo.ItemRefsByPayment(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"ORD-A"}, refs, "shared refs collapse to one entry")
}

func TestOrderRepository_ListItemsAwaitingFulfillment(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrderRepository(db.DB)
	ctx := context.Background()

	mkOrder := func(status model.OrderStatus) *model.Order {
		t.Helper()
		o, err := repo.Create(ctx, &model.Order{
			UserID: 7, PaymentID: 5, Kind: model.OrderKindSip,
			Status: status, Amount: dec(t, "1000"),
		})
		require.NoError(t, err)
		return o
	}
	mkItem := func(orderID int64, ref string, status model.OrderItemStatus, units *decimal.Decimal) {
		t.Helper()
		_, err := repo.CreateItem(ctx, &model.OrderItem{
			OrderID: orderID, FundID: 101, Amount: dec(t, "1000"),
			Ref: ref, Status: status, Units: units,
		})
		require.NoError(t, err)
	}

	placed := mkOrder(model.OrderStatusPlaced)
	mkItem(placed.ID, "ORD-A", model.OrderItemStatusCreated, nil)
	mkItem(placed.ID, "ORD-B", model.OrderItemStatusSubmitted, nil)

	// Never handed to the provider; placement recovery owns this one.
	unplaced := mkOrder(model.OrderStatusCreated)
	mkItem(unplaced.ID, "ORD-C", model.OrderItemStatusCreated, nil)

	// Fill already landed.
	filled := dec(t, "20")
	done := mkOrder(model.OrderStatusCompleted)
	mkItem(done.ID, "ORD-D", model.OrderItemStatusCompleted, &filled)

	items, err := repo.ListItemsAwaitingFulfillment(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "ORD-A", items[0].Ref)
	assert.Equal(t, placed.ID, items[0].OrderID)
	assert.Equal(t, "ORD-B", items[1].Ref)
}

func TestOrderRepository_UpdateItemFulfillmentIsWriteOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrderRepository(db.DB)
	ctx := context.Background()

	item, err := repo.CreateItem(ctx, &model.OrderItem{
		OrderID: 1, FundID: 101, Amount: dec(t, "1000"),
		Ref: "ORD-A", Status: model.OrderItemStatusCreated,
	})
	require.NoError(t, err)

	price := dec(t, "50")
	require.NoError(t, repo.UpdateItemFulfillment(ctx, item.ID, dec(t, "20"), &price, model.OrderItemStatusCompleted))

	// A repeated poll carrying different numbers must not overwrite.
	other := dec(t, "99")
	require.NoError(t, repo.UpdateItemFulfillment(ctx, item.ID, dec(t, "1"), &other, model.OrderItemStatusCompleted))

	items, err := repo.ItemsByRef(ctx, "ORD-A")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Units)
	assert.True(t, items[0].Units.Equal(dec(t, "20")), "units stay at the first write, got %s", items[0].Units)

	require.NoError(t, repo.AdvanceItemCursor(ctx, item.ID, "T-9"))
	items, err = repo.ItemsByRef(ctx, "ORD-A")
	require.NoError(t, err)
	require.NotNil(t, items[0].LastProcessedTxnRef)
	assert.Equal(t, "T-9", *items[0].LastProcessedTxnRef)
}

func TestGoalRepository_PromoteStatusIsGuarded(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGoalRepository(db.DB)
	ctx := context.Background()

	g, err := repo.Create(ctx, &model.Goal{
		UserID: 7, Name: "retirement",
		TargetAmount:  dec(t, "100000"),
		CurrentAmount: decimal.Zero,
		Status:        model.GoalStatusPaymentPending,
	})
	require.NoError(t, err)

	require.NoError(t, repo.PromoteStatus(ctx, g.ID, model.GoalStatusPaymentPending, model.GoalStatusActive))
	err = repo.PromoteStatus(ctx, g.ID, model.GoalStatusPaymentPending, model.GoalStatusActive)
	assert.ErrorIs(t, err, ErrStaleStatus)

	require.NoError(t, repo.IncrementCurrentAmount(ctx, g.ID, dec(t, "2500")))
	require.NoError(t, repo.IncrementCurrentAmount(ctx, g.ID, dec(t, "1500")))

	got, err := repo.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentAmount.Equal(dec(t, "4000")), "got %s", got.CurrentAmount)

	require.NoError(t, repo.SetCurrentAmount(ctx, g.ID, dec(t, "999")))
	got, err = repo.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentAmount.Equal(dec(t, "999")))
}

func TestTransactionRepository_SumCompletedAmountByGoal(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()

	goalID := int64(42)
	mk := func(units, amount string, status model.TransactionStatus) {
		t.Helper()
		_, err := repo.Create(ctx, &model.Transaction{
			UserID: 7, FundID: 1, GoalID: &goalID,
			Type:      model.TransactionTypeBuy,
			Units:     dec(t, units),
			UnitPrice: dec(t, "1"),
			Amount:    dec(t, amount),
			Status:    status,
		})
		require.NoError(t, err)
	}

	mk("100", "100", model.TransactionStatusCompleted)
	mk("200", "200", model.TransactionStatusCompleted)
	mk("-50", "50", model.TransactionStatusCompleted)
	mk("999", "999", model.TransactionStatusFailed)

	sum, err := repo.SumCompletedAmountByGoal(ctx, goalID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(dec(t, "250")), "disposals subtract, non-completed rows are ignored, got %s", sum)
}

func TestTransactionRepository_ListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, &model.Transaction{
			UserID: 7, FundID: int64(100 + i),
			Type:       model.TransactionTypeBuy,
			Units:      dec(t, "10"),
			UnitPrice:  dec(t, "5"),
			Amount:     dec(t, "50"),
			Status:     model.TransactionStatusCompleted,
			ExecutedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	userID := int64(7)
	items, total, err := repo.List(ctx, model.TransactionFilter{UserID: &userID, Desc: true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 3)
	assert.Equal(t, int64(102), items[0].FundID, "desc order surfaces the latest execution first")

	from := base.Add(30 * time.Minute)
	to := base.Add(90 * time.Minute)
	items, total, err = repo.List(ctx, model.TransactionFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, int64(101), items[0].FundID)
}

func TestJobHistoryRepository_TruncatesErrorText(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJobHistoryRepository(db.DB)
	ctx := context.Background()

	now := time.Now()
	created, err := repo.Create(ctx, &model.JobHistory{
		JobKey:     "order:poll:ORD-1",
		JobName:    "order-fulfillment",
		Trigger:    "interval",
		StartedAt:  now,
		FinishedAt: now,
		Status:     model.JobRunStatusFailed,
		Error:      strings.Repeat("x", model.MaxJobErrorLen+500),
	})
	require.NoError(t, err)
	assert.Len(t, created.Error, model.MaxJobErrorLen)

	key := "order:poll:ORD-1"
	items, total, err := repo.List(ctx, model.JobHistoryFilter{JobKey: &key})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, model.JobRunStatusFailed, items[0].Status)
}

func TestOutboxRepository_DispatchLifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOutboxRepository(db.DB)
	ctx := context.Background()

	first, err := repo.Append(ctx, "goal.sync", []byte(`{"goal_id":42}`))
	require.NoError(t, err)
	_, err = repo.Append(ctx, "payment.status", []byte(`{"ref":"PAY-1"}`))
	require.NoError(t, err)

	rows, err := repo.FetchUndispatched(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, repo.MarkDispatched(ctx, first.ID))

	rows, err = repo.FetchUndispatched(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "payment.status", rows[0].EventType)
}

func TestFolioRepository_UniquePerUserFund(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFolioRepository(db.DB)
	ctx := context.Background()

	_, err := repo.Create(ctx, &model.Folio{UserID: 1, FundID: 2, FolioRef: "FOLIO-1"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &model.Folio{UserID: 1, FundID: 2, FolioRef: "FOLIO-2"})
	require.Error(t, err, "second create for the same (user, fund) must violate the unique index")

	got, err := repo.GetByUserFund(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "FOLIO-1", got.FolioRef)

	_, err = repo.GetByUserFund(ctx, 9, 9)
	assert.ErrorIs(t, err, ErrNotFound)
}
