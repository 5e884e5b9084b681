package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/internal/outbox"
	"github.com/avyukt/invest-gateway/internal/repository"
	"github.com/avyukt/invest-gateway/pkg/pg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type writerFixture struct {
	db     *pg.DB
	writer *Writer
	txns   *repository.TransactionRepository
	folios *repository.FolioRepository
	outbox *repository.OutboxRepository
}

func newWriterFixture(t *testing.T) *writerFixture {
	t.Helper()
	db := repository.NewTestDB(t)
	txns := repository.NewTransactionRepository(db)
	folios := repository.NewFolioRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	appender := outbox.NewAppender(outboxRepo)
	registry := NewFolioRegistry(folios)

	return &writerFixture{
		db:     db,
		writer: NewWriter(db, txns, registry, appender),
		txns:   txns,
		folios: folios,
		outbox: outboxRepo,
	}
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	return decimal.RequireFromString(s)
}

func decPtr(t *testing.T, s string) *decimal.Decimal {
	t.Helper()
	d := decimal.RequireFromString(s)
	return &d
}

func buyFixture(t *testing.T) (*model.Order, *model.OrderItem) {
	goalID := int64(42)
	order := &model.Order{
		ID:        10,
		UserID:    7,
		PaymentID: 5,
		GoalID:    &goalID,
		Kind:      model.OrderKindBuy,
		Status:    model.OrderStatusPlaced,
		Amount:    dec(t, "5000"),
	}
	item := &model.OrderItem{
		ID:       100,
		OrderID:  10,
		FundID:   55,
		FundName: "Index Fund",
		Amount:   dec(t, "5000"),
		Ref:      "ORD-A",
		Status:   model.OrderItemStatusCompleted,
	}
	return order, item
}

func TestWriter_RecordCreatesLedgerRowAndFolio(t *testing.T) {
	f := newWriterFixture(t)
	order, item := buyFixture(t)
	ctx := context.Background()

	executed := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	txn, err := f.writer.Record(ctx, order, item, Fill{
		Units:      dec(t, "100.0000"),
		UnitPrice:  decPtr(t, "50"),
		Status:     model.TransactionStatusCompleted,
		ExecutedAt: &executed,
		FolioRef:   "FOLIO-1",
	})
	require.NoError(t, err)
	require.NotNil(t, txn)

	assert.Equal(t, model.TransactionTypeBuy, txn.Type)
	assert.True(t, txn.Amount.Equal(dec(t, "5000")), "amount = units * price, got %s", txn.Amount)
	require.NotNil(t, txn.SourceOrderItemID)
	assert.Equal(t, item.ID, *txn.SourceOrderItemID)
	assert.Equal(t, executed, txn.ExecutedAt.UTC())

	folio, err := f.folios.GetByUserFund(ctx, 7, 55)
	require.NoError(t, err, "first fill must create the folio")
	assert.Equal(t, "FOLIO-1", folio.FolioRef)
	require.NotNil(t, txn.FolioID)
	assert.Equal(t, folio.ID, *txn.FolioID)

	rows, err := f.outbox.FetchUndispatched(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2, "goal sync and confirmation events are queued")
	types := []string{rows[0].EventType, rows[1].EventType}
	assert.Contains(t, types, model.EventTypeGoalSync)
	assert.Contains(t, types, model.EventTypeTransactionSuccess)
}

func TestWriter_RecordIsIdempotentPerItem(t *testing.T) {
	f := newWriterFixture(t)
	order, item := buyFixture(t)
	ctx := context.Background()

	fill := Fill{
		Units:     dec(t, "100"),
		UnitPrice: decPtr(t, "50"),
		Status:    model.TransactionStatusCompleted,
		FolioRef:  "FOLIO-1",
	}
	first, err := f.writer.Record(ctx, order, item, fill)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := f.writer.Record(ctx, order, item, fill)
	require.NoError(t, err)
	assert.Nil(t, second, "repeated record is a silent no-op")

	exists, err := f.txns.ExistsBySourceItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	rows, err := f.outbox.FetchUndispatched(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "the duplicate attempt must not queue more events")
}

func TestWriter_MissingPriceDefersWrite(t *testing.T) {
	f := newWriterFixture(t)
	order, item := buyFixture(t)
	ctx := context.Background()

	txn, err := f.writer.Record(ctx, order, item, Fill{
		Units:    dec(t, "100"),
		Status:   model.TransactionStatusCompleted,
		FolioRef: "FOLIO-1",
	})
	require.NoError(t, err)
	assert.Nil(t, txn)

	exists, err := f.txns.ExistsBySourceItem(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, exists, "no row without a price")

	rows, err := f.outbox.FetchUndispatched(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWriter_SellAmountIsAbsolute(t *testing.T) {
	f := newWriterFixture(t)
	order, item := buyFixture(t)
	order.Kind = model.OrderKindSell
	ctx := context.Background()

	txn, err := f.writer.Record(ctx, order, item, Fill{
		Units:     dec(t, "-25"),
		UnitPrice: decPtr(t, "40"),
		Status:    model.TransactionStatusCompleted,
		FolioRef:  "FOLIO-1",
	})
	require.NoError(t, err)
	require.NotNil(t, txn)

	assert.Equal(t, model.TransactionTypeSell, txn.Type)
	assert.True(t, txn.Units.IsNegative(), "disposal keeps signed units")
	assert.True(t, txn.Amount.Equal(dec(t, "1000")), "amount is unsigned, got %s", txn.Amount)
}

func TestWriter_RecordResyncKeyedByProviderTxn(t *testing.T) {
	f := newWriterFixture(t)
	order, item := buyFixture(t)
	order.Kind = model.OrderKindSip
	ctx := context.Background()

	txnRef1 := "T-1"
	first, err := f.writer.RecordResync(ctx, order, item, Fill{
		Units:         dec(t, "10"),
		UnitPrice:     decPtr(t, "50"),
		Status:        model.TransactionStatusCompleted,
		FolioRef:      "FOLIO-1",
		ProviderTxnID: &txnRef1,
	})
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Nil(t, first.SourceOrderItemID, "re-sync rows are not keyed by item")

	// A second installment under the same item is a fresh row.
	txnRef2 := "T-2"
	second, err := f.writer.RecordResync(ctx, order, item, Fill{
		Units:         dec(t, "12"),
		UnitPrice:     decPtr(t, "51"),
		Status:        model.TransactionStatusCompleted,
		FolioRef:      "FOLIO-1",
		ProviderTxnID: &txnRef2,
	})
	require.NoError(t, err)
	require.NotNil(t, second)

	// Replaying an installment is a no-op.
	dup, err := f.writer.RecordResync(ctx, order, item, Fill{
		Units:         dec(t, "10"),
		UnitPrice:     decPtr(t, "50"),
		Status:        model.TransactionStatusCompleted,
		FolioRef:      "FOLIO-1",
		ProviderTxnID: &txnRef1,
	})
	require.NoError(t, err)
	assert.Nil(t, dup)

	exists, err := f.txns.ExistsByProviderTxn(ctx, "T-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestWriter_RecordResyncRequiresProviderTxn(t *testing.T) {
	f := newWriterFixture(t)
	order, item := buyFixture(t)

	_, err := f.writer.RecordResync(context.Background(), order, item, Fill{
		Units:     dec(t, "10"),
		UnitPrice: decPtr(t, "50"),
		Status:    model.TransactionStatusCompleted,
	})
	require.Error(t, err)
}

func TestWriter_SettleMovesExistingRow(t *testing.T) {
	f := newWriterFixture(t)
	order, item := buyFixture(t)
	ctx := context.Background()

	_, err := f.writer.Record(ctx, order, item, Fill{
		Units:     dec(t, "100"),
		UnitPrice: decPtr(t, "50"),
		Status:    model.TransactionStatusCompleted,
		FolioRef:  "FOLIO-1",
	})
	require.NoError(t, err)

	require.NoError(t, f.writer.Settle(ctx, item.ID, model.TransactionStatusRefunded))

	txn, err := f.txns.GetBySourceItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusRefunded, txn.Status)

	// Settling again at the same status is a no-op.
	require.NoError(t, f.writer.Settle(ctx, item.ID, model.TransactionStatusRefunded))
}

func TestWriter_SettleUnknownItem(t *testing.T) {
	f := newWriterFixture(t)
	err := f.writer.Settle(context.Background(), 999, model.TransactionStatusRefunded)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFolioRegistry_Resolve(t *testing.T) {
	db := repository.NewTestDB(t)
	folios := repository.NewFolioRepository(db)
	registry := NewFolioRegistry(folios)
	ctx := context.Background()

	t.Run("no ref and no folio resolves to nil", func(t *testing.T) {
		folio, err := registry.Resolve(ctx, 1, 2, "")
		require.NoError(t, err)
		assert.Nil(t, folio)
	})

	t.Run("first ref creates the folio", func(t *testing.T) {
		folio, err := registry.Resolve(ctx, 1, 2, "FOLIO-X")
		require.NoError(t, err)
		require.NotNil(t, folio)
		assert.Equal(t, "FOLIO-X", folio.FolioRef)
	})

	t.Run("later refs reuse the original", func(t *testing.T) {
		folio, err := registry.Resolve(ctx, 1, 2, "FOLIO-Y")
		require.NoError(t, err)
		require.NotNil(t, folio)
		assert.Equal(t, "FOLIO-X", folio.FolioRef, "a later divergent ref must not replace the folio")
	})
}
