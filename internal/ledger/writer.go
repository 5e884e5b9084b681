package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/avyukt/invest-gateway/internal/distribution"
	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/internal/outbox"
	"github.com/avyukt/invest-gateway/pkg/logger"
	"github.com/avyukt/invest-gateway/pkg/pg"
	"github.com/avyukt/invest-gateway/pkg/prom"
	"github.com/shopspring/decimal"
)

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	ExistsBySourceItem(ctx context.Context, itemID int64) (bool, error)
	ExistsByProviderTxn(ctx context.Context, providerTxnID string) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status model.TransactionStatus) error
	GetBySourceItem(ctx context.Context, itemID int64) (*model.Transaction, error)
}

// Fill carries the settlement details for one line item's ledger write.
type Fill struct {
	Units         decimal.Decimal
	UnitPrice     *decimal.Decimal
	Status        model.TransactionStatus
	ExecutedAt    *time.Time
	FolioRef      string
	ProviderTxnID *string
}

// Writer converts fulfilled line items into immutable ledger rows.
// Idempotent on SourceOrderItemID and, when present, ProviderTxnID: no
// matter how many times a poller re-runs, at most one row exists per key.
type Writer struct {
	db       *pg.DB
	txns     TransactionRepository
	folios   *FolioRegistry
	appender *outbox.Appender
}

func NewWriter(db *pg.DB, txns TransactionRepository, folios *FolioRegistry, appender *outbox.Appender) *Writer {
	return &Writer{
		db:       db,
		txns:     txns,
		folios:   folios,
		appender: appender,
	}
}

func transactionType(kind model.OrderKind) model.TransactionType {
	switch kind {
	case model.OrderKindSip:
		return model.TransactionTypeSip
	case model.OrderKindSell:
		return model.TransactionTypeSell
	default:
		return model.TransactionTypeBuy
	}
}

// Record writes one ledger row for (order, item). A row that already
// exists for the item (or the provider transaction) makes this a silent
// no-op returning the existing row id semantics: (nil, nil).
func (w *Writer) Record(ctx context.Context, order *model.Order, item *model.OrderItem, fill Fill) (*model.Transaction, error) {
	exists, err := w.txns.ExistsBySourceItem(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		logger.Debug("ledger row already present for item, skipping", "item_id", item.ID)
		return nil, nil
	}

	if fill.ProviderTxnID != nil {
		exists, err = w.txns.ExistsByProviderTxn(ctx, *fill.ProviderTxnID)
		if err != nil {
			return nil, err
		}
		if exists {
			logger.Debug("ledger row already present for provider txn, skipping", "provider_txn_id", *fill.ProviderTxnID)
			return nil, nil
		}
	}

	itemID := item.ID
	return w.persist(ctx, order, item, fill, &itemID)
}

// RecordResync writes one provider-reported transaction keyed only by
// ProviderTxnID. SIP and redeem trackers accrete many rows per line item,
// so the source-item uniqueness of Record does not apply here.
func (w *Writer) RecordResync(ctx context.Context, order *model.Order, item *model.OrderItem, fill Fill) (*model.Transaction, error) {
	if fill.ProviderTxnID == nil || *fill.ProviderTxnID == "" {
		return nil, errors.New("provider txn id is required for a re-sync write")
	}

	exists, err := w.txns.ExistsByProviderTxn(ctx, *fill.ProviderTxnID)
	if err != nil {
		return nil, err
	}
	if exists {
		logger.Debug("ledger row already present for provider txn, skipping", "provider_txn_id", *fill.ProviderTxnID)
		return nil, nil
	}

	return w.persist(ctx, order, item, fill, nil)
}

func (w *Writer) persist(ctx context.Context, order *model.Order, item *model.OrderItem, fill Fill, sourceItemID *int64) (*model.Transaction, error) {
	if fill.UnitPrice == nil || fill.UnitPrice.IsZero() {
		// A zero price must never be recorded silently; leave the item for
		// the next poll tick, when the provider may report a price.
		logger.Warn("unit price missing for fill, deferring ledger write", "item_id", item.ID, "ref", item.Ref)
		return nil, nil
	}

	amount := fill.Units.Mul(*fill.UnitPrice).Abs().Round(distribution.UnitScale)

	executedAt := time.Now()
	if fill.ExecutedAt != nil {
		executedAt = *fill.ExecutedAt
	}

	txn := &model.Transaction{
		UserID:            order.UserID,
		FundID:            item.FundID,
		FundName:          item.FundName,
		GoalID:            order.GoalID,
		Type:              transactionType(order.Kind),
		Units:             fill.Units,
		UnitPrice:         *fill.UnitPrice,
		Amount:            amount,
		ExternalRef:       item.Ref,
		ProviderTxnID:     fill.ProviderTxnID,
		SourceOrderItemID: sourceItemID,
		Status:            fill.Status,
		ExecutedAt:        executedAt,
	}

	// Folio resolution stays outside the ledger transaction: its
	// lost-race recovery re-reads the winner's row, which a rolled-back
	// enclosing transaction would hide.
	folio, err := w.folios.Resolve(ctx, order.UserID, item.FundID, fill.FolioRef)
	if err != nil {
		return nil, err
	}
	if folio != nil {
		txn.FolioID = &folio.ID
	}

	var created *model.Transaction
	err = w.db.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		created, err = w.txns.Create(ctx, txn)
		if err != nil {
			return err
		}

		if order.GoalID != nil {
			if err := w.appender.GoalSync(ctx, model.GoalSyncEvent{GoalID: *order.GoalID, UserID: order.UserID}); err != nil {
				return err
			}
		} else {
			// Data-quality signal, not an error: the ledger row stands.
			logger.Warn("transaction recorded without a goal", "item_id", item.ID, "user_id", order.UserID)
		}

		return w.appender.TransactionSuccess(ctx, model.TransactionSuccessEvent{
			UserID:   order.UserID,
			FundName: item.FundName,
			Amount:   amount,
			Type:     txn.Type,
		})
	})
	if err != nil {
		return nil, err
	}

	prom.IncLedgerTransaction(string(created.Type))
	logger.Info("ledger row created",
		"txn_id", created.ID,
		"item_id", item.ID,
		"units", fill.Units,
		"unit_price", *fill.UnitPrice,
		"amount", amount,
		"status", fill.Status)

	return created, nil
}

// Settle moves an existing row for the item to a terminal status, used
// when the provider resolves a previously in-progress fill.
func (w *Writer) Settle(ctx context.Context, itemID int64, status model.TransactionStatus) error {
	txn, err := w.txns.GetBySourceItem(ctx, itemID)
	if err != nil {
		return err
	}
	if txn.Status == status {
		return nil
	}
	return w.txns.UpdateStatus(ctx, txn.ID, status)
}
