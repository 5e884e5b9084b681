package jobs

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/avyukt/invest-gateway/internal/distribution"
	"github.com/avyukt/invest-gateway/internal/ledger"
	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/internal/provider"
	"github.com/avyukt/invest-gateway/internal/repository"
	"github.com/avyukt/invest-gateway/internal/scheduler"
	"github.com/avyukt/invest-gateway/pkg/logger"
	"github.com/avyukt/invest-gateway/pkg/prom"
	"github.com/shopspring/decimal"
)

type OrderClient interface {
	FetchOrderDetails(ctx context.Context, ref string) (*provider.OrderDetails, error)
}

type OrderStore interface {
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	ItemsByRef(ctx context.Context, ref string) ([]*model.OrderItem, error)
	CreateItem(ctx context.Context, item *model.OrderItem) (*model.OrderItem, error)
	UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error
	UpdateItemFulfillment(ctx context.Context, itemID int64, units decimal.Decimal, unitPrice *decimal.Decimal, status model.OrderItemStatus) error
	UpdateItemStatus(ctx context.Context, itemID int64, status model.OrderItemStatus) error
	AdvanceItemCursor(ctx context.Context, itemID int64, txnRef string) error
}

type LedgerWriter interface {
	Record(ctx context.Context, order *model.Order, item *model.OrderItem, fill ledger.Fill) (*model.Transaction, error)
	RecordResync(ctx context.Context, order *model.Order, item *model.OrderItem, fill ledger.Fill) (*model.Transaction, error)
	Settle(ctx context.Context, itemID int64, status model.TransactionStatus) error
}

// FulfillmentPoller reconciles one provider order submission per job key.
// It polls at a fixed interval with no lifetime bound and removes its own
// schedule once the provider reports a terminal state.
type FulfillmentPoller struct {
	provider OrderClient
	orders   OrderStore
	ledger   LedgerWriter
	sched    JobControl
	interval time.Duration
}

func NewFulfillmentPoller(client OrderClient, orders OrderStore, ledgerWriter LedgerWriter, sched JobControl, interval time.Duration) *FulfillmentPoller {
	return &FulfillmentPoller{
		provider: client,
		orders:   orders,
		ledger:   ledgerWriter,
		sched:    sched,
		interval: interval,
	}
}

// Schedule registers a recurring poll for one provider order ref. A key
// already on the schedule is debounced, so re-delivered payment events do
// not spawn duplicate pollers.
func (f *FulfillmentPoller) Schedule(ref string, orderID int64) {
	f.sched.Schedule(scheduler.Task{
		Key:     OrderPollKey(ref),
		Name:    "order-fulfillment",
		Trigger: scheduler.TriggerInterval,
		Params: scheduler.Params{
			scheduler.ParamOrderRef: ref,
			scheduler.ParamOrderID:  strconv.FormatInt(orderID, 10),
		},
		Interval: f.interval,
		Run:      f.run,
	}, f.interval)
}

func (f *FulfillmentPoller) run(ctx context.Context, p scheduler.Params) error {
	ref := p[scheduler.ParamOrderRef]
	key := OrderPollKey(ref)

	details, err := f.provider.FetchOrderDetails(ctx, ref)
	if errors.Is(err, provider.ErrNotFound) {
		prom.IncPollTick("order", "not_found")
		logger.Warn("provider does not know order yet, keeping poll alive", "ref", ref)
		return nil
	}
	if err != nil {
		prom.IncPollTick("order", "error")
		return err
	}

	items, err := f.orders.ItemsByRef(ctx, ref)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		items, err = f.adoptOrphan(ctx, ref, p)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
	}

	order, err := f.orders.GetByID(ctx, items[0].OrderID)
	if err != nil {
		return err
	}

	switch details.State {
	case provider.OrderStateCreated, provider.OrderStatePending, provider.OrderStateUnderReview:
		prom.IncPollTick("order", "pending")
		return nil

	case provider.OrderStateConfirmed, provider.OrderStateSubmitted:
		prom.IncPollTick("order", "submitted")
		return f.markSubmitted(ctx, order, items)

	case provider.OrderStateSuccessful:
		prom.IncPollTick("order", "successful")
		done, err := f.fulfill(ctx, order, items, details)
		if err != nil {
			return err
		}
		if done {
			f.sched.Cancel(key)
		}
		return nil

	case provider.OrderStateFailed, provider.OrderStateCancelled:
		prom.IncPollTick("order", "failed")
		if err := f.resolve(ctx, order, items, model.OrderStatusFailed, model.OrderItemStatusFailed, model.TransactionStatusFailed); err != nil {
			return err
		}
		f.sched.Cancel(key)
		return nil

	case provider.OrderStateReversed:
		prom.IncPollTick("order", "reversed")
		if err := f.resolve(ctx, order, items, model.OrderStatusReversed, model.OrderItemStatusReversed, model.TransactionStatusRefunded); err != nil {
			return err
		}
		f.sched.Cancel(key)
		return nil
	}

	logger.Warn("unknown provider order state", "ref", ref, "state", details.State)
	return nil
}

// adoptOrphan covers out-of-band orders: the provider knows the ref but no
// line items exist locally. When the owning order id travelled in the job
// params a default full-amount item is created so the fill lands in the
// ledger; otherwise the poll stays alive and warns.
func (f *FulfillmentPoller) adoptOrphan(ctx context.Context, ref string, p scheduler.Params) ([]*model.OrderItem, error) {
	orderID, _ := strconv.ParseInt(p[scheduler.ParamOrderID], 10, 64)
	if orderID == 0 {
		logger.Warn("no line items for ref and no owning order known", "ref", ref)
		return nil, nil
	}

	order, err := f.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	item, err := f.orders.CreateItem(ctx, &model.OrderItem{
		OrderID: order.ID,
		Amount:  order.Amount,
		Ref:     ref,
		Status:  model.OrderItemStatusCreated,
	})
	if err != nil {
		return nil, err
	}

	logger.Warn("created default line item for out-of-band order", "ref", ref, "order_id", order.ID)
	return []*model.OrderItem{item}, nil
}

func (f *FulfillmentPoller) markSubmitted(ctx context.Context, order *model.Order, items []*model.OrderItem) error {
	for _, item := range items {
		if item.Status != model.OrderItemStatusCreated {
			continue
		}
		if err := f.orders.UpdateItemStatus(ctx, item.ID, model.OrderItemStatusSubmitted); err != nil {
			return err
		}
	}
	if order.Status == model.OrderStatusCreated {
		return f.orders.UpdateStatus(ctx, order.ID, model.OrderStatusPlaced)
	}
	return nil
}

// fulfill distributes the reported fill across the line items and records
// the ledger rows. done is false when the provider has not yet reported a
// usable quantity or price; the poll then stays alive and the next tick
// retries.
func (f *FulfillmentPoller) fulfill(ctx context.Context, order *model.Order, items []*model.OrderItem, details *provider.OrderDetails) (bool, error) {
	if order.Kind == model.OrderKindSip && len(details.Transactions) > 0 {
		if err := f.syncSipTransactions(ctx, order, items[0], details); err != nil {
			return false, err
		}
		if err := f.orders.UpdateItemStatus(ctx, items[0].ID, model.OrderItemStatusCompleted); err != nil {
			return false, err
		}
		return true, f.orders.UpdateStatus(ctx, order.ID, model.OrderStatusCompleted)
	}

	sell := order.Kind == model.OrderKindSell
	totalUnits := details.AllottedUnits
	totalPrice := details.PurchasedPrice
	if sell {
		totalUnits = details.RedeemedUnits
		totalPrice = details.RedeemedPrice
	}

	if totalUnits == nil || totalUnits.Sign() <= 0 {
		logger.Warn("provider reported no usable units, retrying next tick", "ref", items[0].Ref)
		return false, nil
	}
	var unitPrice *decimal.Decimal
	if totalPrice != nil {
		unitPrice = distribution.UnitPrice(*totalPrice)
	}
	if unitPrice == nil {
		logger.Warn("provider reported no purchase price, holding fill until next tick", "ref", items[0].Ref)
		return false, nil
	}

	allocs := make([]distribution.Allocation, len(items))
	for i, item := range items {
		allocs[i] = distribution.Allocation{ItemID: item.ID, Amount: item.Amount}
	}
	shares, err := distribution.Distribute(allocs, totalUnits.Abs(), sell)
	if err != nil {
		return false, err
	}

	for i, item := range items {
		if !item.Fulfilled() {
			if err := f.orders.UpdateItemFulfillment(ctx, item.ID, shares[i], unitPrice, model.OrderItemStatusCompleted); err != nil {
				return false, err
			}
			item.Units = &shares[i]
			item.UnitPrice = unitPrice
		}

		fill := ledger.Fill{
			Units:      *item.Units,
			UnitPrice:  item.UnitPrice,
			Status:     model.TransactionStatusCompleted,
			ExecutedAt: details.SubmittedAt,
			FolioRef:   details.FolioRef,
		}
		if _, err := f.ledger.Record(ctx, order, item, fill); err != nil {
			return false, err
		}
	}

	return true, f.orders.UpdateStatus(ctx, order.ID, model.OrderStatusCompleted)
}

// syncSipTransactions walks the provider's transaction list past the item's
// cursor and records each new execution, advancing the cursor per row. A
// cursor ref that fell out of the provider window replays the whole window;
// ProviderTxnID dedupe drops what the ledger already holds.
func (f *FulfillmentPoller) syncSipTransactions(ctx context.Context, order *model.Order, item *model.OrderItem, details *provider.OrderDetails) error {
	start := 0
	if item.LastProcessedTxnRef != nil {
		start = len(details.Transactions)
		found := false
		for i, t := range details.Transactions {
			if t.TxnRef == *item.LastProcessedTxnRef {
				start = i + 1
				found = true
				break
			}
		}
		if !found {
			logger.Warn("sip cursor not in provider window, replaying with dedupe",
				"ref", item.Ref, "cursor", *item.LastProcessedTxnRef)
			start = 0
		}
	}

	for _, t := range details.Transactions[start:] {
		txnRef := t.TxnRef
		price := t.UnitPrice
		executedAt := t.ExecutedAt

		fill := ledger.Fill{
			Units:         t.Units,
			UnitPrice:     &price,
			Status:        model.TransactionStatusCompleted,
			ExecutedAt:    &executedAt,
			FolioRef:      details.FolioRef,
			ProviderTxnID: &txnRef,
		}
		if _, err := f.ledger.RecordResync(ctx, order, item, fill); err != nil {
			return err
		}
		if err := f.orders.AdvanceItemCursor(ctx, item.ID, txnRef); err != nil {
			return err
		}
		item.LastProcessedTxnRef = &txnRef
	}
	return nil
}

func (f *FulfillmentPoller) resolve(ctx context.Context, order *model.Order, items []*model.OrderItem, orderStatus model.OrderStatus, itemStatus model.OrderItemStatus, txnStatus model.TransactionStatus) error {
	for _, item := range items {
		if err := f.orders.UpdateItemStatus(ctx, item.ID, itemStatus); err != nil {
			return err
		}
		if err := f.ledger.Settle(ctx, item.ID, txnStatus); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	return f.orders.UpdateStatus(ctx, order.ID, orderStatus)
}
