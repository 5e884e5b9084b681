package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/avyukt/invest-gateway/internal/ledger"
	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/internal/provider"
	"github.com/avyukt/invest-gateway/internal/repository"
	"github.com/avyukt/invest-gateway/internal/scheduler"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fakeSched records scheduling calls and lets tests fire a task's Run
// directly, so job logic is tested without timers.
type fakeSched struct {
	mu        sync.Mutex
	tasks     map[string]scheduler.Task
	cancelled []string
	deferred  map[string][]time.Duration
}

func newFakeSched() *fakeSched {
	return &fakeSched{
		tasks:    make(map[string]scheduler.Task),
		deferred: make(map[string][]time.Duration),
	}
}

func (f *fakeSched) Schedule(task scheduler.Task, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[task.Key]; ok {
		return
	}
	f.tasks[task.Key] = task
}

func (f *fakeSched) Reschedule(key string, delay time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tasks[key]
	return ok
}

func (f *fakeSched) Defer(key string, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deferred[key] = append(f.deferred[key], delay)
}

func (f *fakeSched) Cancel(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, key)
	f.cancelled = append(f.cancelled, key)
}

func (f *fakeSched) Exists(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tasks[key]
	return ok
}

func (f *fakeSched) runNow(t *testing.T, key string) error {
	t.Helper()
	f.mu.Lock()
	task, ok := f.tasks[key]
	f.mu.Unlock()
	require.True(t, ok, "task %s not scheduled", key)
	return task.Run(context.Background(), task.Params)
}

// fakeOrderStore is an in-memory OrderStore with the same fulfillment
// guard as the real repository (units written at most once).
type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[int64]*model.Order
	items  map[int64]*model.OrderItem
	nextID int64
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders: make(map[int64]*model.Order),
		items:  make(map[int64]*model.OrderItem),
		nextID: 1,
	}
}

func (s *fakeOrderStore) addOrder(o *model.Order) *model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.nextID
		s.nextID++
	}
	s.orders[o.ID] = o
	return o
}

func (s *fakeOrderStore) addItem(i *model.OrderItem) *model.OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i.ID == 0 {
		i.ID = s.nextID
		s.nextID++
	}
	s.items[i.ID] = i
	return i
}

func (s *fakeOrderStore) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *fakeOrderStore) ItemsByRef(ctx context.Context, ref string) ([]*model.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.OrderItem
	for id := int64(0); id < s.nextID; id++ {
		if it, ok := s.items[id]; ok && it.Ref == ref {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeOrderStore) CreateItem(ctx context.Context, item *model.OrderItem) (*model.OrderItem, error) {
	return s.addItem(item), nil
}

func (s *fakeOrderStore) UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok {
		o.Status = status
	}
	return nil
}

func (s *fakeOrderStore) UpdateItemFulfillment(ctx context.Context, itemID int64, units decimal.Decimal, unitPrice *decimal.Decimal, status model.OrderItemStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[itemID]
	if !ok || it.Units != nil {
		return nil
	}
	it.Units = &units
	it.UnitPrice = unitPrice
	it.Status = status
	return nil
}

func (s *fakeOrderStore) UpdateItemStatus(ctx context.Context, itemID int64, status model.OrderItemStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.items[itemID]; ok {
		it.Status = status
	}
	return nil
}

func (s *fakeOrderStore) AdvanceItemCursor(ctx context.Context, itemID int64, txnRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.items[itemID]; ok {
		it.LastProcessedTxnRef = &txnRef
	}
	return nil
}

func (s *fakeOrderStore) item(id int64) *model.OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.items[id]
	return &cp
}

func (s *fakeOrderStore) order(id int64) *model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.orders[id]
	return &cp
}

// fakeLedger mirrors the writer's idempotency keys without a database.
type fakeLedger struct {
	mu       sync.Mutex
	bySource map[int64]ledger.Fill
	byTxn    map[string]ledger.Fill
	settled  map[int64]model.TransactionStatus
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		bySource: make(map[int64]ledger.Fill),
		byTxn:    make(map[string]ledger.Fill),
		settled:  make(map[int64]model.TransactionStatus),
	}
}

func (l *fakeLedger) Record(ctx context.Context, order *model.Order, item *model.OrderItem, fill ledger.Fill) (*model.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.bySource[item.ID]; ok {
		return nil, nil
	}
	l.bySource[item.ID] = fill
	return &model.Transaction{}, nil
}

func (l *fakeLedger) RecordResync(ctx context.Context, order *model.Order, item *model.OrderItem, fill ledger.Fill) (*model.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byTxn[*fill.ProviderTxnID]; ok {
		return nil, nil
	}
	l.byTxn[*fill.ProviderTxnID] = fill
	return &model.Transaction{}, nil
}

func (l *fakeLedger) Settle(ctx context.Context, itemID int64, status model.TransactionStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.bySource[itemID]; !ok {
		return repository.ErrNotFound
	}
	l.settled[itemID] = status
	return nil
}

// fakeOrderClient serves one canned OrderDetails per ref.
type fakeOrderClient struct {
	mu      sync.Mutex
	details map[string]*provider.OrderDetails
	err     error
}

func (c *fakeOrderClient) FetchOrderDetails(ctx context.Context, ref string) (*provider.OrderDetails, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	d, ok := c.details[ref]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return d, nil
}

func (c *fakeOrderClient) set(ref string, d *provider.OrderDetails) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.details == nil {
		c.details = make(map[string]*provider.OrderDetails)
	}
	c.details[ref] = d
}

// fakeEvents captures published events.
type fakeEvents struct {
	mu       sync.Mutex
	payments []model.PaymentEvent
	mandates []model.MandateProcessEvent
}

func (e *fakeEvents) Payment(ctx context.Context, ev model.PaymentEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.payments = append(e.payments, ev)
	return nil
}

func (e *fakeEvents) MandateProcess(ctx context.Context, ev model.MandateProcessEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mandates = append(e.mandates, ev)
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
