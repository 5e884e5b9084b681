package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/internal/provider"
	"github.com/avyukt/invest-gateway/internal/repository"
	"github.com/shopspring/decimal"
)

// fakePayments applies the same guarded-update semantics as the real
// repository so idempotency races are observable in tests.
type fakePayments struct {
	mu       sync.Mutex
	payments map[int64]*model.Payment
}

func newFakePayments(ps ...*model.Payment) *fakePayments {
	f := &fakePayments{payments: make(map[int64]*model.Payment)}
	for _, p := range ps {
		f.payments[p.ID] = p
	}
	return f
}

func (f *fakePayments) GetByID(ctx context.Context, id int64) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePayments) GetByRef(ctx context.Context, ref string) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.Ref == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakePayments) SetBuyStatus(ctx context.Context, id int64, from, to model.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok || p.BuyStatus != from {
		return repository.ErrStaleStatus
	}
	p.BuyStatus = to
	return nil
}

func (f *fakePayments) SetSipStatus(ctx context.Context, id int64, from, to model.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok || p.SipStatus != from {
		return repository.ErrStaleStatus
	}
	p.SipStatus = to
	return nil
}

func (f *fakePayments) sipStatus(id int64) model.PaymentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payments[id].SipStatus
}

func (f *fakePayments) buyStatus(id int64) model.PaymentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payments[id].BuyStatus
}

type fakeOrders struct {
	mu     sync.Mutex
	orders map[int64]*model.Order
	items  map[int64][]*model.OrderItem
	refs   []string
}

func (f *fakeOrders) ListByPayment(ctx context.Context, paymentID int64, kind *model.OrderKind) ([]*model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Order
	for id := int64(0); id < 1000; id++ {
		o, ok := f.orders[id]
		if !ok || o.PaymentID != paymentID {
			continue
		}
		if kind != nil && o.Kind != *kind {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeOrders) UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		o.Status = status
	}
	return nil
}

func (f *fakeOrders) ItemRefsByPayment(ctx context.Context, paymentID int64) ([]string, error) {
	return f.refs, nil
}

func (f *fakeOrders) ItemsByOrder(ctx context.Context, orderID int64) ([]*model.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.OrderItem
	for _, it := range f.items[orderID] {
		cp := *it
		out = append(out, &cp)
	}
	return out, nil
}

type fakeGoals struct {
	mu       sync.Mutex
	amounts  map[int64]decimal.Decimal
	statuses map[int64]model.GoalStatus
}

func newFakeGoals() *fakeGoals {
	return &fakeGoals{
		amounts:  make(map[int64]decimal.Decimal),
		statuses: make(map[int64]model.GoalStatus),
	}
}

func (f *fakeGoals) IncrementCurrentAmount(ctx context.Context, id int64, delta decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.amounts[id] = f.amounts[id].Add(delta)
	return nil
}

func (f *fakeGoals) PromoteStatus(ctx context.Context, id int64, from, to model.GoalStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses[id] != from {
		return repository.ErrStaleStatus
	}
	f.statuses[id] = to
	return nil
}

type stubMandateClient struct {
	status provider.MandateStatus
	err    error
	calls  int
}

func (c *stubMandateClient) FetchMandate(ctx context.Context, id string) (*provider.Mandate, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &provider.Mandate{ID: id, Status: c.status}, nil
}

type stubPaymentClient struct {
	status provider.PaymentStatus
	err    error
}

func (c *stubPaymentClient) FetchPayment(ctx context.Context, ref string) (*provider.PaymentDetails, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &provider.PaymentDetails{Ref: ref, Status: c.status}, nil
}

type recordingPlacer struct {
	mu     sync.Mutex
	placed []int64
	err    error
}

func (p *recordingPlacer) PlaceSipOrders(ctx context.Context, payment *model.Payment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.placed = append(p.placed, payment.ID)
	return nil
}

type recordingScheduler struct {
	mu   sync.Mutex
	refs []string
}

func (s *recordingScheduler) Schedule(ref string, orderID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs = append(s.refs, ref)
}

type recordingSink struct {
	mu     sync.Mutex
	events []model.LumpSumPaymentCompletedEvent
}

func (s *recordingSink) LumpSumCompleted(ctx context.Context, ev model.LumpSumPaymentCompletedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	return decimal.RequireFromString(s)
}
