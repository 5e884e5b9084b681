package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/internal/provider"
	"github.com/avyukt/invest-gateway/internal/repository"
	"github.com/avyukt/invest-gateway/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePaymentStore struct {
	mu       sync.Mutex
	payments map[int64]*model.Payment
}

func (s *fakePaymentStore) GetByID(ctx context.Context, id int64) (*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type fakePaymentClient struct {
	status provider.PaymentStatus
	err    error
}

func (c *fakePaymentClient) FetchPayment(ctx context.Context, ref string) (*provider.PaymentDetails, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &provider.PaymentDetails{Ref: ref, Status: c.status}, nil
}

type fakeMandateClient struct {
	status provider.MandateStatus
	err    error
}

func (c *fakeMandateClient) FetchMandate(ctx context.Context, id string) (*provider.Mandate, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &provider.Mandate{ID: id, Status: c.status}, nil
}

func TestPollers_ParamsCarryOnlyConsumedKeys(t *testing.T) {
	mandate := "MND-9"
	store := &fakePaymentStore{payments: map[int64]*model.Payment{}}
	events := &fakeEvents{}
	sched := newFakeSched()

	NewPaymentPoller(store, &fakePaymentClient{}, events, sched, time.Second, time.Minute).Schedule(5)
	assert.Equal(t, scheduler.Params{scheduler.ParamPaymentID: "5"},
		sched.tasks[PaymentPollKey(5)].Params)

	NewMandatePoller(store, &fakeMandateClient{}, events, sched, time.Second, time.Minute).Schedule(mandate, 3)
	assert.Equal(t, scheduler.Params{
		scheduler.ParamMandateID: mandate,
		scheduler.ParamPaymentID: "3",
	}, sched.tasks[MandatePollKey(mandate)].Params)
}

func TestPaymentPoller_ResolvedPaymentPublishesEvent(t *testing.T) {
	store := &fakePaymentStore{payments: map[int64]*model.Payment{
		5: {ID: 5, Ref: "PAY-5", BuyStatus: model.PaymentStatusSubmitted},
	}}
	client := &fakePaymentClient{status: provider.PaymentStatusSuccess}
	events := &fakeEvents{}
	sched := newFakeSched()

	poller := NewPaymentPoller(store, client, events, sched, 10*time.Second, 10*time.Minute)
	poller.Schedule(5)

	task := sched.tasks[PaymentPollKey(5)]
	assert.Equal(t, 10*time.Second, task.Interval)
	assert.Equal(t, 10*time.Minute, task.Timeout)

	require.NoError(t, sched.runNow(t, PaymentPollKey(5)))
	require.Len(t, events.payments, 1)
	assert.Equal(t, "PAY-5", events.payments[0].Ref)
	assert.Equal(t, string(provider.PaymentStatusSuccess), events.payments[0].Status)
	assert.True(t, sched.Exists(PaymentPollKey(5)), "poll survives until the listener moves the status")
}

func TestPaymentPoller_PendingIsSilent(t *testing.T) {
	store := &fakePaymentStore{payments: map[int64]*model.Payment{
		5: {ID: 5, Ref: "PAY-5", BuyStatus: model.PaymentStatusSubmitted},
	}}
	client := &fakePaymentClient{status: provider.PaymentStatusPending}
	events := &fakeEvents{}
	sched := newFakeSched()

	poller := NewPaymentPoller(store, client, events, sched, 10*time.Second, 10*time.Minute)
	poller.Schedule(5)
	require.NoError(t, sched.runNow(t, PaymentPollKey(5)))

	assert.Empty(t, events.payments)
	assert.True(t, sched.Exists(PaymentPollKey(5)))
}

func TestPaymentPoller_AlreadyResolvedCancelsWithoutFetch(t *testing.T) {
	store := &fakePaymentStore{payments: map[int64]*model.Payment{
		5: {ID: 5, Ref: "PAY-5", BuyStatus: model.PaymentStatusCompleted},
	}}
	client := &fakePaymentClient{err: assert.AnError}
	events := &fakeEvents{}
	sched := newFakeSched()

	poller := NewPaymentPoller(store, client, events, sched, 10*time.Second, 10*time.Minute)
	poller.Schedule(5)
	require.NoError(t, sched.runNow(t, PaymentPollKey(5)), "resolved payment must not hit the provider")

	assert.Empty(t, events.payments)
	assert.False(t, sched.Exists(PaymentPollKey(5)))
}

func TestMandatePoller_ApprovedPublishesEvent(t *testing.T) {
	mandate := "MND-9"
	store := &fakePaymentStore{payments: map[int64]*model.Payment{
		3: {ID: 3, Ref: "PAY-3", MandateID: &mandate, SipStatus: model.PaymentStatusSubmitted},
	}}
	client := &fakeMandateClient{status: provider.MandateStatusApproved}
	events := &fakeEvents{}
	sched := newFakeSched()

	poller := NewMandatePoller(store, client, events, sched, 10*time.Second, 10*time.Minute)
	poller.Schedule(mandate, 3)
	require.NoError(t, sched.runNow(t, MandatePollKey(mandate)))

	require.Len(t, events.mandates, 1)
	assert.Equal(t, mandate, events.mandates[0].MandateID)
	assert.Equal(t, int64(3), events.mandates[0].PaymentID)
}

func TestMandatePoller_UnresolvedStatesAreSilent(t *testing.T) {
	mandate := "MND-9"
	store := &fakePaymentStore{payments: map[int64]*model.Payment{
		3: {ID: 3, Ref: "PAY-3", MandateID: &mandate, SipStatus: model.PaymentStatusSubmitted},
	}}
	events := &fakeEvents{}
	sched := newFakeSched()

	for _, status := range []provider.MandateStatus{
		provider.MandateStatusCreated,
		provider.MandateStatusReceived,
		provider.MandateStatusSubmitted,
	} {
		client := &fakeMandateClient{status: status}
		poller := NewMandatePoller(store, client, events, sched, 10*time.Second, 10*time.Minute)
		poller.Schedule(mandate, 3)
		require.NoError(t, sched.runNow(t, MandatePollKey(mandate)))
	}

	assert.Empty(t, events.mandates)
}

func TestMandatePoller_ResolvedSipStatusCancels(t *testing.T) {
	mandate := "MND-9"
	store := &fakePaymentStore{payments: map[int64]*model.Payment{
		3: {ID: 3, Ref: "PAY-3", MandateID: &mandate, SipStatus: model.PaymentStatusActive},
	}}
	client := &fakeMandateClient{status: provider.MandateStatusApproved}
	events := &fakeEvents{}
	sched := newFakeSched()

	poller := NewMandatePoller(store, client, events, sched, 10*time.Second, 10*time.Minute)
	poller.Schedule(mandate, 3)
	require.NoError(t, sched.runNow(t, MandatePollKey(mandate)))

	assert.Empty(t, events.mandates, "resolved sip status must short-circuit")
	assert.False(t, sched.Exists(MandatePollKey(mandate)))
}
