package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/internal/provider"
	"github.com/avyukt/invest-gateway/internal/scheduler"
	"github.com/avyukt/invest-gateway/pkg/logger"
	"github.com/avyukt/invest-gateway/pkg/prom"
)

type PaymentStore interface {
	GetByID(ctx context.Context, id int64) (*model.Payment, error)
}

type PaymentClient interface {
	FetchPayment(ctx context.Context, ref string) (*provider.PaymentDetails, error)
}

type MandateClient interface {
	FetchMandate(ctx context.Context, id string) (*provider.Mandate, error)
}

// EventSink is the outbox edge the pollers publish candidate state changes
// to. Listeners re-verify with the provider, so a stale or duplicated
// event is harmless.
type EventSink interface {
	Payment(ctx context.Context, ev model.PaymentEvent) error
	MandateProcess(ctx context.Context, ev model.MandateProcessEvent) error
}

// PaymentPoller watches a submitted payment until the provider resolves it
// or the lifetime bound expires. It only detects; the payment listener
// owns the transition.
type PaymentPoller struct {
	payments PaymentStore
	provider PaymentClient
	events   EventSink
	sched    JobControl
	interval time.Duration
	timeout  time.Duration
}

func NewPaymentPoller(payments PaymentStore, client PaymentClient, events EventSink, sched JobControl, interval, timeout time.Duration) *PaymentPoller {
	return &PaymentPoller{
		payments: payments,
		provider: client,
		events:   events,
		sched:    sched,
		interval: interval,
		timeout:  timeout,
	}
}

func (pp *PaymentPoller) Schedule(paymentID int64) {
	pp.sched.Schedule(scheduler.Task{
		Key:     PaymentPollKey(paymentID),
		Name:    "payment-status",
		Trigger: scheduler.TriggerInterval,
		Params: scheduler.Params{
			scheduler.ParamPaymentID: strconv.FormatInt(paymentID, 10),
		},
		Interval: pp.interval,
		Timeout:  pp.timeout,
		Run:      pp.run,
	}, pp.interval)
}

func (pp *PaymentPoller) run(ctx context.Context, p scheduler.Params) error {
	id, err := strconv.ParseInt(p[scheduler.ParamPaymentID], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid payment_id param %q: %w", p[scheduler.ParamPaymentID], err)
	}

	payment, err := pp.payments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if payment.BuyStatus != model.PaymentStatusSubmitted {
		// Already resolved; nothing left to watch.
		pp.sched.Cancel(PaymentPollKey(id))
		return nil
	}

	details, err := pp.provider.FetchPayment(ctx, payment.Ref)
	if errors.Is(err, provider.ErrNotFound) {
		prom.IncPollTick("payment", "not_found")
		logger.Warn("provider does not know payment yet", "ref", payment.Ref)
		return nil
	}
	if err != nil {
		prom.IncPollTick("payment", "error")
		return err
	}
	if details.Status == provider.PaymentStatusPending {
		prom.IncPollTick("payment", "pending")
		return nil
	}

	prom.IncPollTick("payment", "resolved")
	logger.Info("payment resolved at provider, publishing", "ref", payment.Ref, "status", details.Status)
	return pp.events.Payment(ctx, model.PaymentEvent{Ref: payment.Ref, Status: string(details.Status)})
}

// MandatePoller is the sip-axis counterpart of PaymentPoller: it watches a
// submitted mandate until the bank resolves the authorization.
type MandatePoller struct {
	payments PaymentStore
	provider MandateClient
	events   EventSink
	sched    JobControl
	interval time.Duration
	timeout  time.Duration
}

func NewMandatePoller(payments PaymentStore, client MandateClient, events EventSink, sched JobControl, interval, timeout time.Duration) *MandatePoller {
	return &MandatePoller{
		payments: payments,
		provider: client,
		events:   events,
		sched:    sched,
		interval: interval,
		timeout:  timeout,
	}
}

func (mp *MandatePoller) Schedule(mandateID string, paymentID int64) {
	mp.sched.Schedule(scheduler.Task{
		Key:     MandatePollKey(mandateID),
		Name:    "mandate-status",
		Trigger: scheduler.TriggerInterval,
		Params: scheduler.Params{
			scheduler.ParamMandateID: mandateID,
			scheduler.ParamPaymentID: strconv.FormatInt(paymentID, 10),
		},
		Interval: mp.interval,
		Timeout:  mp.timeout,
		Run:      mp.run,
	}, mp.interval)
}

func (mp *MandatePoller) run(ctx context.Context, p scheduler.Params) error {
	mandateID := p[scheduler.ParamMandateID]
	paymentID, err := strconv.ParseInt(p[scheduler.ParamPaymentID], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid payment_id param %q: %w", p[scheduler.ParamPaymentID], err)
	}

	payment, err := mp.payments.GetByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.SipStatus != model.PaymentStatusSubmitted {
		mp.sched.Cancel(MandatePollKey(mandateID))
		return nil
	}

	mandate, err := mp.provider.FetchMandate(ctx, mandateID)
	if errors.Is(err, provider.ErrNotFound) {
		prom.IncPollTick("mandate", "not_found")
		logger.Warn("provider does not know mandate yet", "mandate_id", mandateID)
		return nil
	}
	if err != nil {
		prom.IncPollTick("mandate", "error")
		return err
	}

	switch mandate.Status {
	case provider.MandateStatusApproved, provider.MandateStatusRejected, provider.MandateStatusCancelled:
		prom.IncPollTick("mandate", "resolved")
		logger.Info("mandate resolved at provider, publishing", "mandate_id", mandateID, "status", mandate.Status)
		return mp.events.MandateProcess(ctx, model.MandateProcessEvent{
			MandateID: mandateID,
			PaymentID: paymentID,
			Timestamp: time.Now(),
		})
	}

	prom.IncPollTick("mandate", "pending")
	return nil
}
