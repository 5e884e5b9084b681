package orchestrator

import (
	"context"
	"errors"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/internal/provider"
	"github.com/avyukt/invest-gateway/internal/repository"
	"github.com/avyukt/invest-gateway/pkg/logger"
)

type PaymentStore interface {
	GetByID(ctx context.Context, id int64) (*model.Payment, error)
	GetByRef(ctx context.Context, ref string) (*model.Payment, error)
	SetBuyStatus(ctx context.Context, id int64, from, to model.PaymentStatus) error
	SetSipStatus(ctx context.Context, id int64, from, to model.PaymentStatus) error
}

type MandateClient interface {
	FetchMandate(ctx context.Context, id string) (*provider.Mandate, error)
}

// SipOrderPlacer places the SIP orders behind an approved mandate.
// Implementations must tolerate repeated invocation for the same payment:
// approval events are delivered at least once, and orders already past
// CREATED are skipped rather than resubmitted. They may additionally hold
// placement behind KYC verification.
type SipOrderPlacer interface {
	PlaceSipOrders(ctx context.Context, payment *model.Payment) error
}

// MandateListener resolves the sip axis of a payment once the bank rules
// on the mandate. The triggering event is only a hint; the mandate is
// re-fetched from the provider before any state moves.
type MandateListener struct {
	payments PaymentStore
	provider MandateClient
	placer   SipOrderPlacer
}

func NewMandateListener(payments PaymentStore, client MandateClient, placer SipOrderPlacer) *MandateListener {
	return &MandateListener{
		payments: payments,
		provider: client,
		placer:   placer,
	}
}

func (l *MandateListener) Handle(ctx context.Context, ev model.MandateProcessEvent) error {
	payment, err := l.payments.GetByID(ctx, ev.PaymentID)
	if err != nil {
		return err
	}
	if payment.SipStatus != model.PaymentStatusSubmitted {
		// Already resolved; duplicate delivery is a no-op.
		logger.Debug("sip status already resolved, skipping mandate event",
			"payment_id", payment.ID, "sip_status", payment.SipStatus)
		return nil
	}

	mandate, err := l.provider.FetchMandate(ctx, ev.MandateID)
	if err != nil {
		return err
	}

	switch mandate.Status {
	case provider.MandateStatusApproved:
		// Place before the status move. Placement is safe to repeat (the
		// placer skips orders past CREATED and the provider keys
		// submissions by ref), so a crash between the two steps leaves
		// sip_status SUBMITTED and the redelivered event drives placement
		// again instead of losing it.
		logger.Info("mandate approved, placing sip orders", "payment_id", payment.ID, "mandate_id", ev.MandateID)
		if err := l.placer.PlaceSipOrders(ctx, payment); err != nil {
			return err
		}
		if err := l.payments.SetSipStatus(ctx, payment.ID, model.PaymentStatusSubmitted, model.PaymentStatusActive); err != nil && !errors.Is(err, repository.ErrStaleStatus) {
			return err
		}
		return nil

	case provider.MandateStatusRejected:
		if err := l.payments.SetSipStatus(ctx, payment.ID, model.PaymentStatusSubmitted, model.PaymentStatusFailed); err != nil && !errors.Is(err, repository.ErrStaleStatus) {
			return err
		}
		logger.Info("mandate rejected", "payment_id", payment.ID, "mandate_id", ev.MandateID)
		return nil

	case provider.MandateStatusCancelled:
		if err := l.payments.SetSipStatus(ctx, payment.ID, model.PaymentStatusSubmitted, model.PaymentStatusCancelled); err != nil && !errors.Is(err, repository.ErrStaleStatus) {
			return err
		}
		logger.Info("mandate cancelled", "payment_id", payment.ID, "mandate_id", ev.MandateID)
		return nil
	}

	// Not resolved yet; the poller keeps watching until its timeout.
	logger.Debug("mandate not resolved yet", "mandate_id", ev.MandateID, "status", mandate.Status)
	return nil
}
