package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avyukt/invest-gateway/internal/jobs"
	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/internal/provider"
	"github.com/avyukt/invest-gateway/pkg/logger"
)

// KycGatedPlacer wraps a SipOrderPlacer with a verification gate: a user
// whose KYC is still pending gets their placement parked, and the KYC
// watch job releases it once the provider reports VERIFIED.
type KycGatedPlacer struct {
	kyc      jobs.KycClient
	gate     *jobs.KycGate
	delegate SipOrderPlacer

	mu   sync.Mutex
	held map[int64][]*model.Payment
}

func NewKycGatedPlacer(kyc jobs.KycClient, sched jobs.JobControl, interval, retryBase time.Duration, delegate SipOrderPlacer) *KycGatedPlacer {
	p := &KycGatedPlacer{
		kyc:      kyc,
		delegate: delegate,
		held:     make(map[int64][]*model.Payment),
	}
	p.gate = jobs.NewKycGate(kyc, sched, interval, retryBase, p.release)
	return p
}

func (p *KycGatedPlacer) PlaceSipOrders(ctx context.Context, payment *model.Payment) error {
	details, err := p.kyc.FetchKycStatus(ctx, payment.UserID)
	if err != nil {
		return err
	}

	switch details.Status {
	case provider.KycStatusVerified:
		return p.delegate.PlaceSipOrders(ctx, payment)
	case provider.KycStatusRejected:
		return fmt.Errorf("kyc rejected for user %d, sip placement refused", payment.UserID)
	}

	p.hold(payment)
	p.gate.Watch(payment.UserID)
	logger.Info("sip placement held for kyc verification", "user_id", payment.UserID, "payment_id", payment.ID)
	return nil
}

func (p *KycGatedPlacer) hold(payment *model.Payment) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.held[payment.UserID] = append(p.held[payment.UserID], payment)
}

// release runs as the KYC watch's verified callback and drains every
// placement parked for the user.
func (p *KycGatedPlacer) release(ctx context.Context, userID int64) error {
	p.mu.Lock()
	payments := p.held[userID]
	delete(p.held, userID)
	p.mu.Unlock()

	for i, payment := range payments {
		if err := p.delegate.PlaceSipOrders(ctx, payment); err != nil {
			// Park the rest again; the watch stays scheduled and retries.
			p.mu.Lock()
			p.held[userID] = append(p.held[userID], payments[i:]...)
			p.mu.Unlock()
			return err
		}
		logger.Info("held sip placement released", "user_id", userID, "payment_id", payment.ID)
	}
	return nil
}
