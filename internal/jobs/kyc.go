package jobs

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/avyukt/invest-gateway/internal/provider"
	"github.com/avyukt/invest-gateway/internal/scheduler"
	"github.com/avyukt/invest-gateway/pkg/logger"
	"github.com/sethvargo/go-retry"
)

type KycClient interface {
	FetchKycStatus(ctx context.Context, userID int64) (*provider.KycDetails, error)
}

const kycBackoffCap = 5 * time.Minute

// KycGate watches a user's verification state and releases a held-back
// action (SIP placement) once the provider reports VERIFIED. Provider
// errors back the watch off explicitly with a fibonacci schedule instead
// of hammering at the fixed interval.
type KycGate struct {
	provider   KycClient
	sched      JobControl
	interval   time.Duration
	retryBase  time.Duration
	onVerified func(ctx context.Context, userID int64) error

	mu      sync.Mutex
	backoff map[string]retry.Backoff
}

func NewKycGate(client KycClient, sched JobControl, interval, retryBase time.Duration, onVerified func(ctx context.Context, userID int64) error) *KycGate {
	if retryBase <= 0 {
		retryBase = time.Second
	}
	return &KycGate{
		provider:   client,
		sched:      sched,
		interval:   interval,
		retryBase:  retryBase,
		onVerified: onVerified,
		backoff:    make(map[string]retry.Backoff),
	}
}

// Watch schedules a recurring status check for the user. An existing watch
// for the same user is debounced, not duplicated.
func (k *KycGate) Watch(userID int64) {
	k.sched.Schedule(scheduler.Task{
		Key:     KycWatchKey(userID),
		Name:    "kyc-refresh",
		Trigger: scheduler.TriggerInterval,
		Params: scheduler.Params{
			scheduler.ParamUserID: strconv.FormatInt(userID, 10),
		},
		Interval: k.interval,
		Run:      k.run,
	}, k.interval)
}

func (k *KycGate) run(ctx context.Context, p scheduler.Params) error {
	userID, err := strconv.ParseInt(p[scheduler.ParamUserID], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user_id param %q: %w", p[scheduler.ParamUserID], err)
	}
	key := KycWatchKey(userID)

	details, err := k.provider.FetchKycStatus(ctx, userID)
	if err != nil {
		delay := k.nextBackoff(key)
		k.sched.Defer(key, delay)
		logger.Warn("kyc status fetch failed, backing off", "user_id", userID, "retry_in", delay)
		return err
	}
	k.resetBackoff(key)

	switch details.Status {
	case provider.KycStatusVerified:
		logger.Info("kyc verified, releasing held action", "user_id", userID)
		if k.onVerified != nil {
			if err := k.onVerified(ctx, userID); err != nil {
				return err
			}
		}
		k.sched.Cancel(key)
	case provider.KycStatusRejected:
		logger.Warn("kyc rejected, dropping watch", "user_id", userID)
		k.sched.Cancel(key)
	default:
		logger.Debug("kyc still pending", "user_id", userID)
	}
	return nil
}

func (k *KycGate) nextBackoff(key string) time.Duration {
	k.mu.Lock()
	defer k.mu.Unlock()
	b, ok := k.backoff[key]
	if !ok {
		b = retry.WithCappedDuration(kycBackoffCap, retry.NewFibonacci(k.retryBase))
		k.backoff[key] = b
	}
	d, _ := b.Next()
	return d
}

func (k *KycGate) resetBackoff(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.backoff, key)
}
