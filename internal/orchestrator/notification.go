package orchestrator

import (
	"context"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/pkg/logger"
)

// Notifier is the user-facing confirmation channel. Delivery is
// fire-and-forget from the ledger's perspective; a failed send never rolls
// anything back.
type Notifier interface {
	NotifyTransactionSuccess(ctx context.Context, ev model.TransactionSuccessEvent) error
}

// NotificationListener forwards transaction confirmations to the notifier
// and swallows delivery failures.
type NotificationListener struct {
	notifier Notifier
}

func NewNotificationListener(notifier Notifier) *NotificationListener {
	return &NotificationListener{notifier: notifier}
}

func (l *NotificationListener) Handle(ctx context.Context, ev model.TransactionSuccessEvent) error {
	if l.notifier == nil {
		return nil
	}
	if err := l.notifier.NotifyTransactionSuccess(ctx, ev); err != nil {
		logger.Warn("notification delivery failed, dropping",
			"user_id", ev.UserID, "fund", ev.FundName, "error", err)
	}
	return nil
}

// LogNotifier is the default notifier: it only records the confirmation.
// Real delivery channels live outside this service.
type LogNotifier struct{}

func (LogNotifier) NotifyTransactionSuccess(ctx context.Context, ev model.TransactionSuccessEvent) error {
	logger.Info("transaction confirmation",
		"user_id", ev.UserID, "fund", ev.FundName, "amount", ev.Amount, "type", ev.Type)
	return nil
}
