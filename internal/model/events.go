package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types carried on the outbox stream. Consumers treat payloads as
// hints only: every listener re-fetches provider/persisted state before
// acting.
const (
	EventTypeGoalSync           = "goal.sync"
	EventTypeTransactionSuccess = "transaction.success"
	EventTypeMandateProcess     = "mandate.process"
	EventTypePayment            = "payment.status"
	EventTypeLumpSumPaymentDone = "payment.lumpsum.completed"
)

type GoalSyncEvent struct {
	GoalID int64 `json:"goal_id"`
	UserID int64 `json:"user_id"`
}

type TransactionSuccessEvent struct {
	UserID   int64           `json:"user_id"`
	FundName string          `json:"fund_name"`
	Amount   decimal.Decimal `json:"amount"`
	Type     TransactionType `json:"type"`
}

type MandateProcessEvent struct {
	MandateID string    `json:"mandate_id"`
	PaymentID int64     `json:"payment_id"`
	Timestamp time.Time `json:"timestamp"`
}

type PaymentEvent struct {
	Ref    string `json:"ref"`
	Status string `json:"status"`
}

type LumpSumPaymentCompletedEvent struct {
	PaymentRef string    `json:"payment_ref"`
	Timestamp  time.Time `json:"timestamp"`
}
