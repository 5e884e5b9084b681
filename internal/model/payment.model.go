package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is a monotonic lattice. Forward movement only:
// NOT_AVAILABLE -> PENDING -> SUBMITTED -> ACTIVE/COMPLETED, with
// FAILED/CANCELLED absorbing from SUBMITTED.
type PaymentStatus string

const (
	PaymentStatusNotAvailable PaymentStatus = "NOT_AVAILABLE"
	PaymentStatusPending      PaymentStatus = "PENDING"
	PaymentStatusSubmitted    PaymentStatus = "SUBMITTED"
	PaymentStatusActive       PaymentStatus = "ACTIVE"
	PaymentStatusCompleted    PaymentStatus = "COMPLETED"
	PaymentStatusFailed       PaymentStatus = "FAILED"
	PaymentStatusCancelled    PaymentStatus = "CANCELLED"
)

var paymentRank = map[PaymentStatus]int{
	PaymentStatusNotAvailable: 0,
	PaymentStatusPending:      1,
	PaymentStatusSubmitted:    2,
	PaymentStatusActive:       3,
	PaymentStatusCompleted:    3,
	PaymentStatusFailed:       3,
	PaymentStatusCancelled:    3,
}

// CanTransition reports whether moving from s to next respects the
// lattice. Absorbing states never move again.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	switch s {
	case PaymentStatusActive, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled:
		return false
	}
	return paymentRank[next] > paymentRank[s]
}

func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusActive, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

// Payment aggregates the orders behind one payment/mandate action.
// BuyStatus and SipStatus advance independently.
type Payment struct {
	ID        int64           `json:"id"         db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	UserID    int64           `json:"user_id"    db:"user_id"    gorm:"column:user_id;not null;index"`
	Ref       string          `json:"ref"        db:"ref"        gorm:"column:ref;not null;uniqueIndex"`
	MandateID *string         `json:"mandate_id" db:"mandate_id" gorm:"column:mandate_id;index"`
	BuyStatus PaymentStatus   `json:"buy_status" db:"buy_status" gorm:"column:buy_status;not null"`
	SipStatus PaymentStatus   `json:"sip_status" db:"sip_status" gorm:"column:sip_status;not null"`
	Amount    decimal.Decimal `json:"amount"     db:"amount"     gorm:"column:amount;type:decimal(20,4);not null"`
	CreatedAt time.Time       `json:"created_at" db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Payment) TableName() string { return "payments" }
