package provider

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderState is the provider's vocabulary for an order submission.
type OrderState string

const (
	OrderStateCreated     OrderState = "CREATED"
	OrderStatePending     OrderState = "PENDING"
	OrderStateUnderReview OrderState = "UNDER_REVIEW"
	OrderStateConfirmed   OrderState = "CONFIRMED"
	OrderStateSubmitted   OrderState = "SUBMITTED"
	OrderStateSuccessful  OrderState = "SUCCESSFUL"
	OrderStateFailed      OrderState = "FAILED"
	OrderStateCancelled   OrderState = "CANCELLED"
	OrderStateReversed    OrderState = "REVERSED"
)

// Terminal reports whether the provider will never move this order again.
func (s OrderState) Terminal() bool {
	switch s {
	case OrderStateSuccessful, OrderStateFailed, OrderStateCancelled, OrderStateReversed:
		return true
	}
	return false
}

// OrderDetails is the provider's view of one order submission.
type OrderDetails struct {
	Ref            string           `json:"ref"`
	State          OrderState       `json:"state"`
	AllottedUnits  *decimal.Decimal `json:"allotted_units,omitempty"`
	PurchasedPrice *decimal.Decimal `json:"purchased_price,omitempty"`
	FolioRef       string           `json:"folio_ref,omitempty"`
	SubmittedAt    *time.Time       `json:"submitted_at,omitempty"`
	FailedAt       *time.Time       `json:"failed_at,omitempty"`
	ReversedAt     *time.Time       `json:"reversed_at,omitempty"`
	RedeemedUnits  *decimal.Decimal `json:"redeemed_units,omitempty"`
	RedeemedPrice  *decimal.Decimal `json:"redeemed_price,omitempty"`
	RedeemedAmount *decimal.Decimal `json:"redeemed_amount,omitempty"`
	Transactions   []OrderTxn       `json:"transactions,omitempty"`
}

// OrderTxn is one provider-side transaction under an order; SIP orders
// accrete these over time and the re-sync path walks them by cursor.
type OrderTxn struct {
	TxnRef     string          `json:"txn_ref"`
	Units      decimal.Decimal `json:"units"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// OrderSubmission is the payload for handing one line item to the
// provider. The ref is ours; the provider keys everything it reports
// back by it.
type OrderSubmission struct {
	Ref       string          `json:"ref"`
	UserID    int64           `json:"user_id"`
	Kind      string          `json:"kind"`
	FundID    int64           `json:"fund_id"`
	Amount    decimal.Decimal `json:"amount"`
	MandateID *string         `json:"mandate_id,omitempty"`
}

// MandateStatus is the provider's mandate approval lifecycle.
type MandateStatus string

const (
	MandateStatusCreated   MandateStatus = "CREATED"
	MandateStatusReceived  MandateStatus = "RECEIVED"
	MandateStatusSubmitted MandateStatus = "SUBMITTED"
	MandateStatusApproved  MandateStatus = "APPROVED"
	MandateStatusRejected  MandateStatus = "REJECTED"
	MandateStatusCancelled MandateStatus = "CANCELLED"
)

type Mandate struct {
	ID     string        `json:"id"`
	Status MandateStatus `json:"status"`
}

// PaymentStatus is the provider's payment state.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailure PaymentStatus = "FAILURE"
)

type PaymentDetails struct {
	Ref    string        `json:"ref"`
	Status PaymentStatus `json:"status"`
}

// KycStatus is the provider's verification state for a user.
type KycStatus string

const (
	KycStatusPending  KycStatus = "PENDING"
	KycStatusVerified KycStatus = "VERIFIED"
	KycStatusRejected KycStatus = "REJECTED"
)

type KycDetails struct {
	UserID int64     `json:"user_id"`
	Status KycStatus `json:"status"`
}
