package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// OrderKind discriminates the order variants. Kind-specific fields live on
// Order itself (MandateRef for SIP, SellReason for SELL) instead of an
// entity hierarchy.
type OrderKind string

const (
	OrderKindBuy  OrderKind = "BUY"
	OrderKindSip  OrderKind = "SIP"
	OrderKindSell OrderKind = "SELL"
)

// OrderStatus is the internal lifecycle of an order.
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusPlaced    OrderStatus = "PLACED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusReversed  OrderStatus = "REVERSED"
)

type Order struct {
	ID         int64           `json:"id"          db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	UserID     int64           `json:"user_id"     db:"user_id"     gorm:"column:user_id;not null;index"`
	PaymentID  int64           `json:"payment_id"  db:"payment_id"  gorm:"column:payment_id;not null;index"`
	GoalID     *int64          `json:"goal_id"     db:"goal_id"     gorm:"column:goal_id;index"`
	Kind       OrderKind       `json:"kind"        db:"kind"        gorm:"column:kind;not null"`
	Status     OrderStatus     `json:"status"      db:"status"      gorm:"column:status;not null"`
	Amount     decimal.Decimal `json:"amount"      db:"amount"      gorm:"column:amount;type:decimal(20,4);not null"`
	MandateRef *string         `json:"mandate_ref" db:"mandate_ref" gorm:"column:mandate_ref"` // SIP only
	SellReason *string         `json:"sell_reason" db:"sell_reason" gorm:"column:sell_reason"` // SELL only
	CreatedAt  time.Time       `json:"created_at"  db:"created_at"  gorm:"column:created_at;autoCreateTime"`
}

func (Order) TableName() string { return "orders" }

// OrderItemStatus mirrors the provider-reported state of a single line item.
type OrderItemStatus string

const (
	OrderItemStatusCreated   OrderItemStatus = "CREATED"
	OrderItemStatusSubmitted OrderItemStatus = "SUBMITTED"
	OrderItemStatusCompleted OrderItemStatus = "COMPLETED"
	OrderItemStatusFailed    OrderItemStatus = "FAILED"
	OrderItemStatusReversed  OrderItemStatus = "REVERSED"
)

// OrderItem is one fund-level slice of an order. Units and UnitPrice stay
// nil until a fulfillment pass populates them; once both are set and
// non-zero the item is never recomputed.
type OrderItem struct {
	ID                  int64            `json:"id"                     db:"id"                     gorm:"primaryKey;autoIncrement;column:id"`
	OrderID             int64            `json:"order_id"               db:"order_id"               gorm:"column:order_id;not null;index"`
	FundID              int64            `json:"fund_id"                db:"fund_id"                gorm:"column:fund_id;not null"`
	FundName            string           `json:"fund_name"              db:"fund_name"              gorm:"column:fund_name"`
	Amount              decimal.Decimal  `json:"amount"                 db:"amount"                 gorm:"column:amount;type:decimal(20,4);not null"`
	Units               *decimal.Decimal `json:"units"                  db:"units"                  gorm:"column:units;type:decimal(20,4)"`
	UnitPrice           *decimal.Decimal `json:"unit_price"             db:"unit_price"             gorm:"column:unit_price;type:decimal(20,4)"`
	Ref                 string           `json:"ref"                    db:"ref"                    gorm:"column:ref;not null;index"`
	LastProcessedTxnRef *string          `json:"last_processed_txn_ref" db:"last_processed_txn_ref" gorm:"column:last_processed_txn_ref"` // SIP cursor
	Status              OrderItemStatus  `json:"status"                 db:"status"                 gorm:"column:status;not null"`
}

func (OrderItem) TableName() string { return "order_items" }

// Fulfilled reports whether a previous pass already populated this item.
func (i *OrderItem) Fulfilled() bool {
	return i.Units != nil && !i.Units.IsZero() && i.UnitPrice != nil && !i.UnitPrice.IsZero()
}

// OrderCreateRequest is the input for placing an order.
type OrderCreateRequest struct {
	UserID    int64
	PaymentID int64
	GoalID    *int64
	Kind      OrderKind
	Amount    decimal.Decimal
}

func (r OrderCreateRequest) Validate() error {
	if r.UserID == 0 {
		return errors.New("user_id is required")
	}
	if r.PaymentID == 0 {
		return errors.New("payment_id is required")
	}
	switch r.Kind {
	case OrderKindBuy, OrderKindSip, OrderKindSell:
	default:
		return errors.New("unknown order kind")
	}
	if r.Amount.Sign() <= 0 {
		return errors.New("amount must be positive")
	}
	return nil
}
