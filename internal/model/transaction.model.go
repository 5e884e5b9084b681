package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeBuy  TransactionType = "BUY"
	TransactionTypeSip  TransactionType = "SIP"
	TransactionTypeSell TransactionType = "SELL"
	TransactionTypeSwp  TransactionType = "SWP"
)

// TransactionStatus tracks a ledger row through provider settlement.
// Rows are immutable after creation except for this field, which moves
// once the provider reaches a terminal state.
type TransactionStatus string

const (
	TransactionStatusVerificationPending TransactionStatus = "VERIFICATION_PENDING"
	TransactionStatusSubmitted           TransactionStatus = "SUBMITTED"
	TransactionStatusCompleted           TransactionStatus = "COMPLETED"
	TransactionStatusFailed              TransactionStatus = "FAILED"
	TransactionStatusRefunded            TransactionStatus = "REFUNDED"
)

// Transaction is one executed unit movement in the ledger. Units are
// signed: positive acquires, negative disposes. SourceOrderItemID is the
// idempotency key for order-driven writes; ProviderTxnID for
// provider-driven re-sync writes.
type Transaction struct {
	ID                int64             `json:"id"                   db:"id"                   gorm:"primaryKey;autoIncrement;column:id"`
	UserID            int64             `json:"user_id"              db:"user_id"              gorm:"column:user_id;not null;index"`
	FundID            int64             `json:"fund_id"              db:"fund_id"              gorm:"column:fund_id;not null;index"`
	FundName          string            `json:"fund_name"            db:"fund_name"            gorm:"column:fund_name"`
	GoalID            *int64            `json:"goal_id"              db:"goal_id"              gorm:"column:goal_id;index"`
	FolioID           *int64            `json:"folio_id"             db:"folio_id"             gorm:"column:folio_id"`
	Type              TransactionType   `json:"type"                 db:"type"                 gorm:"column:type;not null"`
	Units             decimal.Decimal   `json:"units"                db:"units"                gorm:"column:units;type:decimal(20,4);not null"`
	UnitPrice         decimal.Decimal   `json:"unit_price"           db:"unit_price"           gorm:"column:unit_price;type:decimal(20,4);not null"`
	Amount            decimal.Decimal   `json:"amount"               db:"amount"               gorm:"column:amount;type:decimal(20,4);not null"`
	ExternalRef       string            `json:"external_ref"         db:"external_ref"         gorm:"column:external_ref;index"`
	ProviderTxnID     *string           `json:"provider_txn_id"      db:"provider_txn_id"      gorm:"column:provider_txn_id;uniqueIndex"`
	SourceOrderItemID *int64            `json:"source_order_item_id" db:"source_order_item_id" gorm:"column:source_order_item_id;uniqueIndex"`
	Status            TransactionStatus `json:"status"               db:"status"               gorm:"column:status;not null;index"`
	ExecutedAt        time.Time         `json:"executed_at"          db:"executed_at"          gorm:"column:executed_at"`
	CreatedAt         time.Time         `json:"created_at"           db:"created_at"           gorm:"column:created_at;autoCreateTime"`
}

func (Transaction) TableName() string { return "transactions" }

// TransactionFilter controls ledger list queries.
type TransactionFilter struct {
	UserID   *int64
	GoalID   *int64
	FundID   *int64
	Statuses []TransactionStatus
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
	Desc     bool
}
