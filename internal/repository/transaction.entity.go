package repository

import (
	"time"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type TransactionEntity struct {
	ID                int64            `db:"id"                   gorm:"primaryKey;autoIncrement;column:id"`
	UserID            int64            `db:"user_id"              gorm:"column:user_id;not null;index"`
	FundID            int64            `db:"fund_id"              gorm:"column:fund_id;not null;index"`
	FundName          string           `db:"fund_name"            gorm:"column:fund_name"`
	GoalID            *int64           `db:"goal_id"              gorm:"column:goal_id;index"`
	FolioID           *int64           `db:"folio_id"             gorm:"column:folio_id"`
	Type              string           `db:"type"                 gorm:"column:type;not null"`
	Units             decimal.Decimal  `db:"units"                gorm:"column:units;type:decimal(20,4);not null"`
	UnitPrice         decimal.Decimal  `db:"unit_price"           gorm:"column:unit_price;type:decimal(20,4);not null"`
	Amount            decimal.Decimal  `db:"amount"               gorm:"column:amount;type:decimal(20,4);not null"`
	ExternalRef       string           `db:"external_ref"         gorm:"column:external_ref;index"`
	ProviderTxnID     *string          `db:"provider_txn_id"      gorm:"column:provider_txn_id;uniqueIndex"`
	SourceOrderItemID *int64           `db:"source_order_item_id" gorm:"column:source_order_item_id;uniqueIndex"`
	Status            string           `db:"status"               gorm:"column:status;not null;index"`
	ExecutedAt        time.Time        `db:"executed_at"          gorm:"column:executed_at"`
	CreatedAt         time.Time        `db:"created_at"           gorm:"column:created_at;autoCreateTime"`
}

func (TransactionEntity) TableName() string { return "transactions" }

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	return &TransactionEntity{
		ID:                m.ID,
		UserID:            m.UserID,
		FundID:            m.FundID,
		FundName:          m.FundName,
		GoalID:            m.GoalID,
		FolioID:           m.FolioID,
		Type:              string(m.Type),
		Units:             m.Units,
		UnitPrice:         m.UnitPrice,
		Amount:            m.Amount,
		ExternalRef:       m.ExternalRef,
		ProviderTxnID:     m.ProviderTxnID,
		SourceOrderItemID: m.SourceOrderItemID,
		Status:            string(m.Status),
		ExecutedAt:        m.ExecutedAt,
		CreatedAt:         m.CreatedAt,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:                e.ID,
		UserID:            e.UserID,
		FundID:            e.FundID,
		FundName:          e.FundName,
		GoalID:            e.GoalID,
		FolioID:           e.FolioID,
		Type:              model.TransactionType(e.Type),
		Units:             e.Units,
		UnitPrice:         e.UnitPrice,
		Amount:            e.Amount,
		ExternalRef:       e.ExternalRef,
		ProviderTxnID:     e.ProviderTxnID,
		SourceOrderItemID: e.SourceOrderItemID,
		Status:            model.TransactionStatus(e.Status),
		ExecutedAt:        e.ExecutedAt,
		CreatedAt:         e.CreatedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
