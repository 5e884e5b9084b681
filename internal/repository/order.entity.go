package repository

import (
	"time"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type OrderEntity struct {
	ID         int64             `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	UserID     int64             `db:"user_id"     gorm:"column:user_id;not null;index"`
	PaymentID  int64             `db:"payment_id"  gorm:"column:payment_id;not null;index"`
	GoalID     *int64            `db:"goal_id"     gorm:"column:goal_id;index"`
	Kind       string            `db:"kind"        gorm:"column:kind;not null"`
	Status     string            `db:"status"      gorm:"column:status;not null"`
	Amount     decimal.Decimal   `db:"amount"      gorm:"column:amount;type:decimal(20,4);not null"`
	MandateRef *string           `db:"mandate_ref" gorm:"column:mandate_ref"`
	SellReason *string           `db:"sell_reason" gorm:"column:sell_reason"`
	CreatedAt  time.Time         `db:"created_at"  gorm:"column:created_at;autoCreateTime"`
	Items      []*OrderItemEntity `gorm:"foreignKey:OrderID"`
}

func (OrderEntity) TableName() string { return "orders" }

type OrderItemEntity struct {
	ID                  int64            `db:"id"                     gorm:"primaryKey;autoIncrement;column:id"`
	OrderID             int64            `db:"order_id"               gorm:"column:order_id;not null;index"`
	FundID              int64            `db:"fund_id"                gorm:"column:fund_id;not null"`
	FundName            string           `db:"fund_name"              gorm:"column:fund_name"`
	Amount              decimal.Decimal  `db:"amount"                 gorm:"column:amount;type:decimal(20,4);not null"`
	Units               *decimal.Decimal `db:"units"                  gorm:"column:units;type:decimal(20,4)"`
	UnitPrice           *decimal.Decimal `db:"unit_price"             gorm:"column:unit_price;type:decimal(20,4)"`
	Ref                 string           `db:"ref"                    gorm:"column:ref;not null;index"`
	LastProcessedTxnRef *string          `db:"last_processed_txn_ref" gorm:"column:last_processed_txn_ref"`
	Status              string           `db:"status"                 gorm:"column:status;not null"`
}

func (OrderItemEntity) TableName() string { return "order_items" }

func toOrderEntity(m *model.Order) *OrderEntity {
	if m == nil {
		return nil
	}
	return &OrderEntity{
		ID:         m.ID,
		UserID:     m.UserID,
		PaymentID:  m.PaymentID,
		GoalID:     m.GoalID,
		Kind:       string(m.Kind),
		Status:     string(m.Status),
		Amount:     m.Amount,
		MandateRef: m.MandateRef,
		SellReason: m.SellReason,
		CreatedAt:  m.CreatedAt,
	}
}

func toOrderModel(e *OrderEntity) *model.Order {
	if e == nil {
		return nil
	}
	return &model.Order{
		ID:         e.ID,
		UserID:     e.UserID,
		PaymentID:  e.PaymentID,
		GoalID:     e.GoalID,
		Kind:       model.OrderKind(e.Kind),
		Status:     model.OrderStatus(e.Status),
		Amount:     e.Amount,
		MandateRef: e.MandateRef,
		SellReason: e.SellReason,
		CreatedAt:  e.CreatedAt,
	}
}

func toOrderModels(entities []*OrderEntity) []*model.Order {
	if entities == nil {
		return nil
	}
	models := make([]*model.Order, len(entities))
	for i, e := range entities {
		models[i] = toOrderModel(e)
	}
	return models
}

func toOrderItemEntity(m *model.OrderItem) *OrderItemEntity {
	if m == nil {
		return nil
	}
	return &OrderItemEntity{
		ID:                  m.ID,
		OrderID:             m.OrderID,
		FundID:              m.FundID,
		FundName:            m.FundName,
		Amount:              m.Amount,
		Units:               m.Units,
		UnitPrice:           m.UnitPrice,
		Ref:                 m.Ref,
		LastProcessedTxnRef: m.LastProcessedTxnRef,
		Status:              string(m.Status),
	}
}

func toOrderItemModel(e *OrderItemEntity) *model.OrderItem {
	if e == nil {
		return nil
	}
	return &model.OrderItem{
		ID:                  e.ID,
		OrderID:             e.OrderID,
		FundID:              e.FundID,
		FundName:            e.FundName,
		Amount:              e.Amount,
		Units:               e.Units,
		UnitPrice:           e.UnitPrice,
		Ref:                 e.Ref,
		LastProcessedTxnRef: e.LastProcessedTxnRef,
		Status:              model.OrderItemStatus(e.Status),
	}
}

func toOrderItemModels(entities []*OrderItemEntity) []*model.OrderItem {
	if entities == nil {
		return nil
	}
	models := make([]*model.OrderItem, len(entities))
	for i, e := range entities {
		models[i] = toOrderItemModel(e)
	}
	return models
}
