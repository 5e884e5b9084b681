package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type GoalStatus string

const (
	GoalStatusPaymentPending GoalStatus = "PAYMENT_PENDING"
	GoalStatusActive         GoalStatus = "ACTIVE"
	GoalStatusCompleted      GoalStatus = "COMPLETED"
)

type Goal struct {
	ID            int64           `json:"id"             db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	UserID        int64           `json:"user_id"        db:"user_id"        gorm:"column:user_id;not null;index"`
	Name          string          `json:"name"           db:"name"           gorm:"column:name;not null"`
	TargetAmount  decimal.Decimal `json:"target_amount"  db:"target_amount"  gorm:"column:target_amount;type:decimal(20,4);not null"`
	CurrentAmount decimal.Decimal `json:"current_amount" db:"current_amount" gorm:"column:current_amount;type:decimal(20,4);not null"`
	Status        GoalStatus      `json:"status"         db:"status"         gorm:"column:status;not null"`
	CreatedAt     time.Time       `json:"created_at"     db:"created_at"     gorm:"column:created_at;autoCreateTime"`
}

func (Goal) TableName() string { return "goals" }
