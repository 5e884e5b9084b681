package repository

import (
	"context"
	"errors"
	"time"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/pkg/pg"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type GoalEntity struct {
	ID            int64           `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	UserID        int64           `db:"user_id"        gorm:"column:user_id;not null;index"`
	Name          string          `db:"name"           gorm:"column:name;not null"`
	TargetAmount  decimal.Decimal `db:"target_amount"  gorm:"column:target_amount;type:decimal(20,4);not null"`
	CurrentAmount decimal.Decimal `db:"current_amount" gorm:"column:current_amount;type:decimal(20,4);not null"`
	Status        string          `db:"status"         gorm:"column:status;not null"`
	CreatedAt     time.Time       `db:"created_at"     gorm:"column:created_at;autoCreateTime"`
}

func (GoalEntity) TableName() string { return "goals" }

func toGoalModel(e *GoalEntity) *model.Goal {
	if e == nil {
		return nil
	}
	return &model.Goal{
		ID:            e.ID,
		UserID:        e.UserID,
		Name:          e.Name,
		TargetAmount:  e.TargetAmount,
		CurrentAmount: e.CurrentAmount,
		Status:        model.GoalStatus(e.Status),
		CreatedAt:     e.CreatedAt,
	}
}

type GoalRepository struct {
	*pg.DB
}

func NewGoalRepository(db *pg.DB) *GoalRepository {
	return &GoalRepository{
		db,
	}
}

func (r *GoalRepository) Create(ctx context.Context, g *model.Goal) (*model.Goal, error) {
	entity := &GoalEntity{
		UserID:        g.UserID,
		Name:          g.Name,
		TargetAmount:  g.TargetAmount,
		CurrentAmount: g.CurrentAmount,
		Status:        string(g.Status),
	}
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toGoalModel(entity), nil
}

func (r *GoalRepository) GetByID(ctx context.Context, id int64) (*model.Goal, error) {
	var entity GoalEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toGoalModel(&entity), nil
}

// IncrementCurrentAmount adds delta to the goal's current amount in a
// single UPDATE so concurrent increments do not lose writes.
func (r *GoalRepository) IncrementCurrentAmount(ctx context.Context, id int64, delta decimal.Decimal) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&GoalEntity{}).
		Where("id = ?", id).
		Update("current_amount", gorm.Expr("current_amount + ?", delta)).Error
}

// SetCurrentAmount overwrites the goal's current amount with a recomputed
// ledger total.
func (r *GoalRepository) SetCurrentAmount(ctx context.Context, id int64, amount decimal.Decimal) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&GoalEntity{}).
		Where("id = ?", id).
		Update("current_amount", amount).Error
}

// PromoteStatus moves a goal from `from` to `to`, skipping silently when
// another writer already promoted it.
func (r *GoalRepository) PromoteStatus(ctx context.Context, id int64, from, to model.GoalStatus) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&GoalEntity{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}
