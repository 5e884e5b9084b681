package repository

import (
	"context"
	"errors"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/pkg/pg"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toTransactionModel(entity), nil
}

// ExistsBySourceItem reports whether a ledger row already covers the given
// order item. This is the idempotency check for order-driven writes.
func (r *TransactionRepository) ExistsBySourceItem(ctx context.Context, itemID int64) (bool, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("source_order_item_id = ?", itemID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ExistsByProviderTxn is the idempotency check for provider-driven
// re-sync writes (SIP/redeem trackers).
func (r *TransactionRepository) ExistsByProviderTxn(ctx context.Context, providerTxnID string) (bool, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("provider_txn_id = ?", providerTxnID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *TransactionRepository) GetBySourceItem(ctx context.Context, itemID int64) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		First(&entity, "source_order_item_id = ?", itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

func (r *TransactionRepository) UpdateStatus(ctx context.Context, id int64, status model.TransactionStatus) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("id = ?", id).
		Update("status", string(status)).Error
}

func (r *TransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&TransactionEntity{})

	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.GoalID != nil {
		q = q.Where("goal_id = ?", *f.GoalID)
	}
	if f.FundID != nil {
		q = q.Where("fund_id = ?", *f.FundID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.From != nil {
		q = q.Where("executed_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("executed_at < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "executed_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*TransactionEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toTransactionModels(entities), total, nil
}

// SumCompletedAmountByGoal totals the signed ledger amounts of a goal's
// completed rows. Used by the goal sync job to recompute current amount.
func (r *TransactionRepository) SumCompletedAmountByGoal(ctx context.Context, goalID int64) (decimal.Decimal, error) {
	var entities []*TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("goal_id = ? AND status = ?", goalID, string(model.TransactionStatusCompleted)).
		Find(&entities).Error
	if err != nil {
		return decimal.Zero, err
	}

	sum := decimal.Zero
	for _, e := range entities {
		if e.Units.Sign() < 0 {
			sum = sum.Sub(e.Amount)
		} else {
			sum = sum.Add(e.Amount)
		}
	}
	return sum, nil
}
