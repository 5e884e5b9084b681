package repository

import (
	"context"
	"errors"
	"time"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/pkg/pg"
	"gorm.io/gorm"
)

type FolioEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	UserID    int64     `db:"user_id"    gorm:"column:user_id;not null;uniqueIndex:idx_folio_user_fund"`
	FundID    int64     `db:"fund_id"    gorm:"column:fund_id;not null;uniqueIndex:idx_folio_user_fund"`
	FolioRef  string    `db:"folio_ref"  gorm:"column:folio_ref;not null"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (FolioEntity) TableName() string { return "folios" }

func toFolioModel(e *FolioEntity) *model.Folio {
	if e == nil {
		return nil
	}
	return &model.Folio{
		ID:        e.ID,
		UserID:    e.UserID,
		FundID:    e.FundID,
		FolioRef:  e.FolioRef,
		CreatedAt: e.CreatedAt,
	}
}

type FolioRepository struct {
	*pg.DB
}

func NewFolioRepository(db *pg.DB) *FolioRepository {
	return &FolioRepository{
		db,
	}
}

func (r *FolioRepository) GetByUserFund(ctx context.Context, userID, fundID int64) (*model.Folio, error) {
	var entity FolioEntity
	err := r.Read(ctx).WithContext(ctx).
		First(&entity, "user_id = ? AND fund_id = ?", userID, fundID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toFolioModel(&entity), nil
}

// Create inserts a folio. A unique-violation from a concurrent creator is
// surfaced as-is; callers treat it as "someone else won" and re-read.
func (r *FolioRepository) Create(ctx context.Context, folio *model.Folio) (*model.Folio, error) {
	entity := &FolioEntity{
		UserID:   folio.UserID,
		FundID:   folio.FundID,
		FolioRef: folio.FolioRef,
	}
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toFolioModel(entity), nil
}
