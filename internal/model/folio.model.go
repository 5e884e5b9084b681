package model

import "time"

// Folio is the external per-(user, fund) account handle under which units
// are held. Created lazily the first time a fulfillment reports an unseen
// folio ref.
type Folio struct {
	ID        int64     `json:"id"         db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	UserID    int64     `json:"user_id"    db:"user_id"    gorm:"column:user_id;not null;uniqueIndex:idx_folio_user_fund"`
	FundID    int64     `json:"fund_id"    db:"fund_id"    gorm:"column:fund_id;not null;uniqueIndex:idx_folio_user_fund"`
	FolioRef  string    `json:"folio_ref"  db:"folio_ref"  gorm:"column:folio_ref;not null"`
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (Folio) TableName() string { return "folios" }
