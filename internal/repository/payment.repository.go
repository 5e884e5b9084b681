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

// ErrStaleStatus is returned when a guarded status update matched no row,
// meaning another writer already moved the status. Callers treat it as a
// no-op, not a failure.
var ErrStaleStatus = errors.New("status already advanced by another writer")

type PaymentEntity struct {
	ID        int64           `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	UserID    int64           `db:"user_id"    gorm:"column:user_id;not null;index"`
	Ref       string          `db:"ref"        gorm:"column:ref;not null;uniqueIndex"`
	MandateID *string         `db:"mandate_id" gorm:"column:mandate_id;index"`
	BuyStatus string          `db:"buy_status" gorm:"column:buy_status;not null"`
	SipStatus string          `db:"sip_status" gorm:"column:sip_status;not null"`
	Amount    decimal.Decimal `db:"amount"     gorm:"column:amount;type:decimal(20,4);not null"`
	CreatedAt time.Time       `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (PaymentEntity) TableName() string { return "payments" }

func toPaymentEntity(m *model.Payment) *PaymentEntity {
	if m == nil {
		return nil
	}
	return &PaymentEntity{
		ID:        m.ID,
		UserID:    m.UserID,
		Ref:       m.Ref,
		MandateID: m.MandateID,
		BuyStatus: string(m.BuyStatus),
		SipStatus: string(m.SipStatus),
		Amount:    m.Amount,
		CreatedAt: m.CreatedAt,
	}
}

func toPaymentModel(e *PaymentEntity) *model.Payment {
	if e == nil {
		return nil
	}
	return &model.Payment{
		ID:        e.ID,
		UserID:    e.UserID,
		Ref:       e.Ref,
		MandateID: e.MandateID,
		BuyStatus: model.PaymentStatus(e.BuyStatus),
		SipStatus: model.PaymentStatus(e.SipStatus),
		Amount:    e.Amount,
		CreatedAt: e.CreatedAt,
	}
}

type PaymentRepository struct {
	*pg.DB
}

func NewPaymentRepository(db *pg.DB) *PaymentRepository {
	return &PaymentRepository{
		db,
	}
}

func (r *PaymentRepository) Create(ctx context.Context, p *model.Payment) (*model.Payment, error) {
	entity := toPaymentEntity(p)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toPaymentModel(entity), nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*model.Payment, error) {
	var entity PaymentEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toPaymentModel(&entity), nil
}

func (r *PaymentRepository) GetByRef(ctx context.Context, ref string) (*model.Payment, error) {
	var entity PaymentEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "ref = ?", ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toPaymentModel(&entity), nil
}

// ListUnresolved returns payments with at least one axis still SUBMITTED.
// The reconciler re-registers their pollers on startup since scheduled
// jobs do not survive a restart.
func (r *PaymentRepository) ListUnresolved(ctx context.Context) ([]*model.Payment, error) {
	var entities []*PaymentEntity
	submitted := string(model.PaymentStatusSubmitted)
	err := r.Read(ctx).WithContext(ctx).
		Where("buy_status = ? OR sip_status = ?", submitted, submitted).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	out := make([]*model.Payment, 0, len(entities))
	for _, e := range entities {
		out = append(out, toPaymentModel(e))
	}
	return out, nil
}

// ListActiveSipWithUnplacedOrders returns payments whose sip axis is
// ACTIVE while one of their SIP orders is still CREATED. That shape only
// exists when a crash separated placement from activation, or when a
// placement was parked behind KYC; the reconciler drives these payments
// through the placer again on startup.
func (r *PaymentRepository) ListActiveSipWithUnplacedOrders(ctx context.Context) ([]*model.Payment, error) {
	var entities []*PaymentEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("sip_status = ?", string(model.PaymentStatusActive)).
		Where("EXISTS (SELECT 1 FROM orders o WHERE o.payment_id = payments.id AND o.kind = ? AND o.status = ?)",
			string(model.OrderKindSip), string(model.OrderStatusCreated)).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	out := make([]*model.Payment, 0, len(entities))
	for _, e := range entities {
		out = append(out, toPaymentModel(e))
	}
	return out, nil
}

// SetBuyStatus advances buy_status only while the row still holds `from`.
// A concurrent writer that got there first leaves us matching zero rows,
// reported as ErrStaleStatus.
func (r *PaymentRepository) SetBuyStatus(ctx context.Context, id int64, from, to model.PaymentStatus) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&PaymentEntity{}).
		Where("id = ? AND buy_status = ?", id, string(from)).
		Update("buy_status", string(to))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

// SetSipStatus is the sip_status counterpart of SetBuyStatus.
func (r *PaymentRepository) SetSipStatus(ctx context.Context, id int64, from, to model.PaymentStatus) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&PaymentEntity{}).
		Where("id = ? AND sip_status = ?", id, string(from)).
		Update("sip_status", string(to))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}
