package repository

import (
	"context"
	"errors"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/pkg/pg"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")
)

type OrderRepository struct {
	*pg.DB
}

func NewOrderRepository(db *pg.DB) *OrderRepository {
	return &OrderRepository{
		db,
	}
}

func (r *OrderRepository) Create(ctx context.Context, order *model.Order) (*model.Order, error) {
	entity := toOrderEntity(order)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toOrderModel(entity), nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	var entity OrderEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toOrderModel(&entity), nil
}

// ListByPayment returns the orders under a payment, optionally narrowed to
// one kind.
func (r *OrderRepository) ListByPayment(ctx context.Context, paymentID int64, kind *model.OrderKind) ([]*model.Order, error) {
	q := r.Read(ctx).WithContext(ctx).Where("payment_id = ?", paymentID)
	if kind != nil {
		q = q.Where("kind = ?", string(*kind))
	}

	var entities []*OrderEntity
	if err := q.Order("id ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toOrderModels(entities), nil
}

// UpdateStatus moves an order's lifecycle status. The caller decides the
// transition; this is a plain guarded write.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&OrderEntity{}).
		Where("id = ?", id).
		Update("status", string(status)).Error
}

func (r *OrderRepository) CreateItem(ctx context.Context, item *model.OrderItem) (*model.OrderItem, error) {
	entity := toOrderItemEntity(item)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toOrderItemModel(entity), nil
}

// ItemsByRef returns all line items sharing one provider submission ref,
// ordered by id so distribution passes are deterministic.
func (r *OrderRepository) ItemsByRef(ctx context.Context, ref string) ([]*model.OrderItem, error) {
	var entities []*OrderItemEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("ref = ?", ref).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toOrderItemModels(entities), nil
}

// ItemsByOrder returns the line items of one order, ordered by id.
func (r *OrderRepository) ItemsByOrder(ctx context.Context, orderID int64) ([]*model.OrderItem, error) {
	var entities []*OrderItemEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toOrderItemModels(entities), nil
}

// ItemRefsByPayment returns the distinct provider refs of every line item
// under a payment's orders.
func (r *OrderRepository) ItemRefsByPayment(ctx context.Context, paymentID int64) ([]string, error) {
	var refs []string
	err := r.Read(ctx).WithContext(ctx).
		Table("order_items AS oi").
		Joins("JOIN orders o ON o.id = oi.order_id").
		Where("o.payment_id = ?", paymentID).
		Distinct().
		Pluck("oi.ref", &refs).Error
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// ListItemsAwaitingFulfillment returns line items already handed to the
// provider whose fills have not landed yet. The reconciler re-registers
// their fulfillment polls on startup since scheduled jobs do not survive
// a restart. Orders still in CREATED are excluded: nothing was submitted
// for them, so there is no provider state to poll.
func (r *OrderRepository) ListItemsAwaitingFulfillment(ctx context.Context) ([]*model.OrderItem, error) {
	open := []string{
		string(model.OrderItemStatusCreated),
		string(model.OrderItemStatusSubmitted),
	}
	var entities []*OrderItemEntity
	err := r.Read(ctx).WithContext(ctx).
		Table("order_items AS oi").
		Select("oi.*").
		Joins("JOIN orders o ON o.id = oi.order_id").
		Where("o.status <> ?", string(model.OrderStatusCreated)).
		Where("oi.units IS NULL").
		Where("oi.status IN ?", open).
		Order("oi.id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toOrderItemModels(entities), nil
}

// UpdateItemFulfillment writes the distributed units and price for one
// item. Guarded by `units IS NULL` so a repeated poll cannot overwrite a
// populated item; callers check RowsAffected when they care.
func (r *OrderRepository) UpdateItemFulfillment(ctx context.Context, itemID int64, units decimal.Decimal, unitPrice *decimal.Decimal, status model.OrderItemStatus) error {
	updates := map[string]interface{}{
		"units":  units,
		"status": string(status),
	}
	if unitPrice != nil {
		updates["unit_price"] = *unitPrice
	}
	return r.Write(ctx).WithContext(ctx).
		Model(&OrderItemEntity{}).
		Where("id = ? AND units IS NULL", itemID).
		Updates(updates).Error
}

func (r *OrderRepository) UpdateItemStatus(ctx context.Context, itemID int64, status model.OrderItemStatus) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&OrderItemEntity{}).
		Where("id = ?", itemID).
		Update("status", string(status)).Error
}

// AdvanceItemCursor moves the SIP re-sync cursor forward.
func (r *OrderRepository) AdvanceItemCursor(ctx context.Context, itemID int64, txnRef string) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&OrderItemEntity{}).
		Where("id = ?", itemID).
		Update("last_processed_txn_ref", txnRef).Error
}
