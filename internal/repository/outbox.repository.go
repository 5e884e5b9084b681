package repository

import (
	"context"
	"time"

	"github.com/avyukt/invest-gateway/pkg/pg"
	"github.com/google/uuid"
)

type OutboxEntity struct {
	ID           uuid.UUID  `db:"id"            gorm:"primaryKey;column:id;type:uuid"`
	EventType    string     `db:"event_type"    gorm:"column:event_type;not null;index"`
	Payload      []byte     `db:"payload"       gorm:"column:payload;not null"`
	CreatedAt    time.Time  `db:"created_at"    gorm:"column:created_at;autoCreateTime;index"`
	DispatchedAt *time.Time `db:"dispatched_at" gorm:"column:dispatched_at;index"`
}

func (OutboxEntity) TableName() string { return "outbox" }

type OutboxRepository struct {
	*pg.DB
}

func NewOutboxRepository(db *pg.DB) *OutboxRepository {
	return &OutboxRepository{
		db,
	}
}

// Append inserts an event row. When the ctx carries an open transaction
// (pg.WithinTransaction) the row commits or rolls back with the state
// change that produced it; that is what makes dispatch after-commit.
func (r *OutboxRepository) Append(ctx context.Context, eventType string, payload []byte) (*OutboxEntity, error) {
	entity := &OutboxEntity{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
	}
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return entity, nil
}

// FetchUndispatched returns the oldest pending rows.
func (r *OutboxRepository) FetchUndispatched(ctx context.Context, limit int) ([]*OutboxEntity, error) {
	if limit <= 0 {
		limit = 100
	}
	var entities []*OutboxEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("dispatched_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *OutboxRepository) MarkDispatched(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.Write(ctx).WithContext(ctx).
		Model(&OutboxEntity{}).
		Where("id = ?", id).
		Update("dispatched_at", now).Error
}
