package repository

import (
	"context"
	"time"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/pkg/pg"
)

type JobHistoryEntity struct {
	ID         int64     `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	JobKey     string    `db:"job_key"     gorm:"column:job_key;not null;index"`
	JobName    string    `db:"job_name"    gorm:"column:job_name;not null;index"`
	Trigger    string    `db:"trigger"     gorm:"column:trigger;not null"`
	StartedAt  time.Time `db:"started_at"  gorm:"column:started_at;not null"`
	FinishedAt time.Time `db:"finished_at" gorm:"column:finished_at;not null"`
	DurationMs int64     `db:"duration_ms" gorm:"column:duration_ms;not null"`
	Status     string    `db:"status"      gorm:"column:status;not null;index"`
	Error      string    `db:"error"       gorm:"column:error"`
}

func (JobHistoryEntity) TableName() string { return "job_history" }

func toJobHistoryModel(e *JobHistoryEntity) *model.JobHistory {
	if e == nil {
		return nil
	}
	return &model.JobHistory{
		ID:         e.ID,
		JobKey:     e.JobKey,
		JobName:    e.JobName,
		Trigger:    e.Trigger,
		StartedAt:  e.StartedAt,
		FinishedAt: e.FinishedAt,
		DurationMs: e.DurationMs,
		Status:     model.JobRunStatus(e.Status),
		Error:      e.Error,
	}
}

type JobHistoryRepository struct {
	*pg.DB
}

func NewJobHistoryRepository(db *pg.DB) *JobHistoryRepository {
	return &JobHistoryRepository{
		db,
	}
}

// Create appends one execution row. The error text is truncated here so no
// caller can blow past the column size.
func (r *JobHistoryRepository) Create(ctx context.Context, h *model.JobHistory) (*model.JobHistory, error) {
	errText := h.Error
	if len(errText) > model.MaxJobErrorLen {
		errText = errText[:model.MaxJobErrorLen]
	}
	entity := &JobHistoryEntity{
		JobKey:     h.JobKey,
		JobName:    h.JobName,
		Trigger:    h.Trigger,
		StartedAt:  h.StartedAt,
		FinishedAt: h.FinishedAt,
		DurationMs: h.DurationMs,
		Status:     string(h.Status),
		Error:      errText,
	}
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toJobHistoryModel(entity), nil
}

func (r *JobHistoryRepository) List(ctx context.Context, f model.JobHistoryFilter) ([]*model.JobHistory, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&JobHistoryEntity{})

	if f.JobName != nil {
		q = q.Where("job_name = ?", *f.JobName)
	}
	if f.JobKey != nil {
		q = q.Where("job_key = ?", *f.JobKey)
	}
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}
	if f.From != nil {
		q = q.Where("started_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("started_at < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*JobHistoryEntity
	if err := q.Order("started_at DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	models := make([]*model.JobHistory, len(entities))
	for i, e := range entities {
		models[i] = toJobHistoryModel(e)
	}
	return models, total, nil
}
