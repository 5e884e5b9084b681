package scheduler

import (
	"context"
	"time"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/pkg/logger"
	"github.com/avyukt/invest-gateway/pkg/prom"
)

// Recorder receives one callback per job execution, success or failure.
// Recording is wrapped around every run by the scheduler itself so job
// logic never touches it.
type Recorder interface {
	Record(ctx context.Context, h *model.JobHistory)
}

type JobHistoryRepository interface {
	Create(ctx context.Context, h *model.JobHistory) (*model.JobHistory, error)
}

// HistoryRecorder persists executions as append-only job_history rows and
// bumps the prometheus counters. A failed write is logged and dropped; the
// audit trail must never fail a job.
type HistoryRecorder struct {
	repo JobHistoryRepository
}

func NewHistoryRecorder(repo JobHistoryRepository) *HistoryRecorder {
	return &HistoryRecorder{repo: repo}
}

func (r *HistoryRecorder) Record(ctx context.Context, h *model.JobHistory) {
	prom.ObserveJobExecution(h.JobName, string(h.Status), time.Duration(h.DurationMs)*time.Millisecond)

	if _, err := r.repo.Create(ctx, h); err != nil {
		logger.Error("failed to record job history", "job_key", h.JobKey, "error", err)
	}
}

// NopRecorder discards executions; used in tests that assert scheduling
// behavior only.
type NopRecorder struct{}

func (NopRecorder) Record(ctx context.Context, h *model.JobHistory) {}
