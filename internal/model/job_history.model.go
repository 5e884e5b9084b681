package model

import "time"

type JobRunStatus string

const (
	JobRunStatusSuccess JobRunStatus = "SUCCESS"
	JobRunStatusFailed  JobRunStatus = "FAILED"
)

// MaxJobErrorLen bounds the persisted error text of a job run.
const MaxJobErrorLen = 4000

// JobHistory is an append-only audit row, one per job execution. Written
// by the scheduler's run wrapper, never by job logic itself.
type JobHistory struct {
	ID         int64        `json:"id"          db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	JobKey     string       `json:"job_key"     db:"job_key"     gorm:"column:job_key;not null;index"`
	JobName    string       `json:"job_name"    db:"job_name"    gorm:"column:job_name;not null;index"`
	Trigger    string       `json:"trigger"     db:"trigger"     gorm:"column:trigger;not null"`
	StartedAt  time.Time    `json:"started_at"  db:"started_at"  gorm:"column:started_at;not null"`
	FinishedAt time.Time    `json:"finished_at" db:"finished_at" gorm:"column:finished_at;not null"`
	DurationMs int64        `json:"duration_ms" db:"duration_ms" gorm:"column:duration_ms;not null"`
	Status     JobRunStatus `json:"status"      db:"status"      gorm:"column:status;not null;index"`
	Error      string       `json:"error"       db:"error"       gorm:"column:error"`
}

func (JobHistory) TableName() string { return "job_history" }

// JobHistoryFilter controls history list queries.
type JobHistoryFilter struct {
	JobName *string
	JobKey  *string
	Status  *JobRunStatus
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}
