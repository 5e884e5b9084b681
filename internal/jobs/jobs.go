package jobs

import (
	"time"

	"github.com/avyukt/invest-gateway/internal/scheduler"
)

// JobControl is the slice of the scheduler the jobs drive. Every job in
// this package schedules, retires or defers itself through it; tests
// substitute a recording fake.
type JobControl interface {
	Schedule(task scheduler.Task, delay time.Duration)
	Reschedule(key string, delay time.Duration) bool
	Defer(key string, delay time.Duration)
	Cancel(key string)
	Exists(key string) bool
}
