package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/avyukt/invest-gateway/internal/model"
	"github.com/avyukt/invest-gateway/pkg/logger"
	"github.com/avyukt/invest-gateway/pkg/worker"
)

// Params is the job payload: a simple keyed map, documented per job.
type Params map[string]string

const (
	ParamOrderRef   = "order_ref"
	ParamOrderID    = "order_id"
	ParamPaymentID  = "payment_id"
	ParamPaymentRef = "payment_ref"
	ParamMandateID  = "mandate_id"
	ParamGoalID     = "goal_id"
	ParamUserID     = "user_id"
)

const (
	TriggerInterval = "interval"
	TriggerOneShot  = "one-shot"
	TriggerManual   = "manual"
	TriggerEvent    = "event"
)

// Task is one schedulable unit of work. Interval > 0 makes it recurring;
// Timeout > 0 bounds its total lifetime from first schedule, after which
// the scheduler removes it without running. A task may also remove itself
// from inside Run via Scheduler.Cancel (terminal provider state).
type Task struct {
	Key      string
	Name     string
	Trigger  string
	Params   Params
	Interval time.Duration
	Timeout  time.Duration
	Run      func(ctx context.Context, p Params) error
}

type entry struct {
	task     Task
	timer    *time.Timer
	startAt  time.Time
	deferred *time.Duration
}

// Scheduler owns the ephemeral job lifecycle: create-if-absent,
// debounce-and-reschedule, bounded-timeout self-termination, single-flight
// execution per key, and execution-history recording. Fired timers hand
// the key to a shared worker pool; all coordination beyond the in-process
// timer map goes through the locker and the persistent store.
type Scheduler struct {
	mu       sync.Mutex
	entries  map[string]*entry
	worker   *worker.Pool
	locker   Locker
	recorder Recorder
	lockTTL  time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
}

type Config struct {
	Workers   int
	QueueSize int
	LockTTL   time.Duration
}

func New(cfg Config, locker Locker, recorder Recorder) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 32
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 10_000
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		entries:  make(map[string]*entry),
		worker:   worker.NewPool(cfg.QueueSize, cfg.Workers),
		locker:   locker,
		recorder: recorder,
		lockTTL:  cfg.LockTTL,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.worker.SetHandler(s.execute)
	return s
}

// Start runs the worker pool until Stop.
func (s *Scheduler) Start() {
	s.worker.Start()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.mu.Lock()
	for key, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, key)
	}
	s.mu.Unlock()
	s.worker.Stop()
}

// Schedule registers the task to fire after delay. If a task with the same
// key already exists it is debounced instead: the pending fire moves to
// now+delay and the new task definition is ignored. Bursts of triggering
// events therefore collapse into one execution at the time of the last
// event.
func (s *Scheduler) Schedule(task Task, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[task.Key]; ok {
		e.timer.Reset(delay)
		logger.Debug("job rescheduled", "key", task.Key, "delay", delay)
		return
	}

	key := task.Key
	e := &entry{
		task:    task,
		startAt: time.Now(),
	}
	e.timer = time.AfterFunc(delay, func() {
		select {
		case <-s.ctx.Done():
		default:
			s.worker.Submit(key)
		}
	})
	s.entries[key] = e
	logger.Info("job scheduled", "key", key, "name", task.Name, "delay", delay, "interval", task.Interval, "timeout", task.Timeout)
}

// Reschedule moves an existing task's next fire to now+delay. Unknown keys
// are a no-op so event listeners can debounce blindly.
func (s *Scheduler) Reschedule(key string, delay time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	e.timer.Reset(delay)
	return true
}

// Cancel removes the task. Safe to call from inside the task's own Run.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		e.timer.Stop()
		delete(s.entries, key)
		logger.Info("job removed", "key", key)
	}
}

// Defer overrides the task's next fire with an explicit delay, taking
// precedence over the interval for the tick in flight. Jobs that back off
// on provider errors call this from inside Run.
func (s *Scheduler) Defer(key string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		d := delay
		e.deferred = &d
	}
}

func (s *Scheduler) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// execute runs on the worker pool with a job key dequeued from a fired
// timer.
func (s *Scheduler) execute(workerIndex int, job interface{}) {
	key, ok := job.(string)
	if !ok {
		logger.Error("invalid job type in scheduler worker", "worker", workerIndex)
		return
	}

	s.mu.Lock()
	e, exists := s.entries[key]
	s.mu.Unlock()
	if !exists {
		// Cancelled between fire and dequeue.
		return
	}
	task := e.task

	if task.Timeout > 0 && time.Since(e.startAt) > task.Timeout {
		logger.Info("job exceeded its lifetime, removing", "key", key, "timeout", task.Timeout)
		s.Cancel(key)
		return
	}

	acquired, err := s.locker.Acquire(key, s.lockTTL)
	if err != nil {
		logger.Warn("failed to acquire job lock, skipping tick", "key", key, "error", err)
		s.rearm(key, e)
		return
	}
	if !acquired {
		logger.Debug("job lock held elsewhere, skipping tick", "key", key)
		s.rearm(key, e)
		return
	}
	defer func() {
		if err := s.locker.Release(key); err != nil {
			logger.Warn("failed to release job lock", "key", key, "error", err)
		}
	}()

	start := time.Now()
	runErr := s.runTask(task)
	finish := time.Now()

	h := &model.JobHistory{
		JobKey:     key,
		JobName:    task.Name,
		Trigger:    task.Trigger,
		StartedAt:  start,
		FinishedAt: finish,
		DurationMs: finish.Sub(start).Milliseconds(),
		Status:     model.JobRunStatusSuccess,
	}
	if runErr != nil {
		h.Status = model.JobRunStatusFailed
		h.Error = runErr.Error()
		logger.Error("job execution failed", "key", key, "name", task.Name, "error", runErr)
	}
	s.recorder.Record(s.ctx, h)

	s.rearm(key, e)
}

// rearm schedules the next tick for recurring tasks and retires finished
// one-shots. A task that cancelled itself during Run stays gone.
func (s *Scheduler) rearm(key string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.entries[key]
	if !ok || current != e {
		return
	}
	if e.deferred != nil {
		e.timer.Reset(*e.deferred)
		e.deferred = nil
		return
	}
	if e.task.Interval > 0 {
		e.timer.Reset(e.task.Interval)
		return
	}
	delete(s.entries, key)
}

// runTask bounds the run to the lock TTL so the lease cannot expire while
// the task is still executing, and converts panics into recorded errors.
func (s *Scheduler) runTask(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job: %v\n%s", r, debug.Stack())
		}
	}()

	ctx, cancel := context.WithTimeout(s.ctx, s.lockTTL)
	defer cancel()
	return task.Run(ctx, task.Params)
}
