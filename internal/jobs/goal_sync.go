package jobs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/avyukt/invest-gateway/internal/scheduler"
	"github.com/avyukt/invest-gateway/pkg/logger"
	"github.com/shopspring/decimal"
)

type GoalStore interface {
	SetCurrentAmount(ctx context.Context, id int64, amount decimal.Decimal) error
}

type LedgerTotals interface {
	SumCompletedAmountByGoal(ctx context.Context, goalID int64) (decimal.Decimal, error)
}

// GoalSync recomputes a goal's current amount from the ledger. Triggers
// are debounced per goal: a burst of ledger writes collapses into one
// recompute at the last event's time plus the debounce delay.
type GoalSync struct {
	goals    GoalStore
	ledger   LedgerTotals
	sched    JobControl
	debounce time.Duration
}

func NewGoalSync(goals GoalStore, totals LedgerTotals, sched JobControl, debounce time.Duration) *GoalSync {
	return &GoalSync{
		goals:    goals,
		ledger:   totals,
		sched:    sched,
		debounce: debounce,
	}
}

func (g *GoalSync) Trigger(goalID int64) {
	g.sched.Schedule(scheduler.Task{
		Key:     GoalSyncKey(goalID),
		Name:    "goal-sync",
		Trigger: scheduler.TriggerEvent,
		Params: scheduler.Params{
			scheduler.ParamGoalID: strconv.FormatInt(goalID, 10),
		},
		Run: g.run,
	}, g.debounce)
}

func (g *GoalSync) run(ctx context.Context, p scheduler.Params) error {
	goalID, err := strconv.ParseInt(p[scheduler.ParamGoalID], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid goal_id param %q: %w", p[scheduler.ParamGoalID], err)
	}

	total, err := g.ledger.SumCompletedAmountByGoal(ctx, goalID)
	if err != nil {
		return err
	}
	if err := g.goals.SetCurrentAmount(ctx, goalID, total); err != nil {
		return err
	}

	logger.Info("goal amount recomputed from ledger", "goal_id", goalID, "current_amount", total)
	return nil
}
