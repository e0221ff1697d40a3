package sim

import (
	"context"
	"time"
)

// Hooks observe the loop without owning it.
type Hooks struct {
	AfterStep func(StepResult)
}

// Run drives the fixed-timestep loop until ctx is cancelled. Late ticks are
// folded into one step of at most CatchupMaxTicks budgets.
func (e *Engine) Run(ctx context.Context, hooks Hooks) {
	if e == nil {
		return
	}
	tickRate := e.cfg.TickRate
	budget := time.Second / time.Duration(tickRate)
	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	budgetSeconds := budget.Seconds()
	maxDt := budgetSeconds
	if e.cfg.CatchupMaxTicks > 1 {
		maxDt = budgetSeconds * float64(e.cfg.CatchupMaxTicks)
	}
	last := e.clock.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := e.clock.Now()
			dt := now.Sub(last).Seconds()
			if dt <= 0 {
				dt = budgetSeconds
			} else if dt > maxDt {
				e.logger.Printf("[sim] tick %d late by %.3fs, clamping step", e.Tick()+1, dt-budgetSeconds)
				dt = maxDt
			}
			last = now

			result := e.Step(dt)
			if result.Duration > budget {
				e.logger.Printf("[sim] tick %d took %s (budget %s)", result.Tick, result.Duration, budget)
			}
			if hooks.AfterStep != nil {
				hooks.AfterStep(result)
			}
		}
	}
}
