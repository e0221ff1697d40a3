package ai

import (
	"math"

	"blockworld/mobs/internal/status"
	"blockworld/mobs/logging/behavior"
)

type feignDeathModule struct{}

func (feignDeathModule) update(c *Controller, m *Mob, sp *Species, t *Tick) (bool, []ActionResult) {
	dead, ok := m.Brain.Sub.(*PlayingDead)
	if !ok {
		return false, nil
	}
	c.stop(m)
	dead.Remaining -= t.delta()
	if dead.Remaining > 0 {
		return true, nil
	}
	m.Brain.Sub = nil
	c.setState(m, StateIdle, "recovered", t)
	behavior.Animation(t.ctx(), c.pub, t.number(), ref(m), behavior.AnimationPayload{Animation: "play_dead", Phase: "end"}, nil)
	return true, nil
}

// tryFeignDeath may convert a heavy hit into playing dead. It returns the
// damage that should still be applied.
func (c *Controller) tryFeignDeath(m *Mob, sp *Species, amount float64, t *Tick) float64 {
	cfg := sp.FeignDeath
	if cfg == nil || m.Brain.Sub != nil {
		return amount
	}
	if m.Health-amount > m.MaxHealth*cfg.HealthFraction {
		return amount
	}
	if !c.roll(cfg.Chance) {
		return amount
	}
	m.Brain.Sub = &PlayingDead{Remaining: cfg.Duration}
	m.Brain.TargetID = ""
	m.Brain.ThreatID = ""
	m.Brain.State = StateIdle
	m.Brain.StateTime = 0
	c.stop(m)
	c.AddEffect(m, status.Effect{
		Type:      status.Regeneration,
		Level:     cfg.RegenerationLevel,
		Remaining: cfg.RegenerationDuration,
		Source:    m.ID,
	}, t)
	behavior.Animation(t.ctx(), c.pub, t.number(), ref(m), behavior.AnimationPayload{Animation: "play_dead", Phase: "begin"}, nil)
	return math.Max(0, amount-cfg.DamageReduction)
}
