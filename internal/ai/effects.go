package ai

import (
	"blockworld/mobs/internal/status"
	"blockworld/mobs/logging/combat"
	statuslog "blockworld/mobs/logging/status_effects"
)

// AddEffect applies a status effect through the injected provider.
func (c *Controller) AddEffect(m *Mob, effect status.Effect, t *Tick) bool {
	if m == nil || m.Dead {
		return false
	}
	if !c.status.Add(m.ID, effect) {
		return false
	}
	statuslog.Applied(t.ctx(), c.pub, t.number(), ref(m), statuslog.AppliedPayload{
		StatusEffect: string(status.Normalize(string(effect.Type))),
		Level:        effect.Level,
		Duration:     effect.Remaining,
		SourceID:     effect.Source,
	}, nil)
	return true
}

// TickEffects advances the mob's status effects by one step. Poison never
// kills on its own, so health stays positive here.
func (c *Controller) TickEffects(m *Mob, t *Tick) {
	if m == nil || m.Dead {
		return
	}
	m.Sanitize()
	change := c.status.Tick(m.ID, t.delta(), m, c.rng)
	if change.HealthDelta < 0 {
		combat.Damage(t.ctx(), c.pub, t.number(), ref(m), nil, combat.DamagePayload{
			Amount:    -change.HealthDelta,
			Requested: -change.HealthDelta,
			Health:    m.Health,
			Source:    string(status.Poison),
		}, nil)
	}
	for _, eff := range change.Expired {
		statuslog.Expired(t.ctx(), c.pub, t.number(), ref(m), statuslog.ExpiredPayload{
			StatusEffect: string(eff.Type),
			Level:        eff.Level,
		}, nil)
	}
}
