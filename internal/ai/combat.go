package ai

import (
	"math"

	"blockworld/mobs/internal/geom"
	"blockworld/mobs/logging"
	"blockworld/mobs/logging/combat"
)

// TakeDamage applies damage to the mob and reports whether it died. Negative
// or NaN amounts are ignored. sourceID may be empty for environmental damage.
func (c *Controller) TakeDamage(m *Mob, amount float64, sourceID string, t *Tick) bool {
	if m == nil || m.Dead || amount <= 0 || math.IsNaN(amount) {
		return false
	}
	m.Sanitize()
	if m.Dead {
		return false
	}
	sp := c.species(m)
	b := &m.Brain
	requested := amount

	if _, sitting := b.Sub.(*Sitting); sitting {
		b.Sub = nil
	}
	amount = c.tryFeignDeath(m, sp, amount, t)

	m.Health = geom.Clamp(m.Health-amount, 0, m.MaxHealth)
	var source *logging.EntityRef
	if src, ok := c.resolve(t, sourceID); ok {
		r := entityRef(src)
		source = &r
	}
	combat.Damage(t.ctx(), c.pub, t.number(), ref(m), source, combat.DamagePayload{
		Amount:    amount,
		Requested: requested,
		Health:    m.Health,
		Source:    sourceID,
	}, nil)

	if m.Health <= 0 {
		c.kill(m, sourceID, t)
		return true
	}

	if sourceID != "" && sourceID != m.ID {
		c.react(m, sp, amount, sourceID, t)
	}
	if sp.FleeHealth > 0 && m.Health <= sp.FleeHealth && b.TargetID != "" && b.Sub == nil {
		b.ThreatID = b.TargetID
		c.setState(m, StateFlee, "low_health", t)
	}
	return false
}

// react updates aggro and targeting after being hurt by sourceID.
func (c *Controller) react(m *Mob, sp *Species, amount float64, sourceID string, t *Tick) {
	b := &m.Brain
	if b.Sub != nil {
		return
	}
	if sp.Targeting.UseAggro {
		c.Anger(m, sourceID, amount*sp.Targeting.AggroPerDamage)
	}
	switch {
	case sp.PanicOnHurt:
		b.ThreatID = sourceID
		c.setState(m, StateFlee, "hurt", t)
	case sp.Offensive():
		if b.TargetID == "" || (b.State != StateFollow && b.State != StateAttack) {
			b.TargetID = sourceID
			c.setState(m, StateFollow, "retaliate", t)
		}
	}
}

// kill performs the atomic death transition.
func (c *Controller) kill(m *Mob, sourceID string, t *Tick) {
	m.Health = 0
	m.Dead = true
	m.Velocity = geom.Vec3{}
	m.Knockback = geom.Vec3{}
	m.InLove = false
	m.LoveRemaining = 0
	prev := m.Brain.State
	m.resetBrain()
	c.status.Clear(m.ID)
	combat.Defeat(t.ctx(), c.pub, t.number(), ref(m), combat.DefeatPayload{Source: sourceID}, map[string]any{"state": string(prev)})
}

// Attack performs a melee hit from attacker on targetID. It is gated by range,
// liveness and the attack cooldown, and applies damage immediately.
func (c *Controller) Attack(attacker *Mob, targetID string, t *Tick) bool {
	if attacker == nil || attacker.Dead || targetID == "" || targetID == attacker.ID {
		return false
	}
	attacker.Sanitize()
	sp := c.species(attacker)
	if sp.Attack.Damage <= 0 || !attacker.Brain.Cooldowns.Ready(CooldownAttack) {
		return false
	}
	target, ok := c.resolve(t, targetID)
	if !ok {
		return false
	}
	if geom.Distance(attacker.Position, target.position()) > sp.Attack.Range {
		return false
	}
	attacker.Brain.Cooldowns.Set(CooldownAttack, sp.Attack.Cooldown)

	push := geom.HorizontalDirection(attacker.Position, target.position()).Mul(sp.Attack.Knockback)
	remaining := c.hit(attacker, target, sp.Attack.Damage, push, t)
	combat.Attack(t.ctx(), c.pub, t.number(), ref(attacker), entityRef(target), combat.AttackPayload{
		Damage:       sp.Attack.Damage,
		TargetHealth: remaining,
	}, nil)
	return true
}

// hit applies damage and knockback to another entity and returns its health
// afterwards.
func (c *Controller) hit(attacker *Mob, target entity, damage float64, push geom.Vec3, t *Tick) float64 {
	switch {
	case target.mob != nil:
		if !target.mob.Dead {
			target.mob.Knockback = target.mob.Knockback.Add(push)
		}
		c.TakeDamage(target.mob, damage, attacker.ID, t)
		return target.mob.Health
	case target.player != nil:
		target.player.Velocity = target.player.Velocity.Add(push)
		if target.player.ApplyDamage(damage) {
			combat.Defeat(t.ctx(), c.pub, t.number(), logging.PlayerRef(target.player.ID), combat.DefeatPayload{Source: attacker.ID}, nil)
		}
		return target.player.Health
	}
	return 0
}

func entityRef(e entity) logging.EntityRef {
	if e.mob != nil {
		return ref(e.mob)
	}
	return logging.PlayerRef(e.id)
}
