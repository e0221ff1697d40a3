package ai

import (
	"math"

	"blockworld/mobs/internal/geom"
	"blockworld/mobs/internal/world"
)

// module is a species extension. Returning true claims the tick and skips the
// base state machine.
type module interface {
	update(c *Controller, m *Mob, sp *Species, t *Tick) (bool, []ActionResult)
}

const (
	wanderArriveRadius = 0.5
	// attackLeash is how far past attack range a target may drift before an
	// attacking mob goes back to following it.
	attackLeash    = 1.25
	fleeExitFactor = 1.5
)

// runState executes the current state's per-tick logic.
func (c *Controller) runState(m *Mob, sp *Species, t *Tick) {
	b := &m.Brain
	dt := t.delta()
	switch b.State {
	case StateIdle:
		c.stop(m)
	case StateWander:
		b.WanderRemaining -= dt
		if geom.HorizontalDistance(m.Position, b.WanderTarget) < wanderArriveRadius {
			c.stop(m)
			return
		}
		c.move(m, geom.HorizontalDirection(m.Position, b.WanderTarget), sp.Speed*sp.Wander.SpeedMultiplier, dt)
	case StateFollow:
		target, ok := c.resolve(t, b.TargetID)
		if !ok {
			c.stop(m)
			return
		}
		if geom.Distance(m.Position, target.position()) <= sp.Attack.Range*0.9 {
			c.stop(m)
			c.face(m, target.position())
			return
		}
		c.move(m, geom.HorizontalDirection(m.Position, target.position()), sp.Speed, dt)
	case StateAttack:
		c.stop(m)
		target, ok := c.resolve(t, b.TargetID)
		if !ok {
			return
		}
		c.face(m, target.position())
		c.Attack(m, target.id, t)
	case StateFlee:
		threat, ok := c.resolve(t, b.ThreatID)
		if !ok {
			c.stop(m)
			return
		}
		away := geom.HorizontalDirection(threat.position(), m.Position)
		if away == (geom.Vec3{}) {
			away = geom.Vec3{math.Sin(m.Yaw), 0, math.Cos(m.Yaw)}
		}
		c.move(m, away, sp.Speed*sp.FleeSpeedMultiplier, dt)
	}
}

// transition evaluates the guards leaving the current state.
func (c *Controller) transition(m *Mob, sp *Species, t *Tick) {
	b := &m.Brain
	switch b.State {
	case StateIdle:
		if c.acquire(m, sp, t) {
			return
		}
		if c.roll(sp.Wander.Chance) {
			c.startWander(m, sp, t)
		}
	case StateWander:
		if c.acquire(m, sp, t) {
			return
		}
		if geom.HorizontalDistance(m.Position, b.WanderTarget) < wanderArriveRadius {
			c.setState(m, StateIdle, "arrived", t)
		} else if b.WanderRemaining <= 0 {
			c.setState(m, StateIdle, "wander_timeout", t)
		}
	case StateFollow, StateAttack:
		target, ok := c.resolve(t, b.TargetID)
		if !ok {
			c.loseTarget(m, "target_lost", t)
			return
		}
		dist := geom.Distance(m.Position, target.position())
		if dist > sp.Targeting.AggroRange {
			c.loseTarget(m, "out_of_range", t)
			return
		}
		if sp.FleeHealth > 0 && m.Health <= sp.FleeHealth {
			b.ThreatID = target.id
			c.setState(m, StateFlee, "low_health", t)
			return
		}
		if sp.Targeting.UseAggro {
			c.reconsiderTarget(m, sp, t)
		}
		switch {
		case b.State == StateFollow && sp.Offensive() && dist <= sp.Attack.Range:
			c.setState(m, StateAttack, "in_range", t)
		case b.State == StateAttack && dist > sp.Attack.Range*attackLeash:
			c.setState(m, StateFollow, "target_moved", t)
		}
	case StateFlee:
		threat, ok := c.resolve(t, b.ThreatID)
		escaped := !ok || geom.Distance(m.Position, threat.position()) > sp.Targeting.AggroRange*fleeExitFactor
		// Panicked grazers calm down after fleeTimeout even when still chased.
		calmed := sp.FleeTimeout > 0 && b.StateTime >= sp.FleeTimeout
		if escaped || calmed {
			reason := "escaped"
			if !escaped {
				reason = "calmed"
			}
			b.ThreatID = ""
			b.TargetID = ""
			c.setState(m, StateIdle, reason, t)
		}
	}
}

func (c *Controller) startWander(m *Mob, sp *Species, t *Tick) {
	angle := world.RandomAngle(c.rng)
	dist := world.RandomDistance(c.rng, sp.Wander.Radius*0.25, sp.Wander.Radius)
	m.Brain.WanderTarget = m.Position.Add(geom.Vec3{math.Sin(angle) * dist, 0, math.Cos(angle) * dist})
	m.Brain.WanderRemaining = sp.Wander.Timeout
	c.setState(m, StateWander, "wander", t)
}

func (c *Controller) loseTarget(m *Mob, reason string, t *Tick) {
	if m.Brain.TargetID != "" {
		delete(m.Brain.Aggro, m.Brain.TargetID)
	}
	m.Brain.TargetID = ""
	c.stop(m)
	c.setState(m, StateIdle, reason, t)
}

// acquire runs a throttled targeting scan and switches to follow on success.
func (c *Controller) acquire(m *Mob, sp *Species, t *Tick) bool {
	if !sp.Offensive() {
		return false
	}
	b := &m.Brain
	if b.TargetID != "" {
		if _, ok := c.resolve(t, b.TargetID); ok {
			c.setState(m, StateFollow, "target_kept", t)
			return true
		}
		b.TargetID = ""
	}
	if !sp.Hostile && !sp.Targeting.UseAggro {
		return false
	}
	if !b.Cooldowns.Ready(CooldownTarget) {
		return false
	}
	b.Cooldowns.Set(CooldownTarget, sp.Targeting.Cooldown)
	best, ok := c.SelectTarget(m, t)
	if !ok {
		return false
	}
	b.TargetID = best.ID
	c.setState(m, StateFollow, "target_acquired", t)
	return true
}

// reconsiderTarget lets aggro-driven species switch to a hotter target.
func (c *Controller) reconsiderTarget(m *Mob, sp *Species, t *Tick) {
	b := &m.Brain
	if !b.Cooldowns.Ready(CooldownTarget) {
		return
	}
	b.Cooldowns.Set(CooldownTarget, sp.Targeting.Cooldown)
	best, ok := c.SelectTarget(m, t)
	if !ok || best.ID == b.TargetID {
		return
	}
	if best.Aggro > b.Aggro[b.TargetID] {
		b.TargetID = best.ID
		c.setState(m, StateFollow, "target_switched", t)
	}
}
