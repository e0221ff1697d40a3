package ai

import (
	"math"

	"blockworld/mobs/internal/geom"
	"blockworld/mobs/internal/world"
	"blockworld/mobs/logging/behavior"
	"blockworld/mobs/logging/combat"
)

type ramModule struct{}

func (ramModule) update(c *Controller, m *Mob, sp *Species, t *Tick) (bool, []ActionResult) {
	charge, ok := m.Brain.Sub.(*Charging)
	if !ok {
		if m.Brain.Sub != nil {
			return false, nil
		}
		return c.startCharge(m, sp, t), nil
	}
	cfg := sp.Ram
	dt := t.delta()
	charge.Elapsed += dt

	if charge.Phase == PhaseWindup {
		c.stop(m)
		if charge.Elapsed >= cfg.Windup {
			charge.Phase = PhaseMoving
			charge.Elapsed = 0
			behavior.Sound(t.ctx(), c.pub, t.number(), ref(m), behavior.SoundPayload{Sound: m.Species + ".ram_impact_start"}, nil)
		}
		return true, nil
	}

	if charge.Elapsed > cfg.MaxDuration {
		c.endCharge(m, sp, "timeout", t)
		return true, nil
	}
	target, ok := c.resolve(t, charge.TargetID)
	if !ok || geom.Distance(m.Position, target.position()) > cfg.GiveUpDistance {
		c.endCharge(m, sp, "target_lost", t)
		return true, nil
	}

	speed := sp.Speed * cfg.SpeedMultiplier
	next := m.Position.Add(charge.Direction.Mul(speed * dt))
	if block, hit := c.ramBlocked(m, cfg, next, charge.Direction, t); hit {
		c.stop(m)
		if contains(cfg.HardBlocks, block.Type) && cfg.DropItem != "" && c.roll(cfg.DropChance) {
			if w := t.world(); w != nil {
				w.DropItem(world.ItemDrop{ID: cfg.DropItem, Count: 1, Position: m.Position})
			}
			behavior.Sound(t.ctx(), c.pub, t.number(), ref(m), behavior.SoundPayload{Sound: m.Species + ".horn_break"}, nil)
		}
		c.endCharge(m, sp, "blocked", t)
		return true, nil
	}
	m.Position = next
	m.Velocity = charge.Direction.Mul(speed)
	m.Yaw = geom.Yaw(charge.Direction, m.Yaw)

	if c.ramEntities(m, sp, charge, t) {
		c.endCharge(m, sp, "hit_target", t)
	}
	return true, nil
}

// startCharge rolls for a new charge at a visible target.
func (c *Controller) startCharge(m *Mob, sp *Species, t *Tick) bool {
	cfg := sp.Ram
	b := &m.Brain
	if b.State != StateIdle && b.State != StateWander {
		return false
	}
	if m.Baby || !b.Cooldowns.Ready(CooldownRam) || !c.roll(cfg.Chance) {
		return false
	}
	cands := rank(c.candidates(m, sp, t, targetQuery{radius: cfg.Range, targets: cfg.Targets, lineOfSight: true}), false)
	if len(cands) == 0 {
		return false
	}
	target, ok := c.resolve(t, cands[0].ID)
	if !ok {
		return false
	}
	dir := geom.HorizontalDirection(m.Position, target.position())
	if dir == (geom.Vec3{}) {
		return false
	}
	b.Sub = &Charging{
		Phase:     PhaseWindup,
		Direction: dir,
		TargetID:  target.id,
		Hits:      make(map[string]bool),
	}
	c.stop(m)
	m.Yaw = geom.Yaw(dir, m.Yaw)
	behavior.Animation(t.ctx(), c.pub, t.number(), ref(m), behavior.AnimationPayload{Animation: "ram", Phase: string(PhaseWindup)}, nil)
	return true
}

// ramBlocked probes ahead of the mob at feet and head height.
func (c *Controller) ramBlocked(m *Mob, cfg *RamConfig, next, dir geom.Vec3, t *Tick) (world.Block, bool) {
	w := t.world()
	if w == nil {
		return world.Block{}, false
	}
	probe := next.Add(dir.Mul(cfg.ProbeDistance))
	x, y, z := geom.BlockCoord(probe)
	feet := w.BlockAt(x, y, z)
	if feet.Solid {
		return feet, true
	}
	head := w.BlockAt(x, int(math.Floor(probe.Y()+cfg.Height)), z)
	if head.Solid {
		return head, true
	}
	return world.Block{}, false
}

// ramEntities damages everything in reach that this charge has not hit yet.
// It reports whether the charge's own target was struck.
func (c *Controller) ramEntities(m *Mob, sp *Species, charge *Charging, t *Tick) bool {
	cfg := sp.Ram
	struckTarget := false
	for _, e := range c.nearby(t, m.Position, cfg.HitRadius) {
		if e.id == m.ID || charge.Hits[e.id] {
			continue
		}
		if e.mob != nil && e.mob.Species == m.Species {
			continue
		}
		charge.Hits[e.id] = true
		push := charge.Direction.Mul(cfg.Knockback).Add(geom.Vec3{0, cfg.Knockback * 0.25, 0})
		c.hit(m, e, cfg.Damage, push, t)
		combat.RamHit(t.ctx(), c.pub, t.number(), ref(m), entityRef(e), combat.RamHitPayload{
			Damage:    cfg.Damage,
			Knockback: vec(push),
		}, nil)
		if e.id == charge.TargetID {
			struckTarget = true
		}
	}
	return struckTarget
}

func (c *Controller) endCharge(m *Mob, sp *Species, reason string, t *Tick) {
	m.Brain.Sub = nil
	m.Brain.Cooldowns.Set(CooldownRam, sp.Ram.Cooldown)
	c.stop(m)
	c.setState(m, StateIdle, "ram_"+reason, t)
	behavior.Animation(t.ctx(), c.pub, t.number(), ref(m), behavior.AnimationPayload{Animation: "ram", Phase: "end"}, map[string]any{"reason": reason})
}
