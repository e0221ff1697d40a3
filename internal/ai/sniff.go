package ai

import (
	"blockworld/mobs/internal/geom"
	"blockworld/mobs/internal/world"
	"blockworld/mobs/logging/behavior"
)

type sniffModule struct{}

func (sniffModule) update(c *Controller, m *Mob, sp *Species, t *Tick) (bool, []ActionResult) {
	switch sub := m.Brain.Sub.(type) {
	case *Sniffing:
		c.stop(m)
		c.advanceSniff(m, sp, sub, t)
		return true, nil
	case *Digging:
		c.stop(m)
		c.advanceDig(m, sp, sub, t)
		return true, nil
	case nil:
		return c.startSniff(m, sp, t), nil
	}
	return false, nil
}

func (c *Controller) startSniff(m *Mob, sp *Species, t *Tick) bool {
	b := &m.Brain
	if b.State != StateIdle || m.Baby || !b.Cooldowns.Ready(CooldownSniff) || !c.roll(sp.Sniff.Chance) {
		return false
	}
	b.Sub = &Sniffing{}
	c.stop(m)
	behavior.Animation(t.ctx(), c.pub, t.number(), ref(m), behavior.AnimationPayload{Animation: "sniff", Phase: "begin"}, nil)
	return true
}

func (c *Controller) advanceSniff(m *Mob, sp *Species, sniff *Sniffing, t *Tick) {
	cfg := sp.Sniff
	sniff.Elapsed += t.delta()
	step := cfg.Duration / float64(cfg.Checkpoints)
	for sniff.Checkpoint < cfg.Checkpoints-1 && sniff.Elapsed >= step*float64(sniff.Checkpoint+1) {
		sniff.Checkpoint++
		behavior.Animation(t.ctx(), c.pub, t.number(), ref(m), behavior.AnimationPayload{Animation: "sniff", Phase: "progress"}, map[string]any{"checkpoint": sniff.Checkpoint})
	}
	if sniff.Elapsed < cfg.Duration {
		return
	}

	m.Brain.Sub = nil
	m.Brain.Cooldowns.Set(CooldownSniff, cfg.Cooldown)
	if c.canDig(m, cfg, t) && m.Brain.Cooldowns.Ready(CooldownDig) && c.roll(cfg.SuccessChance) {
		if item := c.pick(cfg.Dig.Items); item != "" {
			m.Brain.Sub = &Digging{Item: item}
			behavior.Animation(t.ctx(), c.pub, t.number(), ref(m), behavior.AnimationPayload{Animation: "dig", Phase: "begin"}, nil)
			return
		}
	}
	behavior.Animation(t.ctx(), c.pub, t.number(), ref(m), behavior.AnimationPayload{Animation: "sniff", Phase: "end"}, map[string]any{"found": false})
}

// canDig reports whether the block under the mob's feet can be dug.
func (c *Controller) canDig(m *Mob, cfg *SniffConfig, t *Tick) bool {
	w := t.world()
	if w == nil {
		return false
	}
	x, y, z := geom.BlockCoord(m.Position)
	below := w.BlockAt(x, y-1, z)
	return contains(cfg.Diggable, below.Type)
}

func (c *Controller) advanceDig(m *Mob, sp *Species, dig *Digging, t *Tick) {
	cfg := sp.Sniff.Dig
	dig.Elapsed += t.delta()
	if dig.Elapsed < cfg.Duration {
		return
	}
	if w := t.world(); w != nil && dig.Item != "" {
		w.DropItem(world.ItemDrop{ID: dig.Item, Count: 1, Position: m.Position.Add(geom.Vec3{0, 0.5, 0})})
	}
	m.Brain.Sub = nil
	m.Brain.Cooldowns.Set(CooldownDig, cfg.Cooldown)
	behavior.Animation(t.ctx(), c.pub, t.number(), ref(m), behavior.AnimationPayload{Animation: "dig", Phase: "end"}, map[string]any{"item": dig.Item})
}
