package ai

import (
	"blockworld/mobs/internal/geom"
	"blockworld/mobs/internal/world"
	"blockworld/mobs/logging/behavior"
	"blockworld/mobs/logging/lifecycle"
)

// babyFeedFactor shortens the remaining grow-up time when a juvenile is fed.
const babyFeedFactor = 0.9

type breedingModule struct{}

func (breedingModule) update(c *Controller, m *Mob, sp *Species, t *Tick) (bool, []ActionResult) {
	b := &m.Brain
	if !m.InLove || m.Baby || b.Sub != nil || (b.State != StateIdle && b.State != StateWander) {
		return false, nil
	}
	cfg := sp.Breeding
	partner := c.findPartner(m, cfg, t)
	if partner == nil {
		return false, nil
	}
	if geom.Distance(m.Position, partner.Position) > cfg.BreedRadius {
		c.move(m, geom.HorizontalDirection(m.Position, partner.Position), sp.Speed, t.delta())
		return true, nil
	}
	c.stop(m)
	c.face(m, partner.Position)
	return true, []ActionResult{c.breed(m, partner, sp, t)}
}

// findPartner returns the nearest same-species adult that is also in love.
func (c *Controller) findPartner(m *Mob, cfg *BreedingConfig, t *Tick) *Mob {
	var best *Mob
	bestDist := 0.0
	for _, e := range c.nearby(t, m.Position, cfg.SearchRadius) {
		other := e.mob
		if other == nil || other == m || other.Species != m.Species {
			continue
		}
		if other.Dead || other.Baby || !other.InLove || other.Brain.Sub != nil {
			continue
		}
		d := geom.DistanceSq(m.Position, other.Position)
		if best == nil || d < bestDist-distanceTieEpsilon {
			best, bestDist = other, d
		}
	}
	return best
}

// breed clears love on both parents, arms their cooldowns and describes the
// juvenile for the tick loop to spawn.
func (c *Controller) breed(m, partner *Mob, sp *Species, t *Tick) ActionResult {
	cfg := sp.Breeding
	for _, parent := range []*Mob{m, partner} {
		parent.InLove = false
		parent.LoveRemaining = 0
		parent.Brain.Cooldowns.Set(CooldownBreed, cfg.Cooldown)
	}

	variant := m.Variant
	if c.rng.Intn(2) == 1 {
		variant = partner.Variant
	}
	mutated := false
	pool := cfg.RareVariants
	if len(pool) == 0 {
		pool = sp.Variants
	}
	if len(pool) > 0 && c.roll(cfg.MutationChance) {
		variant = c.pick(pool)
		mutated = true
	}

	mid := m.Position.Add(partner.Position).Mul(0.5)
	lifecycle.Bred(t.ctx(), c.pub, t.number(), ref(m), ref(partner), lifecycle.BredPayload{Variant: variant, Mutated: mutated}, nil)
	behavior.Particle(t.ctx(), c.pub, t.number(), ref(m), behavior.ParticlePayload{Particle: "heart", Position: vec(mid), Count: 7}, nil)
	return ActionResult{
		Type:      ActionBreed,
		EntityID:  m.ID,
		PartnerID: partner.ID,
		Species:   m.Species,
		Position:  mid,
		Options: world.SpawnOptions{
			Baby:      true,
			Variant:   variant,
			ParentIDs: []string{m.ID, partner.ID},
			Reason:    "breeding",
		},
	}
}

// Feed gives the mob a food item. Adults that accept it fall in love;
// juveniles grow faster. It reports whether the item was consumed.
func (c *Controller) Feed(m *Mob, item string, t *Tick) bool {
	if m == nil || m.Dead {
		return false
	}
	m.Sanitize()
	cfg := c.species(m).Breeding
	if cfg == nil || !contains(cfg.Foods, item) {
		return false
	}
	if m.Baby {
		m.GrowUpRemaining *= babyFeedFactor
		return true
	}
	if m.InLove || !m.Brain.Cooldowns.Ready(CooldownBreed) {
		return false
	}
	m.InLove = true
	m.LoveRemaining = cfg.LoveDuration
	behavior.Particle(t.ctx(), c.pub, t.number(), ref(m), behavior.ParticlePayload{Particle: "heart", Position: vec(m.Position), Count: 3}, map[string]any{"item": item})
	return true
}
