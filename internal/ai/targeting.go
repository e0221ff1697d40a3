package ai

import (
	"math"
	"sort"

	"blockworld/mobs/internal/geom"
	"blockworld/mobs/internal/world"
)

const (
	playerEyeHeight = 1.62
	// distanceTieEpsilon treats squared distances this close as equal so the
	// id tie-break decides.
	distanceTieEpsilon = 1e-6
)

// entity is a live target resolved from the roster for the current step.
type entity struct {
	id     string
	mob    *Mob
	player *Player
}

func (e entity) position() geom.Vec3 {
	if e.mob != nil {
		return e.mob.Position
	}
	if e.player != nil {
		return e.player.Position
	}
	return geom.Vec3{}
}

func (e entity) alive() bool {
	if e.mob != nil {
		return !e.mob.Dead
	}
	return e.player != nil && !e.player.Dead
}

// resolve looks an id up in the live roster. Missing or dead entities are not
// an error; callers treat them as lost.
func (c *Controller) resolve(t *Tick, id string) (entity, bool) {
	if id == "" {
		return entity{}, false
	}
	r := t.roster()
	if m := r.Mob(id); m != nil {
		e := entity{id: id, mob: m}
		return e, e.alive()
	}
	if p := r.Player(id); p != nil {
		e := entity{id: id, player: p}
		return e, e.alive()
	}
	return entity{}, false
}

// nearby discovers live entities within radius of center. It asks the world
// first and falls back to scanning the roster when no world is attached.
func (c *Controller) nearby(t *Tick, center geom.Vec3, radius float64) []entity {
	var out []entity
	if w := t.world(); w != nil {
		for _, info := range w.EntitiesInRange(center, radius, func(info world.EntityInfo) bool { return !info.Dead }) {
			if e, ok := c.resolve(t, info.ID); ok && geom.Within(center, e.position(), radius) {
				out = append(out, e)
			}
		}
		return out
	}
	r := t.roster()
	for _, p := range r.Players() {
		if !p.Dead && geom.Within(center, p.Position, radius) {
			out = append(out, entity{id: p.ID, player: p})
		}
	}
	for _, m := range r.Mobs() {
		if !m.Dead && geom.Within(center, m.Position, radius) {
			out = append(out, entity{id: m.ID, mob: m})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (c *Controller) eyeOf(e entity) geom.Vec3 {
	if e.mob != nil {
		return geom.Eye(e.mob.Position, c.species(e.mob).EyeHeight)
	}
	return geom.Eye(e.position(), playerEyeHeight)
}

// Candidate is a valid target with the data used to rank it.
type Candidate struct {
	ID       string
	Player   bool
	Species  string
	Distance float64
	Aggro    float64
}

type targetQuery struct {
	radius      float64
	targets     []string
	lineOfSight bool
}

func (sp *Species) targetQuery() targetQuery {
	return targetQuery{
		radius:      sp.Targeting.Radius,
		targets:     sp.Targeting.Targets,
		lineOfSight: sp.Targeting.LineOfSight,
	}
}

// Candidates lists every valid target for the mob ranked best first.
func (c *Controller) Candidates(m *Mob, t *Tick) []Candidate {
	if m == nil || m.Dead {
		return nil
	}
	sp := c.species(m)
	return rank(c.candidates(m, sp, t, sp.targetQuery()), sp.Targeting.UseAggro)
}

// SelectTarget returns the best target for the mob, if any.
func (c *Controller) SelectTarget(m *Mob, t *Tick) (Candidate, bool) {
	ranked := c.Candidates(m, t)
	if len(ranked) == 0 {
		return Candidate{}, false
	}
	return ranked[0], true
}

func (c *Controller) candidates(m *Mob, sp *Species, t *Tick, q targetQuery) []Candidate {
	if q.radius <= 0 || len(q.targets) == 0 {
		return nil
	}
	var blocks geom.SolidQuery
	if w := t.world(); w != nil {
		blocks = world.Solid(w)
	}
	eye := geom.Eye(m.Position, sp.EyeHeight)
	var out []Candidate
	for _, e := range c.nearby(t, m.Position, q.radius) {
		if e.id == m.ID || !matchesTarget(sp.Name, q.targets, e) {
			continue
		}
		if q.lineOfSight && !geom.LineOfSight(blocks, eye, c.eyeOf(e), geom.StepsPerUnit) {
			continue
		}
		cand := Candidate{
			ID:       e.id,
			Player:   e.player != nil,
			Distance: geom.Distance(m.Position, e.position()),
			Aggro:    m.Brain.Aggro[e.id],
		}
		if e.mob != nil {
			cand.Species = e.mob.Species
		}
		out = append(out, cand)
	}
	return out
}

func matchesTarget(self string, targets []string, e entity) bool {
	if e.player != nil {
		return contains(targets, TargetPlayer)
	}
	if e.mob == nil {
		return false
	}
	if contains(targets, e.mob.Species) {
		return true
	}
	return e.mob.Species != self && contains(targets, TargetAnyMob)
}

// rank orders candidates. With aggro in play the highest aggro wins, then
// nearest, then id.
func rank(cands []Candidate, useAggro bool) []Candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if useAggro && a.Aggro != b.Aggro {
			return a.Aggro > b.Aggro
		}
		da, db := a.Distance*a.Distance, b.Distance*b.Distance
		if math.Abs(da-db) > distanceTieEpsilon {
			return da < db
		}
		return a.ID < b.ID
	})
	return cands
}

// Anger raises the mob's aggro towards id, capped at the species maximum.
func (c *Controller) Anger(m *Mob, id string, amount float64) {
	if m == nil || m.Dead || id == "" || id == m.ID || amount <= 0 || math.IsNaN(amount) {
		return
	}
	m.Sanitize()
	sp := c.species(m)
	m.Brain.Aggro[id] = math.Min(m.Brain.Aggro[id]+amount, sp.Targeting.MaxAggro)
}

func (c *Controller) decayAggro(m *Mob, sp *Species, dt float64) {
	if len(m.Brain.Aggro) == 0 {
		return
	}
	decay := sp.Targeting.AggroDecay * dt
	for id, value := range m.Brain.Aggro {
		value -= decay
		if value <= 0 {
			delete(m.Brain.Aggro, id)
			continue
		}
		m.Brain.Aggro[id] = value
	}
}
