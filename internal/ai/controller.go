package ai

import (
	"context"
	"math"
	"sort"

	"blockworld/mobs/internal/geom"
	"blockworld/mobs/internal/status"
	"blockworld/mobs/internal/telemetry"
	"blockworld/mobs/internal/world"
	"blockworld/mobs/logging"
	"blockworld/mobs/logging/behavior"
)

// Random is the probability source behaviour decisions draw from. *rand.Rand
// satisfies it.
type Random interface {
	Float64() float64
	Intn(n int) int
}

// Deps are the collaborators injected into a Controller.
type Deps struct {
	Library   *Library
	Status    status.Provider
	Publisher logging.Publisher
	Random    Random
	Logger    telemetry.Logger
}

// Controller runs species behaviour for any number of mobs. It holds no
// per-mob state; everything mutable lives on the Mob.
type Controller struct {
	lib    *Library
	status status.Provider
	pub    logging.Publisher
	rng    Random
	logger telemetry.Logger
}

// NewController wires a controller, substituting local fallbacks for missing
// collaborators.
func NewController(deps Deps) *Controller {
	c := &Controller{
		lib:    deps.Library,
		status: deps.Status,
		pub:    deps.Publisher,
		rng:    deps.Random,
		logger: deps.Logger,
	}
	if c.lib == nil {
		c.lib = GlobalLibrary
	}
	if c.status == nil {
		c.status = status.NewStore()
	}
	if c.pub == nil {
		c.pub = logging.NopPublisher()
	}
	if c.rng == nil {
		c.rng = world.NewDeterministicRNG(world.DefaultSeed, "controller")
	}
	if c.logger == nil {
		c.logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	return c
}

// Library exposes the species library the controller compiles against.
func (c *Controller) Library() *Library { return c.lib }

// Status exposes the effect provider.
func (c *Controller) Status() status.Provider { return c.status }

// Tick is the per-step input shared by every mob update in one step.
type Tick struct {
	Context context.Context
	Number  uint64
	Time    float64
	Delta   float64
	World   world.World
	Roster  *Roster
}

func (t *Tick) ctx() context.Context {
	if t == nil || t.Context == nil {
		return context.Background()
	}
	return t.Context
}

func (t *Tick) number() uint64 {
	if t == nil {
		return 0
	}
	return t.Number
}

func (t *Tick) delta() float64 {
	if t == nil || t.Delta <= 0 || math.IsNaN(t.Delta) || math.IsInf(t.Delta, 0) {
		return 0
	}
	return t.Delta
}

func (t *Tick) world() world.World {
	if t == nil {
		return nil
	}
	return t.World
}

func (t *Tick) roster() *Roster {
	if t == nil {
		return nil
	}
	return t.Roster
}

// Roster is the live entity registry for one step. Targets are always
// re-resolved through it by id.
type Roster struct {
	players  []*Player
	mobs     []*Mob
	playerBy map[string]*Player
	mobBy    map[string]*Mob
}

// NewRoster indexes the provided entities. Both lists are kept sorted by id.
func NewRoster(players []*Player, mobs []*Mob) *Roster {
	r := &Roster{
		playerBy: make(map[string]*Player, len(players)),
		mobBy:    make(map[string]*Mob, len(mobs)),
	}
	for _, p := range players {
		if p == nil || p.ID == "" {
			continue
		}
		r.players = append(r.players, p)
		r.playerBy[p.ID] = p
	}
	for _, m := range mobs {
		if m == nil || m.ID == "" {
			continue
		}
		r.mobs = append(r.mobs, m)
		r.mobBy[m.ID] = m
	}
	sort.Slice(r.players, func(i, j int) bool { return r.players[i].ID < r.players[j].ID })
	sort.Slice(r.mobs, func(i, j int) bool { return r.mobs[i].ID < r.mobs[j].ID })
	return r
}

func (r *Roster) Player(id string) *Player {
	if r == nil {
		return nil
	}
	return r.playerBy[id]
}

func (r *Roster) Mob(id string) *Mob {
	if r == nil {
		return nil
	}
	return r.mobBy[id]
}

func (r *Roster) Players() []*Player {
	if r == nil {
		return nil
	}
	return r.players
}

func (r *Roster) Mobs() []*Mob {
	if r == nil {
		return nil
	}
	return r.mobs
}

// ActionType names a follow-up the tick loop must apply after every mob has
// updated.
type ActionType string

const (
	ActionGrowUp ActionType = "grow_up"
	ActionBreed  ActionType = "breed"
)

// ActionResult asks the tick loop to change the registry.
type ActionResult struct {
	Type      ActionType
	EntityID  string
	PartnerID string
	Species   string
	Position  geom.Vec3
	Options   world.SpawnOptions
}

// Bootstrap creates a mob with the species defaults applied.
func (c *Controller) Bootstrap(id, species string, position geom.Vec3, opts world.SpawnOptions) (*Mob, error) {
	sp := c.lib.Species(species)
	if sp == nil {
		return nil, ErrUnknownSpecies
	}
	m := &Mob{
		ID:             id,
		Species:        sp.Name,
		Position:       position,
		Health:         sp.Health,
		MaxHealth:      sp.Health,
		Persistent:     opts.Persistent,
		KeepPersistent: opts.Persistent,
		Despawnable:    sp.Despawn.Enabled,
		Baby:           opts.Baby,
		Variant:        opts.Variant,
		Brain: Brain{
			State:     StateIdle,
			Cooldowns: make(Cooldowns),
			Aggro:     make(map[string]float64),
		},
	}
	if m.Variant == "" && len(sp.Variants) > 0 {
		m.Variant = sp.Variants[c.rng.Intn(len(sp.Variants))]
	}
	if m.Baby {
		m.GrowUpRemaining = defaultGrowUpTime
		if sp.Breeding != nil {
			m.GrowUpRemaining = sp.Breeding.GrowUpTime
		}
		m.Persistent = true
	}
	return m, nil
}

func (c *Controller) species(m *Mob) *Species {
	if sp := c.lib.Species(m.Species); sp != nil {
		return sp
	}
	return fallbackSpecies
}

// fallbackSpecies keeps mobs of unknown species inert instead of failing the
// tick.
var fallbackSpecies = func() *Species {
	sp, err := compileSpecies(SpeciesConfig{Name: "unknown", Health: 1})
	if err != nil {
		panic(err)
	}
	return sp
}()

// Update advances one mob by one step. Dead mobs are skipped.
func (c *Controller) Update(m *Mob, t *Tick) []ActionResult {
	if m == nil || m.Dead {
		return nil
	}
	m.Sanitize()
	if m.Dead {
		return nil
	}
	sp := c.species(m)
	dt := t.delta()
	b := &m.Brain

	b.Cooldowns.advance(dt)
	b.StateTime += dt
	c.decayAggro(m, sp, dt)
	c.applyKnockback(m)

	var results []ActionResult
	if r, ok := c.grow(m, t, dt); ok {
		results = append(results, r)
	}
	if m.InLove {
		m.LoveRemaining -= dt
		if m.LoveRemaining <= 0 {
			m.InLove = false
			m.LoveRemaining = 0
		}
	}

	handled := false
	for _, mod := range sp.modules {
		claimed, out := mod.update(c, m, sp, t)
		results = append(results, out...)
		if claimed {
			handled = true
			break
		}
	}
	if !handled {
		c.runState(m, sp, t)
		c.transition(m, sp, t)
	}

	if m.Immobile() {
		m.Velocity = geom.Vec3{}
	}
	b.Cooldowns.clamp()
	return results
}

func (c *Controller) grow(m *Mob, t *Tick, dt float64) (ActionResult, bool) {
	if !m.Baby || m.GrowUpRemaining <= 0 {
		return ActionResult{}, false
	}
	m.GrowUpRemaining -= dt
	if m.GrowUpRemaining > 0 {
		return ActionResult{}, false
	}
	m.GrowUpRemaining = 0
	m.Baby = false
	m.Persistent = m.KeepPersistent
	return ActionResult{Type: ActionGrowUp, EntityID: m.ID, Species: m.Species, Position: m.Position}, true
}

func (c *Controller) applyKnockback(m *Mob) {
	if m.Knockback == (geom.Vec3{}) {
		return
	}
	m.Position = m.Position.Add(m.Knockback)
	m.Knockback = geom.Vec3{}
}

func (c *Controller) roll(chance float64) bool {
	if chance >= 1 {
		return true
	}
	if chance <= 0 || math.IsNaN(chance) {
		return false
	}
	return c.rng.Float64() < chance
}

func (c *Controller) pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[c.rng.Intn(len(options))]
}

func (c *Controller) setState(m *Mob, next State, reason string, t *Tick) {
	b := &m.Brain
	if b.State == next {
		return
	}
	prev := b.State
	b.State = next
	b.StateTime = 0
	behavior.StateChanged(t.ctx(), c.pub, t.number(), ref(m), behavior.StateChangedPayload{
		From:   string(prev),
		To:     string(next),
		Reason: reason,
	}, nil)
}

// move steps the mob along heading at speed and faces it that way.
func (c *Controller) move(m *Mob, heading geom.Vec3, speed, dt float64) {
	heading = geom.Normalize(heading)
	m.Velocity = heading.Mul(speed)
	m.Position = m.Position.Add(m.Velocity.Mul(dt))
	m.Yaw = geom.Yaw(heading, m.Yaw)
}

func (c *Controller) stop(m *Mob) {
	m.Velocity = geom.Vec3{}
}

func (c *Controller) face(m *Mob, point geom.Vec3) {
	m.Yaw = geom.Yaw(geom.HorizontalDirection(m.Position, point), m.Yaw)
}

func ref(m *Mob) logging.EntityRef {
	return logging.MobRef(m.ID, m.Species)
}

func vec(v geom.Vec3) [3]float64 {
	return [3]float64{v.X(), v.Y(), v.Z()}
}
