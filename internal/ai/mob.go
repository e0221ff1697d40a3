package ai

import (
	"math"

	"blockworld/mobs/internal/geom"
)

// State is the base behaviour state shared by every species.
type State string

const (
	StateIdle   State = "idle"
	StateWander State = "wander"
	StateFollow State = "follow"
	StateAttack State = "attack"
	StateFlee   State = "flee"
)

// Valid reports whether s is one of the base states.
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateWander, StateFollow, StateAttack, StateFlee:
		return true
	}
	return false
}

// Cooldown names.
const (
	CooldownAttack = "attack"
	CooldownTarget = "target"
	CooldownRam    = "ram"
	CooldownSniff  = "sniff"
	CooldownDig    = "dig"
	CooldownBreed  = "breed"
	CooldownJump   = "jump"
)

// Cooldowns maps an ability name to the seconds left before it may fire.
type Cooldowns map[string]float64

// Ready reports whether the named ability may fire.
func (c Cooldowns) Ready(name string) bool {
	return c[name] <= 0
}

// Set arms the named cooldown. Non-positive durations clear it.
func (c Cooldowns) Set(name string, seconds float64) {
	if c == nil {
		return
	}
	if seconds <= 0 || math.IsNaN(seconds) {
		delete(c, name)
		return
	}
	c[name] = seconds
}

func (c Cooldowns) advance(dt float64) {
	for name := range c {
		c[name] -= dt
	}
}

// clamp drops every cooldown that has run out so persisted values are never
// negative.
func (c Cooldowns) clamp() {
	for name, remaining := range c {
		if remaining <= 0 || math.IsNaN(remaining) {
			delete(c, name)
		}
	}
}

// Mob is a simulated creature. Exported fields outside Brain may be touched by
// other entities' cross-entity actions (damage, knockback, breeding).
type Mob struct {
	ID      string
	Species string

	Position  geom.Vec3
	Velocity  geom.Vec3
	Knockback geom.Vec3
	Yaw       float64

	Health    float64
	MaxHealth float64
	Dead      bool

	Persistent  bool
	Despawnable bool
	DespawnTime float64
	// KeepPersistent records persistence requested at spawn. Juveniles are
	// persistent until they grow up and then fall back to it.
	KeepPersistent bool

	Baby            bool
	GrowUpRemaining float64
	Variant         string
	InLove          bool
	LoveRemaining   float64

	Brain Brain
}

// Brain is the behaviour-owned working state of a mob.
type Brain struct {
	State           State
	StateTime       float64
	WanderTarget    geom.Vec3
	WanderRemaining float64
	TargetID        string
	ThreatID        string
	Cooldowns       Cooldowns
	Aggro           map[string]float64
	Sub             SubState
}

// Player is the subset of player state the behaviour engine reads and the
// narrow set of fields mob attacks may change.
type Player struct {
	ID        string
	Position  geom.Vec3
	Velocity  geom.Vec3
	Health    float64
	MaxHealth float64
	Dead      bool
}

// ApplyDamage removes health and reports whether the player died.
func (p *Player) ApplyDamage(amount float64) bool {
	if p == nil || p.Dead || amount <= 0 || math.IsNaN(amount) {
		return false
	}
	p.Health = math.Max(0, p.Health-amount)
	if p.Health == 0 {
		p.Dead = true
		return true
	}
	return false
}

// CurrentHealth implements status.Vitals.
func (m *Mob) CurrentHealth() float64 { return m.Health }

// MaximumHealth implements status.Vitals.
func (m *Mob) MaximumHealth() float64 { return m.MaxHealth }

// SetHealth implements status.Vitals. The value is clamped to [0, MaxHealth].
func (m *Mob) SetHealth(value float64) {
	if math.IsNaN(value) {
		return
	}
	m.Health = geom.Clamp(value, 0, m.MaxHealth)
}

// Sanitize repairs corrupted vitals and nil maps in place so one bad mob
// cannot halt the tick loop.
func (m *Mob) Sanitize() {
	if m == nil {
		return
	}
	if m.MaxHealth <= 0 || math.IsNaN(m.MaxHealth) || math.IsInf(m.MaxHealth, 0) {
		m.MaxHealth = 1
	}
	if math.IsNaN(m.Health) {
		m.Health = m.MaxHealth
	}
	m.Health = geom.Clamp(m.Health, 0, m.MaxHealth)
	if m.Health == 0 {
		m.Dead = true
	}
	if !geom.Finite(m.Position) {
		m.Position = geom.Vec3{}
	}
	if !geom.Finite(m.Velocity) {
		m.Velocity = geom.Vec3{}
	}
	if !geom.Finite(m.Knockback) {
		m.Knockback = geom.Vec3{}
	}
	if m.Brain.Cooldowns == nil {
		m.Brain.Cooldowns = make(Cooldowns)
	}
	if m.Brain.Aggro == nil {
		m.Brain.Aggro = make(map[string]float64)
	}
	if !m.Brain.State.Valid() {
		m.Brain.State = StateIdle
	}
}

// Immobile reports whether the active sub-state pins the mob in place.
func (m *Mob) Immobile() bool {
	if m == nil || m.Brain.Sub == nil {
		return false
	}
	return m.Brain.Sub.immobile()
}

func (m *Mob) resetBrain() {
	m.Brain.State = StateIdle
	m.Brain.StateTime = 0
	m.Brain.WanderTarget = geom.Vec3{}
	m.Brain.WanderRemaining = 0
	m.Brain.TargetID = ""
	m.Brain.ThreatID = ""
	m.Brain.Sub = nil
	for id := range m.Brain.Aggro {
		delete(m.Brain.Aggro, id)
	}
}
