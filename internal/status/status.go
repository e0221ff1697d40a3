// Package status tracks timed buffs and debuffs per entity.
package status

import (
	"math"
	"strings"
	"sync"
)

// EffectType names a status effect.
type EffectType string

const (
	Regeneration EffectType = "REGENERATION"
	Poison       EffectType = "POISON"
	Slowness     EffectType = "SLOWNESS"
	Speed        EffectType = "SPEED"
)

const (
	regenerationInterval = 2.5
	poisonInterval       = 1.25
)

// Effect is a single active effect. Remaining is measured in seconds.
type Effect struct {
	Type      EffectType `json:"type"`
	Level     int        `json:"level"`
	Remaining float64    `json:"remaining"`
	Source    string     `json:"source,omitempty"`
}

// Vitals exposes the health fields a ticking effect may change.
type Vitals interface {
	CurrentHealth() float64
	MaximumHealth() float64
	SetHealth(value float64)
}

// Random is the probability source used for per-tick health deltas.
type Random interface {
	Float64() float64
}

// Change reports what a Tick did to one entity.
type Change struct {
	HealthDelta float64
	Expired     []Effect
}

// Provider is the effect service injected into the behaviour engine.
type Provider interface {
	Add(entityID string, effect Effect) bool
	Remove(entityID string, effectType EffectType) bool
	Get(entityID string, effectType EffectType) (Effect, bool)
	Effects(entityID string) []Effect
	Tick(entityID string, dt float64, vitals Vitals, rng Random) Change
	Clear(entityID string)
}

// Store is the in-process Provider. Effects keep their insertion order.
type Store struct {
	mu      sync.Mutex
	effects map[string][]Effect
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{effects: make(map[string][]Effect)}
}

// Normalize canonicalizes an effect type name.
func Normalize(value string) EffectType {
	return EffectType(strings.ToUpper(strings.TrimSpace(value)))
}

// Add applies an effect. Lower levels never override higher ones; equal
// levels keep the longer remaining duration.
func (s *Store) Add(entityID string, effect Effect) bool {
	if s == nil || entityID == "" {
		return false
	}
	effect.Type = Normalize(string(effect.Type))
	if effect.Type == "" || effect.Remaining <= 0 || math.IsNaN(effect.Remaining) {
		return false
	}
	if effect.Level < 1 {
		effect.Level = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.effects[entityID]
	for i := range list {
		if list[i].Type != effect.Type {
			continue
		}
		existing := &list[i]
		switch {
		case effect.Level > existing.Level:
			*existing = effect
		case effect.Level == existing.Level:
			existing.Remaining = math.Max(existing.Remaining, effect.Remaining)
			if effect.Source != "" {
				existing.Source = effect.Source
			}
		default:
			return false
		}
		return true
	}
	s.effects[entityID] = append(list, effect)
	return true
}

// Remove drops an effect. It reports whether anything was removed.
func (s *Store) Remove(entityID string, effectType EffectType) bool {
	if s == nil {
		return false
	}
	effectType = Normalize(string(effectType))
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.effects[entityID]
	for i := range list {
		if list[i].Type == effectType {
			s.store(entityID, append(list[:i:i], list[i+1:]...))
			return true
		}
	}
	return false
}

// Get returns the active effect of the given type.
func (s *Store) Get(entityID string, effectType EffectType) (Effect, bool) {
	if s == nil {
		return Effect{}, false
	}
	effectType = Normalize(string(effectType))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, eff := range s.effects[entityID] {
		if eff.Type == effectType {
			return eff, true
		}
	}
	return Effect{}, false
}

// Effects returns a copy of the entity's effects in insertion order.
func (s *Store) Effects(entityID string) []Effect {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.effects[entityID]
	if len(list) == 0 {
		return nil
	}
	out := make([]Effect, len(list))
	copy(out, list)
	return out
}

// Clear forgets every effect on the entity.
func (s *Store) Clear(entityID string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.effects, entityID)
}

// Tick advances every effect on the entity by dt seconds, applies health
// deltas, and removes expired effects.
func (s *Store) Tick(entityID string, dt float64, vitals Vitals, rng Random) Change {
	var change Change
	if s == nil || dt <= 0 || math.IsNaN(dt) {
		return change
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.effects[entityID]
	if len(list) == 0 {
		return change
	}
	kept := list[:0]
	for _, eff := range list {
		if vitals != nil {
			change.HealthDelta += applyHealthEffect(eff, dt, vitals, rng)
		}
		eff.Remaining -= dt
		if eff.Remaining <= 0 {
			eff.Remaining = 0
			change.Expired = append(change.Expired, eff)
			continue
		}
		kept = append(kept, eff)
	}
	s.store(entityID, kept)
	return change
}

func (s *Store) store(entityID string, list []Effect) {
	if len(list) == 0 {
		delete(s.effects, entityID)
		return
	}
	s.effects[entityID] = list
}

func applyHealthEffect(eff Effect, dt float64, vitals Vitals, rng Random) float64 {
	var interval float64
	switch eff.Type {
	case Regeneration:
		interval = regenerationInterval
	case Poison:
		interval = poisonInterval
	default:
		return 0
	}
	if !roll(rng, TickChance(interval, eff.Level, dt)) {
		return 0
	}

	current := vitals.CurrentHealth()
	max := vitals.MaximumHealth()
	var next float64
	switch eff.Type {
	case Regeneration:
		next = math.Min(current+1, max)
		if next < current {
			next = current
		}
	case Poison:
		if current <= 1 {
			return 0
		}
		next = math.Max(current-1, 1)
		if next > max {
			next = max
		}
	}
	if next == current {
		return 0
	}
	vitals.SetHealth(next)
	return next - current
}

// TickChance is the probability that a level-scaled periodic effect fires
// during a step of dt seconds.
func TickChance(baseInterval float64, level int, dt float64) float64 {
	if level < 1 {
		level = 1
	}
	interval := baseInterval / math.Pow(2, float64(level-1))
	if interval <= 0 {
		return 1
	}
	return math.Min(1, dt/interval)
}

func roll(rng Random, chance float64) bool {
	if chance >= 1 {
		return true
	}
	if chance <= 0 || rng == nil {
		return false
	}
	return rng.Float64() < chance
}
