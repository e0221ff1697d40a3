package combat

import (
	"context"

	"blockworld/mobs/logging"
)

const (
	// EventAttack is emitted when a mob lands a melee attack.
	EventAttack logging.EventType = "combat.attack"
	// EventDamage is emitted whenever an entity loses health to a hit.
	EventDamage logging.EventType = "combat.damage"
	// EventDefeat is emitted when an entity reaches zero health.
	EventDefeat logging.EventType = "combat.defeat"
	// EventRamHit is emitted when a charging mob strikes an entity.
	EventRamHit logging.EventType = "combat.ram_hit"
)

// AttackPayload describes a melee hit.
type AttackPayload struct {
	Damage       float64 `json:"damage"`
	TargetHealth float64 `json:"targetHealth"`
}

// DamagePayload describes health lost by the actor.
type DamagePayload struct {
	Amount    float64 `json:"amount"`
	Requested float64 `json:"requested"`
	Health    float64 `json:"health"`
	Source    string  `json:"source,omitempty"`
}

// DefeatPayload names what landed the final blow.
type DefeatPayload struct {
	Source string `json:"source,omitempty"`
}

// RamHitPayload describes one charge impact.
type RamHitPayload struct {
	Damage    float64    `json:"damage"`
	Knockback [3]float64 `json:"knockback"`
}

// Attack publishes a melee attack from actor against target.
func Attack(ctx context.Context, pub logging.Publisher, tick uint64, actor, target logging.EntityRef, payload AttackPayload, extra map[string]any) {
	publish(ctx, pub, EventAttack, tick, actor, []logging.EntityRef{target}, payload, extra)
}

// Damage publishes health lost by actor. The source is listed as the target
// when known.
func Damage(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, source *logging.EntityRef, payload DamagePayload, extra map[string]any) {
	var targets []logging.EntityRef
	if source != nil {
		targets = []logging.EntityRef{*source}
	}
	publish(ctx, pub, EventDamage, tick, actor, targets, payload, extra)
}

// Defeat publishes the death of actor.
func Defeat(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload DefeatPayload, extra map[string]any) {
	publish(ctx, pub, EventDefeat, tick, actor, nil, payload, extra)
}

// RamHit publishes a charge impact.
func RamHit(ctx context.Context, pub logging.Publisher, tick uint64, actor, target logging.EntityRef, payload RamHitPayload, extra map[string]any) {
	publish(ctx, pub, EventRamHit, tick, actor, []logging.EntityRef{target}, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, actor logging.EntityRef, targets []logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Targets:  targets,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	})
}
