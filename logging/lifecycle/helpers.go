package lifecycle

import (
	"context"

	"blockworld/mobs/logging"
)

const (
	// EventSpawned is emitted when a mob enters the simulation.
	EventSpawned logging.EventType = "lifecycle.spawned"
	// EventDespawned is emitted when a mob is removed without dying.
	EventDespawned logging.EventType = "lifecycle.despawned"
	// EventBred is emitted when two parents produce a juvenile.
	EventBred logging.EventType = "lifecycle.bred"
	// EventGrewUp is emitted when a juvenile becomes an adult.
	EventGrewUp logging.EventType = "lifecycle.grew_up"
)

// SpawnedPayload captures spawn metadata.
type SpawnedPayload struct {
	Species  string     `json:"species"`
	Position [3]float64 `json:"position"`
	Baby     bool       `json:"baby,omitempty"`
	Variant  string     `json:"variant,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// DespawnedPayload records why a mob left.
type DespawnedPayload struct {
	Reason string `json:"reason"`
}

// BredPayload links the juvenile to its parents. Parents are the event
// targets.
type BredPayload struct {
	ChildID string `json:"childId,omitempty"`
	Variant string `json:"variant,omitempty"`
	Mutated bool   `json:"mutated,omitempty"`
}

// Spawned publishes a spawn event.
func Spawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SpawnedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSpawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// Despawned publishes a removal.
func Despawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload DespawnedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDespawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// Bred publishes a breeding event from the initiating parent.
func Bred(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, partner logging.EntityRef, payload BredPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventBred,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{partner},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// GrewUp publishes a juvenile reaching adulthood.
func GrewUp(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventGrewUp,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Extra:    extra,
	})
}
