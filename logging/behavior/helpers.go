package behavior

import (
	"context"

	"blockworld/mobs/logging"
)

const (
	// EventStateChanged is emitted when a mob moves between behaviour states.
	EventStateChanged logging.EventType = "behavior.state_changed"
	// EventSound asks clients to play a sound at the mob.
	EventSound logging.EventType = "behavior.sound"
	// EventAnimation asks clients to play an animation on the mob.
	EventAnimation logging.EventType = "behavior.animation"
	// EventParticle asks clients to spawn particles.
	EventParticle logging.EventType = "behavior.particle"
)

type StateChangedPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

type SoundPayload struct {
	Sound string `json:"sound"`
}

type AnimationPayload struct {
	Animation string `json:"animation"`
	Phase     string `json:"phase,omitempty"`
}

type ParticlePayload struct {
	Particle string     `json:"particle"`
	Position [3]float64 `json:"position"`
	Count    int        `json:"count"`
}

// StateChanged publishes a behaviour transition. It is a debug-level event.
func StateChanged(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload StateChangedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStateChanged,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryBehavior,
		Payload:  payload,
		Extra:    extra,
	})
}

func Sound(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SoundPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSound,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryBehavior,
		Payload:  payload,
		Extra:    extra,
	})
}

func Animation(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload AnimationPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAnimation,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryBehavior,
		Payload:  payload,
		Extra:    extra,
	})
}

func Particle(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ParticlePayload, extra map[string]any) {
	if pub == nil {
		return
	}
	if payload.Count <= 0 {
		payload.Count = 1
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventParticle,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryBehavior,
		Payload:  payload,
		Extra:    extra,
	})
}
