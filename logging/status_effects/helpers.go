package status_effects

import (
	"context"

	"blockworld/mobs/logging"
)

const (
	// EventApplied is emitted when a status effect is applied or refreshed.
	EventApplied logging.EventType = "status_effects.applied"
	// EventExpired is emitted when a status effect runs out.
	EventExpired logging.EventType = "status_effects.expired"
)

// AppliedPayload describes the applied effect.
type AppliedPayload struct {
	StatusEffect string  `json:"statusEffect"`
	Level        int     `json:"level"`
	Duration     float64 `json:"duration"`
	SourceID     string  `json:"sourceId,omitempty"`
}

// ExpiredPayload names the expired effect.
type ExpiredPayload struct {
	StatusEffect string `json:"statusEffect"`
	Level        int    `json:"level"`
}

// Applied publishes an effect application on actor.
func Applied(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload AppliedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventApplied,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryStatus,
		Payload:  payload,
		Extra:    extra,
	})
}

// Expired publishes an effect expiry on actor.
func Expired(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ExpiredPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventExpired,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryStatus,
		Payload:  payload,
		Extra:    extra,
	})
}
