// Package logging carries simulation events (sounds, animations, damage,
// spawns) from the behaviour engine to observers. Publishing is fire and
// forget and never changes simulation outcome.
package logging

import (
	"context"
	"time"
)

type EventType string

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

// ParseSeverity maps config strings onto severities. Unknown values map to
// info.
func ParseSeverity(raw string) Severity {
	switch raw {
	case "debug", "DEBUG":
		return SeverityDebug
	case "warn", "WARN", "warning":
		return SeverityWarn
	case "error", "ERROR":
		return SeverityError
	default:
		return SeverityInfo
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

type EntityKind string

const (
	EntityKindUnknown EntityKind = "unknown"
	EntityKindPlayer  EntityKind = "player"
	EntityKindMob     EntityKind = "mob"
	EntityKindWorld   EntityKind = "world"
)

// Event is one published notification.
type Event struct {
	Type     EventType      `json:"type"`
	Tick     uint64         `json:"tick"`
	Time     time.Time      `json:"time"`
	Actor    EntityRef      `json:"actor"`
	Targets  []EntityRef    `json:"targets,omitempty"`
	Severity Severity       `json:"severity"`
	Category string         `json:"category,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

type EntityRef struct {
	ID      string     `json:"id"`
	Kind    EntityKind `json:"kind"`
	Species string     `json:"species,omitempty"`
}

// MobRef builds a reference to a simulated mob.
func MobRef(id, species string) EntityRef {
	return EntityRef{ID: id, Kind: EntityKindMob, Species: species}
}

// PlayerRef builds a reference to a player.
func PlayerRef(id string) EntityRef {
	return EntityRef{ID: id, Kind: EntityKindPlayer}
}

const (
	CategoryBehavior  = "behavior"
	CategoryCombat    = "combat"
	CategoryLifecycle = "lifecycle"
	CategoryStatus    = "status_effects"
	CategorySystem    = "system"
)

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

// NopPublisher discards everything.
func NopPublisher() Publisher {
	return nopPublisher{}
}

type fieldPublisher struct {
	next   Publisher
	fields map[string]any
}

func (p *fieldPublisher) Publish(ctx context.Context, event Event) {
	if p.next == nil {
		return
	}
	p.next.Publish(ctx, mergeFields(event, p.fields))
}

// mergeFields copies fields into event.Extra without overwriting keys the
// event already carries.
func mergeFields(event Event, fields map[string]any) Event {
	if len(fields) == 0 {
		return event
	}
	event = CloneEvent(event)
	if event.Extra == nil {
		event.Extra = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		if _, exists := event.Extra[k]; !exists {
			event.Extra[k] = v
		}
	}
	return event
}

// CloneEvent copies the Targets slice and Extra map so the result can be kept
// after the publisher reuses them.
func CloneEvent(event Event) Event {
	cloned := event
	if len(event.Targets) > 0 {
		cloned.Targets = append([]EntityRef(nil), event.Targets...)
	}
	if event.Extra != nil {
		copied := make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			copied[k] = v
		}
		cloned.Extra = copied
	}
	return cloned
}

// WithFields decorates every published event with the given extra fields.
func WithFields(p Publisher, fields map[string]any) Publisher {
	if p == nil {
		return NopPublisher()
	}
	if len(fields) == 0 {
		return p
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return &fieldPublisher{next: p, fields: copied}
}

// Fanout publishes every event to each non-nil publisher in order.
func Fanout(pubs ...Publisher) Publisher {
	live := make([]Publisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			live = append(live, p)
		}
	}
	if len(live) == 0 {
		return NopPublisher()
	}
	if len(live) == 1 {
		return live[0]
	}
	return PublisherFunc(func(ctx context.Context, event Event) {
		for _, p := range live {
			p.Publish(ctx, event)
		}
	})
}
