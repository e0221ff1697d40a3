package ai

import (
	"errors"
	"fmt"
	"sort"

	"blockworld/mobs/internal/geom"
	"blockworld/mobs/internal/status"
)

// SnapshotVersion is bumped when the persisted shape changes incompatibly.
const SnapshotVersion = 1

// ErrInvalidSnapshot is returned when a snapshot cannot be restored.
var ErrInvalidSnapshot = errors.New("ai: invalid snapshot")

// Snapshot is the plain persisted form of a mob and its behaviour state.
type Snapshot struct {
	Version int    `json:"version"`
	ID      string `json:"id"`
	Species string `json:"species"`

	Position  geom.Vec3 `json:"position"`
	Velocity  geom.Vec3 `json:"velocity"`
	Knockback geom.Vec3 `json:"knockback"`
	Yaw       float64   `json:"yaw"`

	Health    float64 `json:"health"`
	MaxHealth float64 `json:"maxHealth"`
	Dead      bool    `json:"dead,omitempty"`

	Persistent     bool    `json:"persistent,omitempty"`
	Despawnable    bool    `json:"despawnable,omitempty"`
	DespawnTime    float64 `json:"despawnTime,omitempty"`
	KeepPersistent bool    `json:"keepPersistent,omitempty"`

	Baby            bool    `json:"baby,omitempty"`
	GrowUpRemaining float64 `json:"growUpRemaining,omitempty"`
	Variant         string  `json:"variant,omitempty"`
	InLove          bool    `json:"inLove,omitempty"`
	LoveRemaining   float64 `json:"loveRemaining,omitempty"`

	State           string             `json:"state"`
	StateTime       float64            `json:"stateTime"`
	WanderTarget    geom.Vec3          `json:"wanderTarget"`
	WanderRemaining float64            `json:"wanderRemaining,omitempty"`
	TargetID        string             `json:"targetId,omitempty"`
	ThreatID        string             `json:"threatId,omitempty"`
	Cooldowns       map[string]float64 `json:"cooldowns,omitempty"`
	Aggro           map[string]float64 `json:"aggro,omitempty"`
	Sub             *SubSnapshot       `json:"sub,omitempty"`

	Effects []status.Effect `json:"effects,omitempty"`
}

// SubSnapshot flattens the active sub-state. Kind selects which fields apply.
type SubSnapshot struct {
	Kind       SubKind     `json:"kind"`
	Phase      ChargePhase `json:"phase,omitempty"`
	Elapsed    float64     `json:"elapsed,omitempty"`
	Remaining  float64     `json:"remaining,omitempty"`
	Direction  geom.Vec3   `json:"direction,omitempty"`
	TargetID   string      `json:"targetId,omitempty"`
	Hits       []string    `json:"hits,omitempty"`
	Checkpoint int         `json:"checkpoint,omitempty"`
	Item       string      `json:"item,omitempty"`
}

// Serialize captures every mutable field of the mob, including its status
// effects. Cooldowns are persisted clamped at zero.
func (c *Controller) Serialize(m *Mob) Snapshot {
	if m == nil {
		return Snapshot{Version: SnapshotVersion}
	}
	b := m.Brain
	s := Snapshot{
		Version:         SnapshotVersion,
		ID:              m.ID,
		Species:         m.Species,
		Position:        m.Position,
		Velocity:        m.Velocity,
		Knockback:       m.Knockback,
		Yaw:             m.Yaw,
		Health:          m.Health,
		MaxHealth:       m.MaxHealth,
		Dead:            m.Dead,
		Persistent:      m.Persistent,
		Despawnable:     m.Despawnable,
		DespawnTime:     m.DespawnTime,
		KeepPersistent:  m.KeepPersistent,
		Baby:            m.Baby,
		GrowUpRemaining: m.GrowUpRemaining,
		Variant:         m.Variant,
		InLove:          m.InLove,
		LoveRemaining:   m.LoveRemaining,
		State:           string(b.State),
		StateTime:       b.StateTime,
		WanderTarget:    b.WanderTarget,
		WanderRemaining: b.WanderRemaining,
		TargetID:        b.TargetID,
		ThreatID:        b.ThreatID,
		Effects:         c.status.Effects(m.ID),
	}
	// Empty maps stay nil.
	for name, remaining := range b.Cooldowns {
		if remaining > 0 {
			if s.Cooldowns == nil {
				s.Cooldowns = make(map[string]float64, len(b.Cooldowns))
			}
			s.Cooldowns[name] = remaining
		}
	}
	for id, value := range b.Aggro {
		if s.Aggro == nil {
			s.Aggro = make(map[string]float64, len(b.Aggro))
		}
		s.Aggro[id] = value
	}
	s.Sub = snapshotSub(b.Sub)
	return s
}

func snapshotSub(sub SubState) *SubSnapshot {
	switch v := sub.(type) {
	case *Sitting:
		return &SubSnapshot{Kind: SubSitting}
	case *Charging:
		var hits []string
		for id, hit := range v.Hits {
			if hit {
				hits = append(hits, id)
			}
		}
		sort.Strings(hits)
		return &SubSnapshot{Kind: SubCharging, Phase: v.Phase, Elapsed: v.Elapsed, Direction: v.Direction, TargetID: v.TargetID, Hits: hits}
	case *PlayingDead:
		return &SubSnapshot{Kind: SubPlayingDead, Remaining: v.Remaining}
	case *Sniffing:
		return &SubSnapshot{Kind: SubSniffing, Elapsed: v.Elapsed, Checkpoint: v.Checkpoint}
	case *Digging:
		return &SubSnapshot{Kind: SubDigging, Elapsed: v.Elapsed, Item: v.Item}
	}
	return nil
}

// Deserialize rebuilds a mob from a snapshot and restores its status effects
// into the controller's provider.
func (c *Controller) Deserialize(s Snapshot) (*Mob, error) {
	if s.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidSnapshot)
	}
	if s.Version > SnapshotVersion {
		return nil, fmt.Errorf("%w: version %d is newer than %d", ErrInvalidSnapshot, s.Version, SnapshotVersion)
	}
	if c.lib.Species(s.Species) == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSpecies, s.Species)
	}
	state := State(s.State)
	if !state.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidSnapshot, s.State)
	}
	sub, err := restoreSub(s.Sub)
	if err != nil {
		return nil, err
	}

	m := &Mob{
		ID:              s.ID,
		Species:         s.Species,
		Position:        s.Position,
		Velocity:        s.Velocity,
		Knockback:       s.Knockback,
		Yaw:             s.Yaw,
		Health:          s.Health,
		MaxHealth:       s.MaxHealth,
		Dead:            s.Dead,
		Persistent:      s.Persistent,
		Despawnable:     s.Despawnable,
		DespawnTime:     s.DespawnTime,
		KeepPersistent:  s.KeepPersistent,
		Baby:            s.Baby,
		GrowUpRemaining: s.GrowUpRemaining,
		Variant:         s.Variant,
		InLove:          s.InLove,
		LoveRemaining:   s.LoveRemaining,
		Brain: Brain{
			State:           state,
			StateTime:       s.StateTime,
			WanderTarget:    s.WanderTarget,
			WanderRemaining: s.WanderRemaining,
			TargetID:        s.TargetID,
			ThreatID:        s.ThreatID,
			Cooldowns:       make(Cooldowns, len(s.Cooldowns)),
			Aggro:           make(map[string]float64, len(s.Aggro)),
			Sub:             sub,
		},
	}
	for name, remaining := range s.Cooldowns {
		if remaining > 0 {
			m.Brain.Cooldowns[name] = remaining
		}
	}
	for id, value := range s.Aggro {
		m.Brain.Aggro[id] = value
	}
	m.Sanitize()

	c.status.Clear(m.ID)
	for _, eff := range s.Effects {
		c.status.Add(m.ID, eff)
	}
	return m, nil
}

func restoreSub(s *SubSnapshot) (SubState, error) {
	if s == nil {
		return nil, nil
	}
	switch s.Kind {
	case SubSitting:
		return &Sitting{}, nil
	case SubCharging:
		if s.Phase != PhaseWindup && s.Phase != PhaseMoving {
			return nil, fmt.Errorf("%w: unknown charge phase %q", ErrInvalidSnapshot, s.Phase)
		}
		hits := make(map[string]bool, len(s.Hits))
		for _, id := range s.Hits {
			hits[id] = true
		}
		return &Charging{Phase: s.Phase, Elapsed: s.Elapsed, Direction: s.Direction, TargetID: s.TargetID, Hits: hits}, nil
	case SubPlayingDead:
		return &PlayingDead{Remaining: s.Remaining}, nil
	case SubSniffing:
		return &Sniffing{Elapsed: s.Elapsed, Checkpoint: s.Checkpoint}, nil
	case SubDigging:
		return &Digging{Elapsed: s.Elapsed, Item: s.Item}, nil
	}
	return nil, fmt.Errorf("%w: unknown sub-state %q", ErrInvalidSnapshot, s.Kind)
}
