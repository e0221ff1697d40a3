package sim

import (
	"time"

	"blockworld/mobs/internal/geom"
	"blockworld/mobs/internal/status"
)

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandPlayerUpdate CommandType = "PlayerUpdate"
	CommandPlayerLeave  CommandType = "PlayerLeave"
	CommandSpawn        CommandType = "Spawn"
	CommandDamage       CommandType = "Damage"
	CommandFeed         CommandType = "Feed"
	CommandSit          CommandType = "Sit"
	CommandEffect       CommandType = "Effect"
)

// PlayerCommand carries the authoritative position and vitals of a player.
// Zero MaxHealth keeps the current value.
type PlayerCommand struct {
	Position  geom.Vec3 `json:"position"`
	Health    float64   `json:"health"`
	MaxHealth float64   `json:"maxHealth"`
}

// SpawnCommand places a new mob.
type SpawnCommand struct {
	Species    string    `json:"species"`
	Position   geom.Vec3 `json:"position"`
	Baby       bool      `json:"baby,omitempty"`
	Variant    string    `json:"variant,omitempty"`
	Persistent bool      `json:"persistent,omitempty"`
}

// DamageCommand hurts a mob. The issuing actor is recorded as the source.
type DamageCommand struct {
	TargetID string  `json:"targetId"`
	Amount   float64 `json:"amount"`
}

// FeedCommand offers an item to a mob.
type FeedCommand struct {
	TargetID string `json:"targetId"`
	Item     string `json:"item"`
}

// SitCommand orders a mob to sit or stand.
type SitCommand struct {
	TargetID string `json:"targetId"`
	Sit      bool   `json:"sit"`
}

// EffectCommand applies a status effect to a mob.
type EffectCommand struct {
	TargetID string        `json:"targetId"`
	Effect   status.Effect `json:"effect"`
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	OriginTick uint64         `json:"originTick"`
	ActorID    string         `json:"actorId"`
	Type       CommandType    `json:"type"`
	IssuedAt   time.Time      `json:"issuedAt"`
	Player     *PlayerCommand `json:"player,omitempty"`
	Spawn      *SpawnCommand  `json:"spawn,omitempty"`
	Damage     *DamageCommand `json:"damage,omitempty"`
	Feed       *FeedCommand   `json:"feed,omitempty"`
	Sit        *SitCommand    `json:"sit,omitempty"`
	Effect     *EffectCommand `json:"effect,omitempty"`
}
