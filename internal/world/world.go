// Package world declares the terrain and entity services the behaviour engine
// consumes. The game server owns the real implementations; Memory backs tests
// and the standalone simulator.
package world

import "blockworld/mobs/internal/geom"

// Block describes the block occupying a single cell.
type Block struct {
	Type  string `json:"type"`
	Solid bool   `json:"solid"`
}

// Air is returned for cells that hold nothing.
var Air = Block{Type: "air"}

// ItemDrop is a stack dropped into the world.
type ItemDrop struct {
	ID       string    `json:"id"`
	Count    int       `json:"count"`
	Position geom.Vec3 `json:"position"`
}

// SpawnOptions tune how the world creates an entity.
type SpawnOptions struct {
	Baby       bool     `json:"baby,omitempty"`
	Variant    string   `json:"variant,omitempty"`
	ParentIDs  []string `json:"parentIds,omitempty"`
	Persistent bool     `json:"persistent,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// EntityKind distinguishes players from simulated mobs.
type EntityKind string

const (
	KindPlayer EntityKind = "player"
	KindMob    EntityKind = "mob"
)

// EntityInfo is the read-only view returned by range queries.
type EntityInfo struct {
	ID       string
	Kind     EntityKind
	Species  string
	Position geom.Vec3
	Dead     bool
}

// EntityFilter narrows EntitiesInRange results. A nil filter keeps everything.
type EntityFilter func(EntityInfo) bool

// Blocks is the terrain half of the world service.
type Blocks interface {
	BlockAt(x, y, z int) Block
	SetBlock(x, y, z int, blockType string)
	DropItem(drop ItemDrop)
}

// World is everything a behaviour update may query or mutate.
type World interface {
	Blocks
	EntitiesInRange(center geom.Vec3, radius float64, filter EntityFilter) []EntityInfo
	SpawnEntity(species string, position geom.Vec3, opts SpawnOptions) string
}

// Solid adapts a Blocks service to the sightline sampler.
func Solid(blocks Blocks) geom.SolidQuery {
	if blocks == nil {
		return nil
	}
	return geom.SolidFunc(func(x, y, z int) bool {
		return blocks.BlockAt(x, y, z).Solid
	})
}
