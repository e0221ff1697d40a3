package world

import (
	"fmt"
	"sort"
	"sync"

	"blockworld/mobs/internal/geom"
)

type cell struct {
	x, y, z int
}

// SpawnRecord captures a SpawnEntity call.
type SpawnRecord struct {
	ID       string
	Species  string
	Position geom.Vec3
	Options  SpawnOptions
}

// Memory is a map-backed World. Unknown block types default to solid unless
// registered as passable with SetPassable.
type Memory struct {
	mu        sync.RWMutex
	blocks    map[cell]Block
	passable  map[string]bool
	entities  map[string]EntityInfo
	drops     []ItemDrop
	spawns    []SpawnRecord
	nextSpawn uint64
}

// NewMemory returns an empty world where every cell is air.
func NewMemory() *Memory {
	return &Memory{
		blocks:   make(map[cell]Block),
		passable: map[string]bool{"air": true, "water": true, "tall_grass": true, "flower": true},
		entities: make(map[string]EntityInfo),
	}
}

// SetPassable marks a block type as non-solid.
func (m *Memory) SetPassable(blockType string, passable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passable[blockType] = passable
}

// BlockAt implements Blocks.
func (m *Memory) BlockAt(x, y, z int) Block {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if block, ok := m.blocks[cell{x, y, z}]; ok {
		return block
	}
	return Air
}

// SetBlock implements Blocks. Setting "air" or an empty type clears the cell.
func (m *Memory) SetBlock(x, y, z int, blockType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if blockType == "" || blockType == Air.Type {
		delete(m.blocks, cell{x, y, z})
		return
	}
	m.blocks[cell{x, y, z}] = Block{Type: blockType, Solid: !m.passable[blockType]}
}

// DropItem implements Blocks.
func (m *Memory) DropItem(drop ItemDrop) {
	if drop.ID == "" {
		return
	}
	if drop.Count <= 0 {
		drop.Count = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drops = append(m.drops, drop)
}

// Drops returns a copy of every dropped stack.
func (m *Memory) Drops() []ItemDrop {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ItemDrop, len(m.drops))
	copy(out, m.drops)
	return out
}

// Track inserts or updates the entity visible to range queries.
func (m *Memory) Track(info EntityInfo) {
	if info.ID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[info.ID] = info
}

// Forget removes an entity from range queries.
func (m *Memory) Forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entities, id)
}

// EntitiesInRange implements World. Results are ordered by id.
func (m *Memory) EntitiesInRange(center geom.Vec3, radius float64, filter EntityFilter) []EntityInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EntityInfo, 0)
	for _, info := range m.entities {
		if !geom.Within(center, info.Position, radius) {
			continue
		}
		if filter != nil && !filter(info) {
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SpawnEntity implements World by recording the request and tracking the new
// entity.
func (m *Memory) SpawnEntity(species string, position geom.Vec3, opts SpawnOptions) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSpawn++
	id := fmt.Sprintf("%s-spawn-%d", species, m.nextSpawn)
	m.spawns = append(m.spawns, SpawnRecord{ID: id, Species: species, Position: position, Options: opts})
	m.entities[id] = EntityInfo{ID: id, Kind: KindMob, Species: species, Position: position}
	return id
}

// Spawns returns a copy of every SpawnEntity call.
func (m *Memory) Spawns() []SpawnRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SpawnRecord, len(m.spawns))
	copy(out, m.spawns)
	return out
}

// FillFloor places a solid layer of blockType at height y across the square
// [-radius, radius] on both axes.
func (m *Memory) FillFloor(y, radius int, blockType string) {
	for x := -radius; x <= radius; x++ {
		for z := -radius; z <= radius; z++ {
			m.SetBlock(x, y, z, blockType)
		}
	}
}
