package sim

import (
	"context"
	"errors"
	"fmt"

	"blockworld/mobs/internal/ai"
)

// Snapshot captures every registered mob ordered by id.
func (e *Engine) Snapshot() (uint64, []ai.Snapshot) {
	if e == nil {
		return 0, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := e.mobIDs()
	out := make([]ai.Snapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.ctrl.Serialize(e.mobs[id]))
	}
	return e.tick, out
}

// Mob returns the snapshot of one registered mob.
func (e *Engine) Mob(id string) (ai.Snapshot, bool) {
	if e == nil {
		return ai.Snapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	m := e.mobs[id]
	if m == nil {
		return ai.Snapshot{}, false
	}
	return e.ctrl.Serialize(m), true
}

// Restore replaces the registry with the provided snapshots and rewinds the
// tick counter. Invalid snapshots are skipped and reported together.
func (e *Engine) Restore(tick uint64, snapshots []ai.Snapshot) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	ctx := context.Background()
	for _, id := range e.mobIDs() {
		e.remove(ctx, id, RemovalRestore, nil)
	}
	e.tick = tick
	var errs []error
	for _, snap := range snapshots {
		if e.mobs[snap.ID] != nil {
			errs = append(errs, fmt.Errorf("mob %s: %w: duplicate id", snap.ID, ai.ErrInvalidSnapshot))
			continue
		}
		m, err := e.ctrl.Deserialize(snap)
		if err != nil {
			errs = append(errs, fmt.Errorf("mob %s: %w", snap.ID, err))
			continue
		}
		e.mobs[m.ID] = m
		e.track(m)
		e.metrics.RecordSpawn(ctx, m.Species, false)
	}
	if len(errs) > 0 {
		return fmt.Errorf("sim: restore: %w", errors.Join(errs...))
	}
	return nil
}
