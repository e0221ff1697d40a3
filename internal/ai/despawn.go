package ai

import (
	"blockworld/mobs/internal/geom"
	"blockworld/mobs/logging/lifecycle"
)

// CheckDespawn reports whether the mob should be removed because no tracked
// player is within its despawn distance. On true it stamps DespawnTime.
// Combat state plays no part in the decision.
func (c *Controller) CheckDespawn(m *Mob, players []*Player, t *Tick) bool {
	if m == nil || m.Dead || m.Persistent || !m.Despawnable {
		return false
	}
	radius := c.species(m).Despawn.Distance
	for _, p := range players {
		if p == nil || p.Dead {
			continue
		}
		if geom.Within(m.Position, p.Position, radius) {
			return false
		}
	}
	if t != nil {
		m.DespawnTime = t.Time
	}
	lifecycle.Despawned(t.ctx(), c.pub, t.number(), ref(m), lifecycle.DespawnedPayload{Reason: "no_player_nearby"}, nil)
	return true
}
