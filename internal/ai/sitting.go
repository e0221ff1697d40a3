package ai

import "blockworld/mobs/logging/behavior"

type sittingModule struct{}

func (sittingModule) update(c *Controller, m *Mob, _ *Species, _ *Tick) (bool, []ActionResult) {
	if _, ok := m.Brain.Sub.(*Sitting); !ok {
		return false, nil
	}
	c.stop(m)
	return true, nil
}

// SetSitting toggles the sitting sub-state. It reports whether anything
// changed; species that cannot sit and mobs busy in another sub-state refuse.
func (c *Controller) SetSitting(m *Mob, sit bool, t *Tick) bool {
	if m == nil || m.Dead {
		return false
	}
	m.Sanitize()
	if !c.species(m).CanSit {
		return false
	}
	_, sitting := m.Brain.Sub.(*Sitting)
	switch {
	case sit && sitting, !sit && !sitting:
		return false
	case sit:
		if m.Brain.Sub != nil {
			return false
		}
		m.Brain.Sub = &Sitting{}
		m.Brain.TargetID = ""
		m.Brain.ThreatID = ""
		c.stop(m)
		c.setState(m, StateIdle, "sit", t)
		behavior.Animation(t.ctx(), c.pub, t.number(), ref(m), behavior.AnimationPayload{Animation: "sit", Phase: "begin"}, nil)
	default:
		m.Brain.Sub = nil
		behavior.Animation(t.ctx(), c.pub, t.number(), ref(m), behavior.AnimationPayload{Animation: "sit", Phase: "end"}, nil)
	}
	return true
}
