package geom

import "math"

// SolidQuery reports whether the block at the given coordinates obstructs
// movement and sight.
type SolidQuery interface {
	IsSolid(x, y, z int) bool
}

// SolidFunc adapts a function to SolidQuery.
type SolidFunc func(x, y, z int) bool

// IsSolid implements SolidQuery.
func (f SolidFunc) IsSolid(x, y, z int) bool {
	if f == nil {
		return false
	}
	return f(x, y, z)
}

// LineOfSight samples the segment between two eye points and reports whether
// every sample lies in a non-solid block. Samples inside the blocks holding
// either endpoint are skipped. A stepsPerUnit of zero uses StepsPerUnit.
func LineOfSight(blocks SolidQuery, from, to Vec3, stepsPerUnit int) bool {
	if blocks == nil {
		return true
	}
	if stepsPerUnit <= 0 {
		stepsPerUnit = StepsPerUnit
	}
	dist := Distance(from, to)
	if dist < epsilon {
		return true
	}
	steps := int(math.Ceil(dist * float64(stepsPerUnit)))
	if steps < 2 {
		return true
	}
	delta := to.Sub(from)
	sx, sy, sz := BlockCoord(from)
	ex, ey, ez := BlockCoord(to)
	for i := 1; i < steps; i++ {
		t := float64(i) / float64(steps)
		x, y, z := BlockCoord(from.Add(delta.Mul(t)))
		if (x == sx && y == sy && z == sz) || (x == ex && y == ey && z == ez) {
			continue
		}
		if blocks.IsSolid(x, y, z) {
			return false
		}
	}
	return true
}
