// Package geom holds the vector helpers shared by the behaviour engine.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is a world-space position or direction. X and Z span the ground plane,
// Y points up.
type Vec3 = mgl64.Vec3

const (
	// DefaultEyeHeight is used when a species does not declare one.
	DefaultEyeHeight = 1.6
	// StepsPerUnit is the sightline sampling density.
	StepsPerUnit = 4
)

const epsilon = 1e-9

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Vec3) float64 {
	return b.Sub(a).Len()
}

// DistanceSq returns the squared distance between a and b.
func DistanceSq(a, b Vec3) float64 {
	d := b.Sub(a)
	return d.Dot(d)
}

// HorizontalDistance ignores the vertical axis.
func HorizontalDistance(a, b Vec3) float64 {
	return math.Hypot(b.X()-a.X(), b.Z()-a.Z())
}

// Normalize returns the unit vector for v or the zero vector when v has no
// length. mgl64's Normalize divides by zero in that case.
func Normalize(v Vec3) Vec3 {
	length := v.Len()
	if length < epsilon || math.IsNaN(length) {
		return Vec3{}
	}
	return v.Mul(1 / length)
}

// Direction returns the normalized vector pointing from one point to another.
func Direction(from, to Vec3) Vec3 {
	return Normalize(to.Sub(from))
}

// HorizontalDirection flattens the direction onto the ground plane.
func HorizontalDirection(from, to Vec3) Vec3 {
	d := to.Sub(from)
	return Normalize(Vec3{d.X(), 0, d.Z()})
}

// Yaw converts a heading into the client-facing rotation in radians.
// It keeps the previous yaw when the heading has no horizontal component.
func Yaw(heading Vec3, fallback float64) float64 {
	if math.Abs(heading.X()) < epsilon && math.Abs(heading.Z()) < epsilon {
		return fallback
	}
	return math.Atan2(heading.X(), heading.Z())
}

// BlockCoord returns the integer block coordinates containing v.
func BlockCoord(v Vec3) (int, int, int) {
	return int(math.Floor(v.X())), int(math.Floor(v.Y())), int(math.Floor(v.Z()))
}

// Eye lifts a foot position to eye level.
func Eye(feet Vec3, eyeHeight float64) Vec3 {
	if eyeHeight <= 0 {
		eyeHeight = DefaultEyeHeight
	}
	return Vec3{feet.X(), feet.Y() + eyeHeight, feet.Z()}
}

// Within reports whether b lies inside radius of a.
func Within(a, b Vec3, radius float64) bool {
	if radius < 0 {
		return false
	}
	return DistanceSq(a, b) <= radius*radius
}

// Clamp bounds value to [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Finite reports whether every component of v is a real number.
func Finite(v Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
