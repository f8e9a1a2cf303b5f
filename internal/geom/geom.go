// Package geom holds the small amount of vector math the simulation needs.
// Every function is pure and total for any float input.
package geom

import "math"

// IntentEpsilon is the magnitude below which an intent is treated as no input.
const IntentEpsilon = 1e-6

// Vec is a 2D vector in world units.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + o.
func (v Vec) Add(o Vec) Vec {
	return Vec{X: v.X + o.X, Y: v.Y + o.Y}
}

// Scale returns v * s.
func (v Vec) Scale(s float64) Vec {
	return Vec{X: v.X * s, Y: v.Y * s}
}

// Len returns the euclidean length of v.
func (v Vec) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// Dist returns the distance between v and o.
func (v Vec) Dist(o Vec) float64 {
	return math.Hypot(v.X-o.X, v.Y-o.Y)
}

// Bounds is the world rectangle anchored at the origin.
type Bounds struct {
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
}

// Center returns the middle of the world.
func (b Bounds) Center() Vec {
	return Vec{X: b.Width / 2, Y: b.Height / 2}
}

// Clamp limits v to [lo, hi]. NaN collapses to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampToBounds keeps p inside the world rectangle shrunk by padding on every side.
// If the padding leaves no room on an axis the position collapses to the center of that axis.
func ClampToBounds(p Vec, b Bounds, padding float64) Vec {
	return Vec{
		X: clampAxis(p.X, b.Width, padding),
		Y: clampAxis(p.Y, b.Height, padding),
	}
}

func clampAxis(v, size, padding float64) float64 {
	lo, hi := padding, size-padding
	if hi < lo {
		return size / 2
	}
	return Clamp(v, lo, hi)
}

// NormalizeIntent maps any input pair to a vector of magnitude at most 1.
// Non-finite components become 0, near-zero input becomes the zero vector and
// sub-unit input passes through untouched so analog sticks keep their precision.
func NormalizeIntent(ix, iy float64) Vec {
	if !finite(ix) {
		ix = 0
	}
	if !finite(iy) {
		iy = 0
	}

	mag := math.Hypot(ix, iy)
	switch {
	case mag <= IntentEpsilon:
		return Vec{}
	case mag <= 1:
		return Vec{X: ix, Y: iy}
	default:
		return Vec{X: ix / mag, Y: iy / mag}
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
