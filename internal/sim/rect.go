package sim

import "github.com/go-gl/mathgl/mgl64"

// Rect2 is an XY rectangle relative to a region origin.
type Rect2 struct {
	Min mgl64.Vec2
	Max mgl64.Vec2
}

// RectCenterHalfDim builds a rectangle from its centre and half extents.
func RectCenterHalfDim(center, half mgl64.Vec2) Rect2 {
	return Rect2{Min: center.Sub(half), Max: center.Add(half)}
}

// RectCenterDim builds a rectangle from its centre and full extents.
func RectCenterDim(center, dim mgl64.Vec2) Rect2 {
	return RectCenterHalfDim(center, dim.Mul(0.5))
}

// AddRadius grows the rectangle by r on every side.
func (r Rect2) AddRadius(radius mgl64.Vec2) Rect2 {
	return Rect2{Min: r.Min.Sub(radius), Max: r.Max.Add(radius)}
}

// Contains is inclusive of Min and exclusive of Max.
func (r Rect2) Contains(p mgl64.Vec2) bool {
	return p.X() >= r.Min.X() && p.Y() >= r.Min.Y() &&
		p.X() < r.Max.X() && p.Y() < r.Max.Y()
}

// Barycentric maps p into the rectangle's unit square, per axis. Axes of
// zero extent map to 0.
func (r Rect2) Barycentric(p mgl64.Vec2) mgl64.Vec2 {
	var out mgl64.Vec2
	for i := 0; i < 2; i++ {
		if d := r.Max[i] - r.Min[i]; d != 0 {
			out[i] = (p[i] - r.Min[i]) / d
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
