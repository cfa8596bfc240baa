// Package mapservice defines the geometry value types shared by map image
// sources and the "deliver an image for this bounding box and size" contract
// they implement.
package mapservice

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// BoundingBox is an axis-aligned box with MinX <= MaxX and MinY <= MaxY.
type BoundingBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// NewBoundingBox builds a box from two opposite corners in any order.
func NewBoundingBox(x0, y0, x1, y1 float64) BoundingBox {
	return BoundingBox{
		MinX: math.Min(x0, x1),
		MinY: math.Min(y0, y1),
		MaxX: math.Max(x0, x1),
		MaxY: math.Max(y0, y1),
	}
}

// FromBound converts an orb.Bound.
func FromBound(b orb.Bound) BoundingBox {
	return NewBoundingBox(b.Min[0], b.Min[1], b.Max[0], b.Max[1])
}

// Bound converts to an orb.Bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinX, b.MinY}, Max: orb.Point{b.MaxX, b.MaxY}}
}

// BoundOf returns the envelope of the finite points in pts, and false if
// there is none.
func BoundOf(pts []orb.Point) (BoundingBox, bool) {
	var finite orb.MultiPoint
	for _, p := range pts {
		if IsFinite(p) {
			finite = append(finite, p)
		}
	}
	if len(finite) == 0 {
		return BoundingBox{}, false
	}
	return FromBound(finite.Bound()), true
}

func (b BoundingBox) Width() float64  { return b.MaxX - b.MinX }
func (b BoundingBox) Height() float64 { return b.MaxY - b.MinY }

// Center returns the midpoint of the box.
func (b BoundingBox) Center() orb.Point {
	return orb.Point{(b.MinX + b.MaxX) / 2, (b.MinY + b.MaxY) / 2}
}

// IsFinite reports whether all four coordinates are finite numbers.
func (b BoundingBox) IsFinite() bool {
	return IsFinite(orb.Point{b.MinX, b.MinY}) && IsFinite(orb.Point{b.MaxX, b.MaxY})
}

// IsDegenerate reports whether the box has no area.
func (b BoundingBox) IsDegenerate() bool {
	return !(b.Width() > 0 && b.Height() > 0)
}

// Contains reports whether o lies entirely inside b.
func (b BoundingBox) Contains(o BoundingBox) bool {
	return o.MinX >= b.MinX && o.MaxX <= b.MaxX && o.MinY >= b.MinY && o.MaxY <= b.MaxY
}

// Intersect returns the overlap of b and o, and false when they do not
// overlap with a positive area.
func (b BoundingBox) Intersect(o BoundingBox) (BoundingBox, bool) {
	if !b.Bound().Intersects(o.Bound()) {
		return BoundingBox{}, false
	}
	r := BoundingBox{
		MinX: math.Max(b.MinX, o.MinX),
		MinY: math.Max(b.MinY, o.MinY),
		MaxX: math.Min(b.MaxX, o.MaxX),
		MaxY: math.Min(b.MaxY, o.MaxY),
	}
	return r, !r.IsDegenerate()
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%g %g, %g %g]", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

// IsFinite reports whether both coordinates of p are neither NaN nor infinite.
func IsFinite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsInf(p[0], 0) && !math.IsNaN(p[1]) && !math.IsInf(p[1], 0)
}
