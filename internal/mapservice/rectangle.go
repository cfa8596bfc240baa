package mapservice

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Corner says which corner of a bounding box the top-left pixel of an
// image sits on. It fixes the orientation of the image's rows.
type Corner int

const (
	// MinXMaxY is the usual north-up layout: rows run from MaxY down to MinY.
	MinXMaxY Corner = iota
	// MinXMinY is the screen layout: rows run from MinY up to MaxY.
	MinXMinY
)

func (c Corner) String() string {
	switch c {
	case MinXMaxY:
		return "min-x/max-y"
	case MinXMinY:
		return "min-x/min-y"
	default:
		return fmt.Sprintf("Corner(%d)", int(c))
	}
}

// MapRectangle is an oriented rectangle. Left/Top is the logical coordinate
// of the image's top-left corner and Right/Bottom that of its bottom-right
// corner; Left > Right or Bottom > Top are allowed.
type MapRectangle struct {
	Left, Top, Right, Bottom float64
}

// RectangleFromBox orients a bounding box so that its corner c is top-left.
func RectangleFromBox(b BoundingBox, c Corner) MapRectangle {
	if c == MinXMinY {
		return MapRectangle{Left: b.MinX, Top: b.MinY, Right: b.MaxX, Bottom: b.MaxY}
	}
	return MapRectangle{Left: b.MinX, Top: b.MaxY, Right: b.MaxX, Bottom: b.MinY}
}

// RectangleFromPoints returns the envelope of pts as a north-up rectangle
// (Left <= Right, Bottom <= Top). Non-finite points are ignored; ok is false
// when no finite point remains.
func RectangleFromPoints(pts []orb.Point) (r MapRectangle, ok bool) {
	b, ok := BoundOf(pts)
	if !ok {
		return MapRectangle{}, false
	}
	return RectangleFromBox(b, MinXMaxY), true
}

func (r MapRectangle) MinX() float64 { return math.Min(r.Left, r.Right) }
func (r MapRectangle) MaxX() float64 { return math.Max(r.Left, r.Right) }
func (r MapRectangle) MinY() float64 { return math.Min(r.Top, r.Bottom) }
func (r MapRectangle) MaxY() float64 { return math.Max(r.Top, r.Bottom) }

// Width and Height are unsigned extents.
func (r MapRectangle) Width() float64  { return math.Abs(r.Right - r.Left) }
func (r MapRectangle) Height() float64 { return math.Abs(r.Bottom - r.Top) }

// Aspect is Width/Height.
func (r MapRectangle) Aspect() float64 { return r.Width() / r.Height() }

// Box drops the orientation.
func (r MapRectangle) Box() BoundingBox {
	return BoundingBox{MinX: r.MinX(), MinY: r.MinY(), MaxX: r.MaxX(), MaxY: r.MaxY()}
}

// Center returns the midpoint.
func (r MapRectangle) Center() orb.Point {
	return orb.Point{(r.Left + r.Right) / 2, (r.Top + r.Bottom) / 2}
}

// Corners returns top-left, top-right, bottom-right, bottom-left.
func (r MapRectangle) Corners() [4]orb.Point {
	return [4]orb.Point{
		{r.Left, r.Top},
		{r.Right, r.Top},
		{r.Right, r.Bottom},
		{r.Left, r.Bottom},
	}
}

// Resize scales the area by factor f around the center, keeping the
// orientation: each side is multiplied by √f.
func (r MapRectangle) Resize(f float64) MapRectangle {
	s := math.Sqrt(f)
	c := r.Center()
	hw, hh := (r.Right-r.Left)/2*s, (r.Bottom-r.Top)/2*s
	return MapRectangle{Left: c[0] - hw, Right: c[0] + hw, Top: c[1] - hh, Bottom: c[1] + hh}
}

// At returns the logical coordinate at the fractional position (u, v),
// where (0,0) is the top-left and (1,1) the bottom-right corner.
func (r MapRectangle) At(u, v float64) orb.Point {
	return orb.Point{r.Left + u*(r.Right-r.Left), r.Top + v*(r.Bottom-r.Top)}
}

// Fraction is the inverse of At.
func (r MapRectangle) Fraction(p orb.Point) (u, v float64) {
	return (p[0] - r.Left) / (r.Right - r.Left), (p[1] - r.Top) / (r.Bottom - r.Top)
}

// Equal compares all four fields exactly, orientation included.
func (r MapRectangle) Equal(o MapRectangle) bool {
	return r.Left == o.Left && r.Top == o.Top && r.Right == o.Right && r.Bottom == o.Bottom
}

// EqualWithin compares all four fields with an absolute tolerance.
func (r MapRectangle) EqualWithin(o MapRectangle, tol float64) bool {
	return math.Abs(r.Left-o.Left) <= tol && math.Abs(r.Top-o.Top) <= tol &&
		math.Abs(r.Right-o.Right) <= tol && math.Abs(r.Bottom-o.Bottom) <= tol
}

func (r MapRectangle) String() string {
	return fmt.Sprintf("{left %g, top %g, right %g, bottom %g}", r.Left, r.Top, r.Right, r.Bottom)
}
