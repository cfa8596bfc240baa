package mapservice

import (
	"context"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func checkOrdered(t *testing.T, name string, r MapRectangle) {
	t.Helper()
	if !(r.MinX() <= r.MaxX() && r.MinY() <= r.MaxY()) {
		t.Errorf("%s: min/max out of order: %v", name, r)
	}
	b := r.Box()
	if !(b.MinX <= b.MaxX && b.MinY <= b.MaxY) {
		t.Errorf("%s: box out of order: %v", name, b)
	}
}

func TestMinMaxHoldAfterEveryConstruction(t *testing.T) {
	box := NewBoundingBox(10, 40, -5, 20)
	if box.MinX != -5 || box.MaxX != 10 || box.MinY != 20 || box.MaxY != 40 {
		t.Fatalf("NewBoundingBox did not normalise: %v", box)
	}

	oriented := MapRectangle{Left: 10, Top: -3, Right: -10, Bottom: 7}
	checkOrdered(t, "literal", oriented)
	checkOrdered(t, "from box north-up", RectangleFromBox(box, MinXMaxY))
	checkOrdered(t, "from box screen", RectangleFromBox(box, MinXMinY))
	checkOrdered(t, "resize", oriented.Resize(2))
	checkOrdered(t, "resize shrink", oriented.Resize(0.25))

	pts, ok := RectangleFromPoints([]orb.Point{{3, 1}, {-2, 5}, {math.NaN(), 0}, {7, -4}})
	if !ok {
		t.Fatal("RectangleFromPoints returned !ok")
	}
	checkOrdered(t, "from points", pts)
	if pts.Left != -2 || pts.Right != 7 || pts.Bottom != -4 || pts.Top != 5 {
		t.Errorf("RectangleFromPoints = %v", pts)
	}
}

func TestRectangleFromPointsAllInvalid(t *testing.T) {
	_, ok := RectangleFromPoints([]orb.Point{{math.NaN(), 1}, {math.Inf(1), 2}})
	if ok {
		t.Error("expected !ok for all non-finite points")
	}
}

func TestResizeKeepsCenterAndOrientation(t *testing.T) {
	r := MapRectangle{Left: 0, Top: 10, Right: 20, Bottom: 0}
	g := r.Resize(4)
	if g.Center() != r.Center() {
		t.Errorf("center moved: %v -> %v", r.Center(), g.Center())
	}
	if g.Width() != 40 || g.Height() != 20 {
		t.Errorf("resized extent = %vx%v, want 40x20", g.Width(), g.Height())
	}
	if !(g.Left < g.Right && g.Top > g.Bottom) {
		t.Errorf("orientation lost: %v", g)
	}
	area := r.Resize(1.025)
	if got := area.Width() * area.Height(); math.Abs(got-1.025*200) > 1e-9 {
		t.Errorf("area after Resize(1.025) = %v, want %v", got, 1.025*200)
	}
}

func TestEqual(t *testing.T) {
	a := MapRectangle{Left: 0, Top: 1, Right: 2, Bottom: 3}
	b := MapRectangle{Left: 2, Top: 1, Right: 0, Bottom: 3} // same box, flipped X
	if !a.Equal(a) {
		t.Error("a != a")
	}
	if a.Equal(b) {
		t.Error("rectangles with different orientation compare equal")
	}
	if a.Box() != b.Box() {
		t.Error("boxes of flipped rectangles differ")
	}
	c := MapRectangle{Left: 1e-9, Top: 1, Right: 2, Bottom: 3}
	if a.Equal(c) || !a.EqualWithin(c, 1e-6) {
		t.Error("EqualWithin tolerance not applied")
	}
}

func TestAtAndFraction(t *testing.T) {
	r := RectangleFromBox(NewBoundingBox(100, 200, 300, 600), MinXMaxY)
	p := r.At(0.25, 0.5)
	if p != (orb.Point{150, 400}) {
		t.Errorf("At(0.25, 0.5) = %v", p)
	}
	if tl := r.At(0, 0); tl != (orb.Point{100, 600}) {
		t.Errorf("top-left = %v, want [100 600]", tl)
	}
	u, v := r.Fraction(p)
	if u != 0.25 || v != 0.5 {
		t.Errorf("Fraction = %v, %v", u, v)
	}
}

func TestIntersect(t *testing.T) {
	a := NewBoundingBox(0, 0, 10, 10)
	got, ok := a.Intersect(NewBoundingBox(5, -5, 15, 5))
	if !ok || got != NewBoundingBox(5, 0, 10, 5) {
		t.Errorf("Intersect = %v, %v", got, ok)
	}
	if _, ok := a.Intersect(NewBoundingBox(20, 20, 30, 30)); ok {
		t.Error("disjoint boxes intersect")
	}
	if _, ok := a.Intersect(NewBoundingBox(10, 0, 20, 10)); ok {
		t.Error("touching boxes should not have a positive-area intersection")
	}
	if !a.Contains(NewBoundingBox(1, 1, 2, 2)) || a.Contains(NewBoundingBox(-1, 1, 2, 2)) {
		t.Error("Contains wrong")
	}
}

func TestImageSourceFunc(t *testing.T) {
	var gotSize Size
	src := ImageSourceFunc(func(_ context.Context, _ BoundingBox, size Size) ([]byte, error) {
		gotSize = size
		return nil, nil
	})
	data, err := src.GetImage(context.Background(), NewBoundingBox(0, 0, 1, 1), Size{3, 4})
	if data != nil || err != nil {
		t.Errorf("GetImage = %v, %v", data, err)
	}
	if gotSize.Pixels() != 12 || gotSize.String() != "3x4" {
		t.Errorf("size = %v", gotSize)
	}
}
