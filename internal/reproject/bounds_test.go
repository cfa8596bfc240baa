package reproject

import (
	"image"
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/pspoerri/mapreproject/internal/coord"
	"github.com/pspoerri/mapreproject/internal/mapservice"
)

func TestSourceEdgesSampling(t *testing.T) {
	r := mapservice.MapRectangle{Left: 0, Top: 10, Right: 20, Bottom: 0}
	e, err := SourceEdges(coord.Affine{ScaleX: 1, ScaleY: 1}, r, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := Edges{
		Left:   []orb.Point{{0, 10}, {0, 5}, {0, 0}},
		Top:    []orb.Point{{0, 10}, {10, 10}, {20, 10}},
		Right:  []orb.Point{{20, 10}, {20, 5}, {20, 0}},
		Bottom: []orb.Point{{0, 0}, {10, 0}, {20, 0}},
	}
	for name, pair := range map[string][2][]orb.Point{
		"left": {e.Left, want.Left}, "top": {e.Top, want.Top},
		"right": {e.Right, want.Right}, "bottom": {e.Bottom, want.Bottom},
	} {
		for i := range pair[1] {
			if pair[0][i] != pair[1][i] {
				t.Errorf("%s edge = %v, want %v", name, pair[0], pair[1])
				break
			}
		}
	}
	if len(e.All()) != 12 {
		t.Errorf("All() has %d points, want 12", len(e.All()))
	}

	// Fewer than two samples per edge is raised to two.
	e, _ = SourceEdges(coord.Affine{ScaleX: 1, ScaleY: 1}, r, 1)
	if len(e.Left) != 2 {
		t.Errorf("edge has %d samples, want 2", len(e.Left))
	}
}

func TestIsRectangular(t *testing.T) {
	r := mapservice.RectangleFromBox(mapservice.NewBoundingBox(0, 0, 100, 50), mapservice.MinXMaxY)
	tests := []struct {
		name string
		tr   coord.Transformer
		want bool
	}{
		{"identity", coord.Affine{ScaleX: 1, ScaleY: 1}, true},
		{"scale and translate", coord.Affine{ScaleX: 3, ScaleY: 0.5, OffsetX: 2_600_000, OffsetY: 1_200_000}, true},
		{"mirrored", coord.Affine{ScaleX: -1, ScaleY: 1}, true},
		{"rotation", coord.Rotation{Angle: 0.01}, false},
		{"mercator to wgs84", coord.Between(coord.WebMercator{}, coord.WGS84Identity{}), true},
		{"wgs84 to swiss", coord.Between(coord.WGS84Identity{}, coord.SwissLV95{}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rect := r
			if tt.name == "mercator to wgs84" {
				rect = mapservice.RectangleFromBox(mapservice.NewBoundingBox(800_000, 5_900_000, 1_000_000, 6_000_000), mapservice.MinXMaxY)
			}
			if tt.name == "wgs84 to swiss" {
				rect = mapservice.RectangleFromBox(mapservice.NewBoundingBox(7, 46, 8, 47), mapservice.MinXMaxY)
			}
			e, err := SourceEdges(tt.tr, rect, 8)
			if err != nil {
				t.Fatal(err)
			}
			if _, got := IsRectangular(e); got != tt.want {
				t.Errorf("IsRectangular = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRectangularKeepsOrientation(t *testing.T) {
	r := mapservice.RectangleFromBox(mapservice.NewBoundingBox(0, 0, 10, 10), mapservice.MinXMaxY)
	e, _ := SourceEdges(coord.Affine{ScaleX: 1, ScaleY: -1}, r, 4)
	mapped, ok := IsRectangular(e)
	if !ok {
		t.Fatal("flip is rectangular")
	}
	want := mapservice.MapRectangle{Left: 0, Top: -10, Right: 10, Bottom: 0}
	if !mapped.EqualWithin(want, 1e-12) {
		t.Errorf("mapped = %v, want %v", mapped, want)
	}
	if sameOrientation(mapped, mapservice.RectangleFromBox(mapped.Box(), mapservice.MinXMaxY)) {
		t.Error("flipped rectangle reported with north-up orientation")
	}
}

func TestIsRectangularWithFailedSamples(t *testing.T) {
	e := Edges{
		Left:   []orb.Point{{0, 1}, {0, 0}},
		Top:    []orb.Point{{0, 1}, {math.NaN(), math.NaN()}},
		Right:  []orb.Point{{1, 1}, {1, 0}},
		Bottom: []orb.Point{{0, 0}, {1, 0}},
	}
	if _, ok := IsRectangular(e); ok {
		t.Error("edge with a failed sample reported rectangular")
	}
}

func TestSourceSize(t *testing.T) {
	wide := mapservice.NewBoundingBox(0, 0, 200, 100) // aspect 2
	target := mapservice.Size{Width: 100, Height: 100}
	tests := []struct {
		name   string
		factor *float64
		want   mapservice.Size
	}{
		{"target pixel count", nil, mapservice.Size{Width: 141, Height: 71}},
		{"double pixel count", SizeFactor(-2), mapservice.Size{Width: 200, Height: 100}},
		{"smallest candidate", SizeFactor(0), mapservice.Size{Width: 100, Height: 50}},
		{"largest candidate", SizeFactor(1), mapservice.Size{Width: 200, Height: 100}},
		{"halfway", SizeFactor(0.5), mapservice.Size{Width: 158, Height: 79}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SourceSize(wide, target, tt.factor); got != tt.want {
				t.Errorf("SourceSize = %v, want %v", got, tt.want)
			}
		})
	}

	// Tiny or degenerate sources still get at least one pixel.
	if got := SourceSize(mapservice.NewBoundingBox(0, 0, 1e6, 1), mapservice.Size{Width: 2, Height: 2}, nil); got.Height < 1 || got.Width < 1 {
		t.Errorf("SourceSize for a sliver = %v", got)
	}
	if got := SourceSize(mapservice.NewBoundingBox(0, 0, 0, 1), target, nil); got != target {
		t.Errorf("SourceSize for a line = %v, want target size", got)
	}
}

func TestCoverage(t *testing.T) {
	r := mapservice.RectangleFromBox(mapservice.NewBoundingBox(0, 0, 100, 100), mapservice.MinXMaxY)
	size := mapservice.Size{Width: 200, Height: 100}
	id := coord.Affine{ScaleX: 1, ScaleY: 1}

	// North-west quarter of the target.
	got, ok := coverage(id, r, size, mapservice.NewBoundingBox(0, 60, 30, 100), 10)
	if !ok {
		t.Fatal("no coverage")
	}
	want := image.Rect(0, 0, 80, 50)
	if got != want {
		t.Errorf("coverage = %v, want %v", got, want)
	}

	if _, ok := coverage(id, r, size, mapservice.NewBoundingBox(500, 500, 600, 600), 10); ok {
		t.Error("disjoint limits reported as covering")
	}

	// Limits smaller than one grid cell still count.
	if got, ok := coverage(id, r, size, mapservice.NewBoundingBox(51, 51, 52, 52), 4); !ok || got.Empty() {
		t.Errorf("small limits: coverage = %v, %v", got, ok)
	}
}

func TestSubRectangle(t *testing.T) {
	r := mapservice.RectangleFromBox(mapservice.NewBoundingBox(0, 0, 100, 100), mapservice.MinXMaxY)
	sub := subRectangle(r, mapservice.Size{Width: 200, Height: 100}, image.Rect(0, 0, 80, 50))
	want := mapservice.MapRectangle{Left: 0, Top: 100, Right: 40, Bottom: 50}
	if !sub.EqualWithin(want, 1e-9) {
		t.Errorf("subRectangle = %v, want %v", sub, want)
	}
}

func TestPixelMapperIdentity(t *testing.T) {
	r := mapservice.RectangleFromBox(mapservice.NewBoundingBox(10, 20, 30, 60), mapservice.MinXMaxY)
	m := pixelMapper(coord.Affine{ScaleX: 1, ScaleY: 1}, r, mapservice.Size{Width: 20, Height: 40}, r, 20, 40)
	for _, p := range []orb.Point{{0, 0}, {19, 39}, {7, 13}} {
		q, err := m(p)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(q[0]-p[0]) > 1e-9 || math.Abs(q[1]-p[1]) > 1e-9 {
			t.Errorf("m(%v) = %v, want identity", p, q)
		}
	}
}
