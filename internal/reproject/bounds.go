package reproject

import (
	"image"
	"math"

	"github.com/paulmach/orb"

	"github.com/pspoerri/mapreproject/internal/coord"
	"github.com/pspoerri/mapreproject/internal/mapservice"
)

const (
	// straightTolerance is the relative deviation allowed between the
	// samples of one edge for the edge to count as axis-parallel.
	straightTolerance = 1e-6
	// aspectTolerance is the relative aspect ratio difference allowed
	// between the target and the transformed rectangle on the fast path.
	aspectTolerance = 1e-4
)

// Edges holds the transformed samples of the four edges of a rectangle.
// Left and Right run top to bottom, Top and Bottom run left to right.
type Edges struct {
	Left, Top, Right, Bottom []orb.Point
}

// All returns every sample in one slice.
func (e Edges) All() []orb.Point {
	all := make([]orb.Point, 0, len(e.Left)+len(e.Top)+len(e.Right)+len(e.Bottom))
	all = append(all, e.Left...)
	all = append(all, e.Top...)
	all = append(all, e.Right...)
	return append(all, e.Bottom...)
}

// sampleEdges places n samples, corners included, on each edge of r.
func sampleEdges(r mapservice.MapRectangle, n int) []orb.Point {
	pts := make([]orb.Point, 0, 4*n)
	step := 1 / float64(n-1)
	for _, edge := range [4]func(t float64) orb.Point{
		func(t float64) orb.Point { return r.At(0, t) },
		func(t float64) orb.Point { return r.At(t, 0) },
		func(t float64) orb.Point { return r.At(1, t) },
		func(t float64) orb.Point { return r.At(t, 1) },
	} {
		for i := 0; i < n; i++ {
			pts = append(pts, edge(float64(i)*step))
		}
	}
	return pts
}

// SourceEdges transforms n samples per edge of r with t. Samples that fail
// to transform are NaN; the error of the batch is returned alongside.
func SourceEdges(t coord.Transformer, r mapservice.MapRectangle, n int) (Edges, error) {
	n = max(n, 2)
	pts := sampleEdges(r, n)
	err := coord.TransformAll(t, pts)
	return Edges{
		Left:   pts[0:n:n],
		Top:    pts[n : 2*n : 2*n],
		Right:  pts[2*n : 3*n : 3*n],
		Bottom: pts[3*n : 4*n],
	}, err
}

// IsRectangular reports whether the transformed edges still form an
// axis-parallel rectangle, and returns that rectangle oriented the way the
// edges are.
func IsRectangular(e Edges) (mapservice.MapRectangle, bool) {
	box, ok := mapservice.BoundOf(e.All())
	if !ok {
		return mapservice.MapRectangle{}, false
	}
	tol := straightTolerance * math.Max(1, math.Max(box.Width(), box.Height()))

	left, ok1 := commonAxis(e.Left, 0, tol)
	right, ok2 := commonAxis(e.Right, 0, tol)
	top, ok3 := commonAxis(e.Top, 1, tol)
	bottom, ok4 := commonAxis(e.Bottom, 1, tol)
	if !(ok1 && ok2 && ok3 && ok4) {
		return mapservice.MapRectangle{}, false
	}
	r := mapservice.MapRectangle{Left: left, Top: top, Right: right, Bottom: bottom}
	return r, r.Width() > 0 && r.Height() > 0
}

// commonAxis returns the mean of coordinate axis over pts if all of them
// agree within tol.
func commonAxis(pts []orb.Point, axis int, tol float64) (float64, bool) {
	lo, hi, sum := math.Inf(1), math.Inf(-1), 0.0
	for _, p := range pts {
		if !mapservice.IsFinite(p) {
			return 0, false
		}
		lo, hi = math.Min(lo, p[axis]), math.Max(hi, p[axis])
		sum += p[axis]
	}
	return sum / float64(len(pts)), hi-lo <= tol
}

// sameAspect compares aspect ratios with a relative tolerance.
func sameAspect(a, b mapservice.MapRectangle) bool {
	ra, rb := a.Aspect(), b.Aspect()
	return math.Abs(ra-rb) <= aspectTolerance*math.Max(ra, rb)
}

// sameOrientation reports whether a and b have their left and top sides on
// the same ends of the axes.
func sameOrientation(a, b mapservice.MapRectangle) bool {
	return (a.Right > a.Left) == (b.Right > b.Left) && (a.Bottom > a.Top) == (b.Bottom > b.Top)
}

// SourceSize chooses the pixel size to request for a source bounding box.
//
// Without a factor the source gets as many pixels as the target. A negative
// factor multiplies the target pixel count by its magnitude. Otherwise four
// candidates are derived by matching either target side against either
// source side, and the pixel count is interpolated between the smallest and
// the largest of them.
func SourceSize(src mapservice.BoundingBox, target mapservice.Size, factor *float64) mapservice.Size {
	aspect := src.Width() / src.Height()
	if !(aspect > 0) || math.IsInf(aspect, 0) {
		return target
	}
	pixels := float64(target.Pixels())
	switch {
	case factor == nil:
	case *factor < 0:
		pixels *= -*factor
	default:
		w, h := float64(target.Width), float64(target.Height)
		candidates := [4]float64{w * w / aspect, h * h * aspect, w * w * aspect, h * h / aspect}
		lo, hi := candidates[0], candidates[0]
		for _, c := range candidates[1:] {
			lo, hi = math.Min(lo, c), math.Max(hi, c)
		}
		pixels = lo + *factor*(hi-lo)
	}
	h := math.Sqrt(pixels / aspect)
	return mapservice.Size{
		Width:  max(1, int(math.Round(h*aspect))),
		Height: max(1, int(math.Round(h))),
	}
}

// coverage returns the target pixels whose source footprint may intersect
// limits. The target is split into an n x n grid; each cell whose
// transformed corners' envelope meets limits is counted as covered.
func coverage(t coord.Transformer, r mapservice.MapRectangle, size mapservice.Size, limits mapservice.BoundingBox, n int) (image.Rectangle, bool) {
	n = max(n, 2)
	pts := make([]orb.Point, 0, (n+1)*(n+1))
	for j := 0; j <= n; j++ {
		for i := 0; i <= n; i++ {
			pts = append(pts, r.At(float64(i)/float64(n), float64(j)/float64(n)))
		}
	}
	_ = coord.TransformAll(t, pts)

	var covered image.Rectangle
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			o := j*(n+1) + i
			cell := []orb.Point{pts[o], pts[o+1], pts[o+n+1], pts[o+n+2]}
			box, ok := mapservice.BoundOf(cell)
			if !ok || !box.Bound().Intersects(limits.Bound()) {
				continue
			}
			px := image.Rect(
				int(math.Floor(float64(i)/float64(n)*float64(size.Width))),
				int(math.Floor(float64(j)/float64(n)*float64(size.Height))),
				int(math.Ceil(float64(i+1)/float64(n)*float64(size.Width))),
				int(math.Ceil(float64(j+1)/float64(n)*float64(size.Height))),
			)
			covered = covered.Union(px)
		}
	}
	covered = covered.Intersect(image.Rect(0, 0, size.Width, size.Height))
	return covered, !covered.Empty()
}

// subRectangle returns the part of r drawn by the target pixels in px.
func subRectangle(r mapservice.MapRectangle, size mapservice.Size, px image.Rectangle) mapservice.MapRectangle {
	w, h := float64(size.Width), float64(size.Height)
	tl := r.At(float64(px.Min.X)/w, float64(px.Min.Y)/h)
	br := r.At(float64(px.Max.X)/w, float64(px.Max.Y)/h)
	return mapservice.MapRectangle{Left: tl[0], Top: tl[1], Right: br[0], Bottom: br[1]}
}

// pixelMapper builds the target pixel to source pixel mapping: target pixel
// center to target coordinate, through t to source coordinate, and on to a
// position in the source image, which covers source at sw x sh pixels.
func pixelMapper(t coord.Transformer, target mapservice.MapRectangle, size mapservice.Size, source mapservice.MapRectangle, sw, sh int) Mapper {
	tw, th := float64(size.Width), float64(size.Height)
	fw, fh := float64(sw), float64(sh)
	return func(p orb.Point) (orb.Point, error) {
		q, err := t.Transform(target.At((p[0]+0.5)/tw, (p[1]+0.5)/th))
		if err != nil {
			return q, err
		}
		u, v := source.Fraction(q)
		return orb.Point{u*fw - 0.5, v*fh - 0.5}, nil
	}
}
