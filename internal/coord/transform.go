package coord

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/wroge/wgs84"
)

// Transformer maps a logical coordinate in one CRS to the corresponding
// coordinate in another. Implementations return an error wrapping
// ErrOutOfDomain when the point cannot be mapped.
type Transformer interface {
	Transform(p orb.Point) (orb.Point, error)
}

// BatchTransformer transforms many points in one call, in place. Points
// that cannot be transformed are set to NaN; the returned error reports
// how many failed.
type BatchTransformer interface {
	Transformer
	TransformPoints(pts []orb.Point) error
}

// TransformFunc adapts a plain function to Transformer.
type TransformFunc func(p orb.Point) (orb.Point, error)

func (f TransformFunc) Transform(p orb.Point) (orb.Point, error) { return f(p) }

var nan = orb.Point{math.NaN(), math.NaN()}

// TransformAll transforms pts in place, using the batch form when t offers it.
func TransformAll(t Transformer, pts []orb.Point) error {
	if bt, ok := t.(BatchTransformer); ok {
		return bt.TransformPoints(pts)
	}
	return transformEach(t, pts)
}

func transformEach(t Transformer, pts []orb.Point) error {
	failed := 0
	var first error
	for i, p := range pts {
		q, err := t.Transform(p)
		if err == nil {
			err = checkFinite(q)
		}
		if err != nil {
			if first == nil {
				first = err
			}
			failed++
			pts[i] = nan
			continue
		}
		pts[i] = q
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d points failed: %w", failed, len(pts), first)
	}
	return nil
}

// ProjectionTransformer maps coordinates of one native projection to
// another through WGS84 longitude/latitude.
type ProjectionTransformer struct {
	From, To Projection
}

// Between returns a transformer from one projection to another.
func Between(from, to Projection) *ProjectionTransformer {
	return &ProjectionTransformer{From: from, To: to}
}

func (t *ProjectionTransformer) Transform(p orb.Point) (orb.Point, error) {
	if t.From.EPSG() == t.To.EPSG() {
		return p, checkFinite(p)
	}
	ll, err := t.From.ToWGS84(p)
	if err != nil {
		return nan, err
	}
	q, err := t.To.FromWGS84(ll)
	if err != nil {
		return nan, err
	}
	return q, checkFinite(q)
}

func (t *ProjectionTransformer) TransformPoints(pts []orb.Point) error {
	return transformEach(t, pts)
}

// epsgTransformer delegates to a wroge/wgs84 transformation function.
type epsgTransformer struct {
	from, to int
	fn       func(a, b, c float64) (float64, float64, float64)
}

func (t *epsgTransformer) Transform(p orb.Point) (orb.Point, error) {
	if err := checkFinite(p); err != nil {
		return nan, err
	}
	x, y, _ := t.fn(p[0], p[1], 0)
	q := orb.Point{x, y}
	if err := checkFinite(q); err != nil {
		return nan, fmt.Errorf("EPSG:%d -> EPSG:%d %v: %w", t.from, t.to, p, err)
	}
	return q, nil
}

func (t *epsgTransformer) TransformPoints(pts []orb.Point) error {
	return transformEach(t, pts)
}

// NewEPSGTransformer returns a transformer between two EPSG codes. Native
// projections are used when both codes have one; otherwise the wgs84
// repository is consulted.
func NewEPSGTransformer(from, to int) (Transformer, error) {
	if pf, pt := ForEPSG(from), ForEPSG(to); pf != nil && pt != nil {
		return Between(pf, pt), nil
	}
	repo := wgs84.EPSG()
	src, dst := repo.Code(from), repo.Code(to)
	if src == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedEPSG, from)
	}
	if dst == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedEPSG, to)
	}
	return &epsgTransformer{from: from, to: to, fn: wgs84.Transform(src, dst)}, nil
}

// Affine scales and then translates each axis independently. It maps
// rectangles onto rectangles.
type Affine struct {
	ScaleX, ScaleY   float64
	OffsetX, OffsetY float64
}

func (a Affine) Transform(p orb.Point) (orb.Point, error) {
	q := orb.Point{p[0]*a.ScaleX + a.OffsetX, p[1]*a.ScaleY + a.OffsetY}
	return q, checkFinite(q)
}

// Rotation rotates points counter-clockwise by Angle radians around Center.
type Rotation struct {
	Angle  float64
	Center orb.Point
}

func (r Rotation) Transform(p orb.Point) (orb.Point, error) {
	sin, cos := math.Sincos(r.Angle)
	dx, dy := p[0]-r.Center[0], p[1]-r.Center[1]
	q := orb.Point{r.Center[0] + dx*cos - dy*sin, r.Center[1] + dx*sin + dy*cos}
	return q, checkFinite(q)
}
