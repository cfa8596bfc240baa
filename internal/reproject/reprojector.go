// Package reproject resamples a source image into a target image whose
// pixels relate to the source through an arbitrary, possibly non-linear,
// coordinate mapping.
//
// The mapping is evaluated exactly only at the corners of small target
// blocks; coordinates inside a block are interpolated linearly between the
// four corners. When the source has more pixels per target pixel than one,
// every target pixel averages a grid of sub-samples to avoid aliasing.
package reproject

import (
	"fmt"
	"sync/atomic"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/pspoerri/mapreproject/internal/mapservice"
	"github.com/pspoerri/mapreproject/internal/raster"
)

// Mapper maps the center of a target pixel to the corresponding position in
// source pixel coordinates, where integer coordinates are pixel centers. An
// error (or a panic) leaves the block containing the pixel transparent.
type Mapper func(target orb.Point) (orb.Point, error)

// Stats reports what a reprojection did.
type Stats struct {
	Blocks       int
	FailedBlocks int
	// ScaleX and ScaleY are the number of sub-samples per target pixel
	// along each axis.
	ScaleX, ScaleY int
}

// Reprojector fills target images from source images block by block.
// It holds no per-image state and is safe for concurrent use.
type Reprojector struct {
	opts Options
}

// NewReprojector validates opts and fills in defaults for zero values.
func NewReprojector(opts Options) (*Reprojector, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	return &Reprojector{opts: opts}, nil
}

// Options returns the normalised options.
func (r *Reprojector) Options() Options { return r.opts }

// Reproject takes a width x height target from the raster pool and fills it
// from src. The source is read with the reprojector's interpolation mode
// regardless of the mode it was created with. Callers may hand the result
// back with raster.Put once they are done with it.
func (r *Reprojector) Reproject(src *raster.Image, width, height int, mapper Mapper) (*raster.Image, Stats, error) {
	dst, err := raster.Get(width, height, r.opts.Interpolation)
	if err != nil {
		return nil, Stats{}, err
	}
	stats, err := r.ReprojectInto(dst, src, mapper)
	if err != nil {
		raster.Put(dst)
		return nil, stats, err
	}
	return dst, stats, nil
}

// ReprojectInto fills dst from src. Pixels of blocks whose mapping fails are
// not touched.
func (r *Reprojector) ReprojectInto(dst, src *raster.Image, mapper Mapper) (Stats, error) {
	if dst == nil || src == nil || mapper == nil {
		return Stats{}, fmt.Errorf("%w: nil target, source or mapper", ErrInvalidOptions)
	}
	if src.Interpolation() != r.opts.Interpolation {
		var err error
		src, err = raster.New(src.Width(), src.Height(), src.Pix(), r.opts.Interpolation)
		if err != nil {
			return Stats{}, err
		}
	}

	sx, sy := scaleFor(src.Width(), dst.Width()), scaleFor(src.Height(), dst.Height())
	blocks := GetBlocks(dst.Width(), dst.Height(), r.opts.BlockSize)
	samples := newSubSamples(sx, sy)

	var failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(r.opts.DegreeOfParallelism)
	for _, b := range blocks {
		g.Go(func() error {
			if err := reprojectBlock(dst, src, b, samples, mapper); err != nil {
				failed.Add(1)
				Logger().Debug("block left transparent", "block", b.String(), "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats := Stats{
		Blocks:       len(blocks),
		FailedBlocks: int(failed.Load()),
		ScaleX:       sx,
		ScaleY:       sy,
	}
	Logger().Debug("reprojected",
		"source", fmt.Sprintf("%dx%d", src.Width(), src.Height()),
		"target", fmt.Sprintf("%dx%d", dst.Width(), dst.Height()),
		"blocks", stats.Blocks, "failed", stats.FailedBlocks,
		"scale", fmt.Sprintf("%dx%d", sx, sy))
	return stats, nil
}

// scaleFor returns ceil(src/dst), at least 1.
func scaleFor(src, dst int) int {
	return max(1, (src+dst-1)/dst)
}

// subSamples holds the offsets, relative to a target pixel center, at which
// the source is sampled for that pixel.
type subSamples struct {
	dx, dy []float64
}

func newSubSamples(sx, sy int) subSamples {
	offsets := func(n int) []float64 {
		o := make([]float64, n)
		for i := range o {
			o[i] = (float64(i)+0.5)/float64(n) - 0.5
		}
		return o
	}
	return subSamples{dx: offsets(sx), dy: offsets(sy)}
}

func (s subSamples) unscaled() bool { return len(s.dx) == 1 && len(s.dy) == 1 }

// reprojectBlock maps the block's corners and fills its pixels. Panics in the
// mapper are turned into errors so a single block cannot take down the image.
func reprojectBlock(dst, src *raster.Image, b Block, s subSamples, mapper Mapper) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("mapper panicked: %v", p)
		}
	}()

	anchors := gridAnchors(b)
	var mapped [4]orb.Point
	for i, p := range anchors {
		q, err := mapper(p)
		if err != nil {
			return fmt.Errorf("mapping corner %v: %w", p, err)
		}
		if !mapservice.IsFinite(q) {
			return fmt.Errorf("corner %v mapped to %v", p, q)
		}
		mapped[i] = q
	}
	grid := newCornerGrid(anchors, mapped)

	if s.unscaled() {
		for y := b.Y0; y <= b.Y1; y++ {
			for x := b.X0; x <= b.X1; x++ {
				dst.SetPixel(x, y, src.ReadPixel(grid.at(float64(x), float64(y))))
			}
		}
		return nil
	}

	n := len(s.dx) * len(s.dy)
	for y := b.Y0; y <= b.Y1; y++ {
		for x := b.X0; x <= b.X1; x++ {
			var sum [4]int
			for _, dy := range s.dy {
				for _, dx := range s.dx {
					c := src.ReadPixel(grid.at(float64(x)+dx, float64(y)+dy))
					sum[0] += int(c & 0xFF)
					sum[1] += int(c >> 8 & 0xFF)
					sum[2] += int(c >> 16 & 0xFF)
					sum[3] += int(c >> 24)
				}
			}
			dst.SetPixel(x, y, average(sum, n))
		}
	}
	return nil
}

// average divides each channel sum by n, rounding half up.
func average(sum [4]int, n int) raster.Color {
	var c raster.Color
	for ch, v := range sum {
		c |= raster.Color(min((v+n/2)/n, 255)) << (8 * ch)
	}
	return c
}

// cornerGrid interpolates source coordinates bilinearly between the mapped
// anchors of a block.
type cornerGrid struct {
	x0, y0     float64
	invW, invH float64
	tl, tr     orb.Point
	br, bl     orb.Point
}

// gridAnchors returns the target points the mapper is evaluated at: the
// centers of the block's corner pixels. A block one pixel wide or tall
// reaches to the next pixel center instead, so sub-sample offsets along
// that axis still move through the source.
func gridAnchors(b Block) [4]orb.Point {
	x0, y0, x1, y1 := float64(b.X0), float64(b.Y0), float64(b.X1), float64(b.Y1)
	if x1 == x0 {
		x1++
	}
	if y1 == y0 {
		y1++
	}
	return [4]orb.Point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

// newCornerGrid builds the grid from anchors as returned by gridAnchors and
// their mapped positions.
func newCornerGrid(anchors, mapped [4]orb.Point) cornerGrid {
	return cornerGrid{
		x0:   anchors[0][0],
		y0:   anchors[0][1],
		invW: 1 / (anchors[1][0] - anchors[0][0]),
		invH: 1 / (anchors[3][1] - anchors[0][1]),
		tl:   mapped[0],
		tr:   mapped[1],
		br:   mapped[2],
		bl:   mapped[3],
	}
}

func (g *cornerGrid) at(x, y float64) (float64, float64) {
	u := (x - g.x0) * g.invW
	v := (y - g.y0) * g.invH
	topX := g.tl[0] + u*(g.tr[0]-g.tl[0])
	topY := g.tl[1] + u*(g.tr[1]-g.tl[1])
	botX := g.bl[0] + u*(g.br[0]-g.bl[0])
	botY := g.bl[1] + u*(g.br[1]-g.bl[1])
	return topX + v*(botX-topX), topY + v*(botY-topY)
}
