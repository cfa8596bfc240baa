// Package source provides image sources for the reprojection service: an
// in-memory georeferenced image and an HTTP map server client.
package source

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"

	"github.com/disintegration/imaging"
	"github.com/paulmach/orb"

	"github.com/pspoerri/mapreproject/internal/encode"
	"github.com/pspoerri/mapreproject/internal/mapservice"
)

// Static serves parts of a single georeferenced image held in memory.
// Requests are cut from the image, resized to the requested size and
// encoded. Areas of a request outside the image are transparent.
type Static struct {
	img    *image.NRGBA
	box    mapservice.BoundingBox
	corner mapservice.Corner

	// Encoder encodes responses (default: stored PNG).
	Encoder encode.Encoder
	// Filter is the resampling filter used to resize cut-outs.
	Filter imaging.ResampleFilter
}

var _ mapservice.ImageSource = (*Static)(nil)

// NewStatic georeferences img to box; corner names the corner of box that
// the image's top-left pixel sits on.
func NewStatic(img image.Image, box mapservice.BoundingBox, corner mapservice.Corner) (*Static, error) {
	if !box.IsFinite() || box.IsDegenerate() {
		return nil, fmt.Errorf("static source: invalid bounds %v", box)
	}
	b := img.Bounds()
	if b.Dx() < 1 || b.Dy() < 1 {
		return nil, fmt.Errorf("static source: empty image")
	}
	return &Static{
		img:     imaging.Clone(img),
		box:     box,
		corner:  corner,
		Encoder: &encode.PNGEncoder{},
		Filter:  imaging.Linear,
	}, nil
}

// OpenFile loads an image and georeferences it with its world file.
func OpenFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	img, err := encode.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	wfPath := FindWorldFile(path)
	if wfPath == "" {
		return nil, fmt.Errorf("%s: no world file found", path)
	}
	wf, err := ReadWorldFile(wfPath)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return NewStatic(img, wf.Bounds(b.Dx(), b.Dy()), wf.Corner())
}

// Bounds returns the area the image covers.
func (s *Static) Bounds() mapservice.BoundingBox { return s.box }

// Corner returns the orientation of the image and of every response.
func (s *Static) Corner() mapservice.Corner { return s.corner }

// Size returns the image's pixel size.
func (s *Static) Size() mapservice.Size {
	return mapservice.Size{Width: s.img.Rect.Dx(), Height: s.img.Rect.Dy()}
}

// GetImage renders bbox at size, oriented like the source image. It returns
// nil when bbox does not overlap the image.
func (s *Static) GetImage(ctx context.Context, bbox mapservice.BoundingBox, size mapservice.Size) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !size.Valid() {
		return nil, fmt.Errorf("static source: invalid size %v", size)
	}
	img := s.Render(bbox, size)
	if img == nil {
		return nil, nil
	}
	return s.Encoder.Encode(img)
}

// Render is GetImage without encoding.
func (s *Static) Render(bbox mapservice.BoundingBox, size mapservice.Size) *image.NRGBA {
	overlap, ok := bbox.Intersect(s.box)
	if !ok {
		return nil
	}
	iw, ih := float64(s.img.Rect.Dx()), float64(s.img.Rect.Dy())

	// Fractional pixel rectangle of the overlap in the source image, and
	// the integer rectangle that contains it.
	fx0, fy0 := s.pixel(overlap.MinX, s.rowEdge(overlap), s.box, iw, ih)
	fx1, fy1 := s.pixel(overlap.MaxX, s.rowEdgeFar(overlap), s.box, iw, ih)
	crop := image.Rect(int(math.Floor(fx0)), int(math.Floor(fy0)), int(math.Ceil(fx1)), int(math.Ceil(fy1))).
		Intersect(s.img.Rect)
	if crop.Empty() {
		return nil
	}

	// Where the integer crop lands in the output.
	ow, oh := float64(size.Width), float64(size.Height)
	ox0, oy0 := s.pixel(s.xAt(crop.Min.X, iw), s.yAt(crop.Min.Y, ih), bbox, ow, oh)
	ox1, oy1 := s.pixel(s.xAt(crop.Max.X, iw), s.yAt(crop.Max.Y, ih), bbox, ow, oh)
	w := max(1, int(math.Round(ox1-ox0)))
	h := max(1, int(math.Round(oy1-oy0)))

	part := imaging.Resize(imaging.Crop(s.img, crop), w, h, s.Filter)
	canvas := imaging.New(size.Width, size.Height, color.NRGBA{})
	return imaging.Paste(canvas, part, image.Pt(int(math.Round(ox0)), int(math.Round(oy0))))
}

// pixel converts a logical coordinate to a fractional pixel position in an
// image of w x h pixels covering box, oriented like the source.
func (s *Static) pixel(x, y float64, box mapservice.BoundingBox, w, h float64) (float64, float64) {
	r := mapservice.RectangleFromBox(box, s.corner)
	u, v := r.Fraction(orb.Point{x, y})
	return u * w, v * h
}

// rowEdge returns the y coordinate of the overlap's first row edge.
func (s *Static) rowEdge(b mapservice.BoundingBox) float64 {
	if s.corner == mapservice.MinXMinY {
		return b.MinY
	}
	return b.MaxY
}

func (s *Static) rowEdgeFar(b mapservice.BoundingBox) float64 {
	if s.corner == mapservice.MinXMinY {
		return b.MaxY
	}
	return b.MinY
}

// xAt and yAt return the logical coordinate of a pixel edge in the source.
func (s *Static) xAt(px int, w float64) float64 {
	return s.box.MinX + float64(px)/w*s.box.Width()
}

func (s *Static) yAt(py int, h float64) float64 {
	if s.corner == mapservice.MinXMinY {
		return s.box.MinY + float64(py)/h*s.box.Height()
	}
	return s.box.MaxY - float64(py)/h*s.box.Height()
}
