// Package raster provides the packed 4-channel pixel buffer that the
// reprojection engine reads from and writes to. Reads take fractional
// coordinates and are resampled with the image's interpolation mode;
// writes round to the nearest pixel and silently drop out-of-range pixels.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"strings"

	"github.com/pspoerri/mapreproject/internal/pngstore"
)

// ErrInvalidArgument is returned for non-positive dimensions or a pixel
// buffer whose length does not match the dimensions.
var ErrInvalidArgument = errors.New("raster: invalid argument")

// Interpolation selects how fractional-coordinate reads are resampled.
type Interpolation int

const (
	Nearest Interpolation = iota
	Bilinear
	Bicubic
)

// ParseInterpolation converts a string to an Interpolation mode.
func ParseInterpolation(s string) (Interpolation, error) {
	switch strings.ToLower(s) {
	case "nearest", "nearest-neighbor":
		return Nearest, nil
	case "bilinear", "linear":
		return Bilinear, nil
	case "bicubic", "cubic", "catmull-rom":
		return Bicubic, nil
	default:
		return 0, fmt.Errorf("unknown interpolation %q (supported: nearest, bilinear, bicubic)", s)
	}
}

func (m Interpolation) String() string {
	switch m {
	case Nearest:
		return "nearest"
	case Bilinear:
		return "bilinear"
	case Bicubic:
		return "bicubic"
	default:
		return fmt.Sprintf("Interpolation(%d)", int(m))
	}
}

// quality maps a mode onto the tier reads start at before falling back.
func (m Interpolation) quality() int {
	switch {
	case m >= Bicubic:
		return 2
	case m == Bilinear:
		return 1
	default:
		return 0
	}
}

// Image is a width x height buffer of 4-byte pixels in blue, green, red,
// alpha order. It implements draw.Image with a non-premultiplied model.
type Image struct {
	width   int
	height  int
	pix     []byte
	mode    Interpolation
	quality int
}

var _ draw.Image = (*Image)(nil)

// New creates an image. A nil pix allocates a fully transparent buffer
// (all bytes zero); otherwise pix must hold exactly width*height*4 bytes and
// is used without copying.
func New(width, height int, pix []byte, mode Interpolation) (*Image, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidArgument, width, height)
	}
	n := width * height * 4
	if pix == nil {
		pix = make([]byte, n)
	} else if len(pix) != n {
		return nil, fmt.Errorf("%w: pixel buffer has %d bytes, want %d for %dx%d",
			ErrInvalidArgument, len(pix), n, width, height)
	}
	return &Image{width: width, height: height, pix: pix, mode: mode, quality: mode.quality()}, nil
}

func (m *Image) Width() int                   { return m.width }
func (m *Image) Height() int                  { return m.height }
func (m *Image) Pix() []byte                  { return m.pix }
func (m *Image) Interpolation() Interpolation { return m.mode }

// Pixel returns the pixel at integer coordinates, or Transparent outside.
func (m *Image) Pixel(x, y int) Color {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return Transparent
	}
	o := (y*m.width + x) * 4
	p := m.pix[o : o+4 : o+4]
	return Color(p[0]) | Color(p[1])<<8 | Color(p[2])<<16 | Color(p[3])<<24
}

// SetPixel overwrites the pixel at integer coordinates; out of range is a no-op.
func (m *Image) SetPixel(x, y int, c Color) {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return
	}
	o := (y*m.width + x) * 4
	p := m.pix[o : o+4 : o+4]
	p[0] = uint8(c)
	p[1] = uint8(c >> 8)
	p[2] = uint8(c >> 16)
	p[3] = uint8(c >> 24)
}

// WritePixel rounds (x, y) to the nearest pixel and overwrites it.
// Writes outside the image are dropped.
func (m *Image) WritePixel(x, y float64, c Color) {
	if !(x > -1 && y > -1 && x < float64(m.width) && y < float64(m.height)) {
		return
	}
	m.SetPixel(int(math.Floor(x+0.5)), int(math.Floor(y+0.5)), c)
}

// Fill sets every pixel to c.
func (m *Image) Fill(c Color) {
	m.SetPixel(0, 0, c)
	for filled := 4; filled < len(m.pix); filled *= 2 {
		copy(m.pix[filled:], m.pix[:filled])
	}
}

// Draw copies src onto m with its top-left corner at (offX, offY),
// replacing the destination pixels. Parts falling outside m are clipped.
func (m *Image) Draw(src *Image, offX, offY int) {
	x0, y0 := max(offX, 0), max(offY, 0)
	x1, y1 := min(offX+src.width, m.width), min(offY+src.height, m.height)
	if x0 >= x1 || y0 >= y1 {
		return
	}
	n := (x1 - x0) * 4
	for y := y0; y < y1; y++ {
		d := (y*m.width + x0) * 4
		s := ((y-offY)*src.width + (x0 - offX)) * 4
		copy(m.pix[d:d+n], src.pix[s:s+n])
	}
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	c := *m
	c.pix = append([]byte(nil), m.pix...)
	return &c
}

// ColorModel implements image.Image.
func (m *Image) ColorModel() color.Model { return color.NRGBAModel }

// Bounds implements image.Image.
func (m *Image) Bounds() image.Rectangle { return image.Rect(0, 0, m.width, m.height) }

// At implements image.Image.
func (m *Image) At(x, y int) color.Color { return m.Pixel(x, y).NRGBA() }

// Set implements draw.Image.
func (m *Image) Set(x, y int, c color.Color) { m.SetPixel(x, y, FromColor(c)) }

// FromImage converts any decoded image into a raster buffer.
func FromImage(img image.Image, mode Interpolation) (*Image, error) {
	b := img.Bounds()
	if b.Dx() < 1 || b.Dy() < 1 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidArgument, b.Dx(), b.Dy())
	}
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Rect, img, b.Min, draw.Src)
	}
	m, err := New(b.Dx(), b.Dy(), nil, mode)
	if err != nil {
		return nil, err
	}
	rowLen := m.width * 4
	for y := 0; y < m.height; y++ {
		src := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+rowLen]
		dst := m.pix[y*rowLen : (y+1)*rowLen]
		for i := 0; i < rowLen; i += 4 {
			dst[i+0] = src[i+2]
			dst[i+1] = src[i+1]
			dst[i+2] = src[i+0]
			dst[i+3] = src[i+3]
		}
	}
	return m, nil
}

// ToNRGBA copies the buffer into a standard library image.
func (m *Image) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, m.width, m.height))
	for i := 0; i < len(m.pix); i += 4 {
		out.Pix[i+0] = m.pix[i+2]
		out.Pix[i+1] = m.pix[i+1]
		out.Pix[i+2] = m.pix[i+0]
		out.Pix[i+3] = m.pix[i+3]
	}
	return out
}

// ToPNG serializes the image as an uncompressed RGBA PNG.
func (m *Image) ToPNG() []byte {
	return pngstore.Encode(m)
}

// WritePNG writes the uncompressed RGBA PNG to w.
func (m *Image) WritePNG(w io.Writer) error {
	return pngstore.Write(w, m)
}
