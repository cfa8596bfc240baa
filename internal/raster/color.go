package raster

import "image/color"

// Color is a packed 32-bit pixel: alpha in the top byte, then red, green and
// blue. Stored little-endian it has the same byte order as the buffer
// (blue, green, red, alpha).
type Color uint32

// Transparent is returned for reads outside the image: white with zero alpha.
const Transparent Color = 0x00FFFFFF

// NewColor packs non-premultiplied 8-bit channels.
func NewColor(r, g, b, a uint8) Color {
	return Color(a)<<24 | Color(r)<<16 | Color(g)<<8 | Color(b)
}

// RGBA8 returns the four channels.
func (c Color) RGBA8() (r, g, b, a uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c), uint8(c >> 24)
}

// A returns the alpha channel.
func (c Color) A() uint8 { return uint8(c >> 24) }

// NRGBA converts to the standard library's non-premultiplied color.
func (c Color) NRGBA() color.NRGBA {
	r, g, b, a := c.RGBA8()
	return color.NRGBA{R: r, G: g, B: b, A: a}
}

// FromColor converts any color.Color.
func FromColor(c color.Color) Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return NewColor(n.R, n.G, n.B, n.A)
}
