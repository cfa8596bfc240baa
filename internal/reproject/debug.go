package reproject

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/pspoerri/mapreproject/internal/raster"
)

var (
	debugOutline = raster.NewColor(255, 0, 255, 255)
	debugLabel   = color.NRGBA{R: 255, G: 0, B: 255, A: 255}
)

// DrawBlocks outlines every block on img and labels blocks that are large
// enough to hold their index.
func DrawBlocks(img *raster.Image, blocks []Block) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(debugLabel),
		Face: face,
	}
	for i, b := range blocks {
		for x := b.X0; x <= b.X1; x++ {
			img.SetPixel(x, b.Y0, debugOutline)
			img.SetPixel(x, b.Y1, debugOutline)
		}
		for y := b.Y0; y <= b.Y1; y++ {
			img.SetPixel(b.X0, y, debugOutline)
			img.SetPixel(b.X1, y, debugOutline)
		}

		label := fmt.Sprint(i)
		if d.MeasureString(label).Ceil()+4 > b.Width() || face.Height+4 > b.Height() {
			continue
		}
		d.Dot = fixed.P(b.X0+2, b.Y0+2+face.Ascent)
		d.DrawString(label)
	}
}
