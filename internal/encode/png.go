package encode

import (
	"bytes"
	"image"
	"image/png"

	"github.com/pspoerri/mapreproject/internal/raster"
)

// PNGEncoder encodes images as PNG. By default the pixel data is written in
// stored (uncompressed) DEFLATE blocks; Deflate switches to the standard
// library's compressing encoder.
type PNGEncoder struct {
	Deflate bool
}

func (e *PNGEncoder) Encode(img image.Image) ([]byte, error) {
	if e.Deflate {
		var buf bytes.Buffer
		enc := &png.Encoder{CompressionLevel: png.BestSpeed}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	if r, ok := img.(*raster.Image); ok {
		return r.ToPNG(), nil
	}
	r, err := raster.FromImage(img, raster.Nearest)
	if err != nil {
		return nil, err
	}
	return r.ToPNG(), nil
}

func (e *PNGEncoder) Format() string {
	if e.Deflate {
		return "png-deflate"
	}
	return "png"
}

func (e *PNGEncoder) ContentType() string   { return "image/png" }
func (e *PNGEncoder) FileExtension() string { return ".png" }
