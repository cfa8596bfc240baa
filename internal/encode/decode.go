package encode

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"

	"github.com/pspoerri/mapreproject/internal/raster"
)

// ErrEmpty is returned when asked to decode zero bytes.
var ErrEmpty = errors.New("encode: empty image stream")

// Decode decodes an image stream. WebP is recognised by its RIFF header;
// everything else (PNG, JPEG, GIF, BMP, TIFF) goes through imaging.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if IsWebP(data) {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding webp: %w", err)
		}
		return img, nil
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// IsWebP reports whether data starts with a RIFF WEBP header.
func IsWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

// RasterDecoder turns an image stream into a raster buffer.
type RasterDecoder interface {
	DecodeRaster(data []byte, mode raster.Interpolation) (*raster.Image, error)
}

// RasterDecoderFunc adapts a function to RasterDecoder.
type RasterDecoderFunc func(data []byte, mode raster.Interpolation) (*raster.Image, error)

func (f RasterDecoderFunc) DecodeRaster(data []byte, mode raster.Interpolation) (*raster.Image, error) {
	return f(data, mode)
}

// DecodeRaster decodes data into a raster buffer read with the given
// interpolation mode.
func DecodeRaster(data []byte, mode raster.Interpolation) (*raster.Image, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return raster.FromImage(img, mode)
}

// DefaultDecoder decodes without caching.
var DefaultDecoder RasterDecoder = RasterDecoderFunc(DecodeRaster)
