// Package encode converts rendered images to and from the byte streams
// exchanged with image sources and written by the command line tool.
package encode

import (
	"fmt"
	"image"
	"strings"
)

// Encoder encodes an image into a byte stream.
type Encoder interface {
	// Encode encodes an image to bytes in the encoder's format.
	Encode(img image.Image) ([]byte, error)

	// Format returns the format name (e.g. "jpeg", "png", "webp").
	Format() string

	// ContentType returns the MIME type of the encoded stream.
	ContentType() string

	// FileExtension returns the appropriate file extension.
	FileExtension() string
}

// NewEncoder creates an encoder for the given format and quality.
// "png" writes uncompressed (stored) PNG; "png-deflate" compresses.
func NewEncoder(format string, quality int) (Encoder, error) {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return &JPEGEncoder{Quality: quality}, nil
	case "png":
		return &PNGEncoder{}, nil
	case "png-deflate":
		return &PNGEncoder{Deflate: true}, nil
	case "webp":
		return newWebPEncoder(quality)
	default:
		return nil, fmt.Errorf("unsupported image format: %q (supported: png, png-deflate, jpeg, webp)", format)
	}
}

// ForExtension picks an encoder from a file name extension such as ".jpg".
func ForExtension(ext string, quality int) (Encoder, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return NewEncoder("jpeg", quality)
	case "webp":
		return NewEncoder("webp", quality)
	case "png", "":
		return NewEncoder("png", quality)
	default:
		return nil, fmt.Errorf("no encoder for extension %q", ext)
	}
}
