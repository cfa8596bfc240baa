package mapservice

import (
	"context"
	"fmt"
)

// Size is an image size in pixels.
type Size struct {
	Width, Height int
}

// Pixels is Width*Height.
func (s Size) Pixels() int { return s.Width * s.Height }

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool { return s.Width > 0 && s.Height > 0 }

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// ImageSource delivers an encoded raster image (PNG, JPEG, WebP, BMP, ...)
// covering bbox at the requested pixel size. A nil slice with a nil error
// means the source has no data for the region; it is not a failure.
type ImageSource interface {
	GetImage(ctx context.Context, bbox BoundingBox, size Size) ([]byte, error)
}

// ImageSourceFunc adapts a function to ImageSource.
type ImageSourceFunc func(ctx context.Context, bbox BoundingBox, size Size) ([]byte, error)

func (f ImageSourceFunc) GetImage(ctx context.Context, bbox BoundingBox, size Size) ([]byte, error) {
	return f(ctx, bbox, size)
}
