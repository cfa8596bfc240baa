package reproject

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/pspoerri/mapreproject/internal/mapservice"
	"github.com/pspoerri/mapreproject/internal/raster"
)

// ErrInvalidOptions is returned when an option struct holds values that
// cannot be normalised into a usable configuration.
var ErrInvalidOptions = errors.New("reproject: invalid options")

// DefaultBlockSize is the edge length, in target pixels, of the blocks whose
// corners are transformed exactly.
const DefaultBlockSize = 32

// Options configures a Reprojector.
type Options struct {
	// Interpolation is used for every read from the source image.
	Interpolation raster.Interpolation
	// BlockSize is the nominal block edge in target pixels (default 32).
	BlockSize int
	// DegreeOfParallelism bounds the number of blocks processed at once
	// (default: number of CPUs minus two, at least one).
	DegreeOfParallelism int
}

// DefaultOptions returns bicubic resampling with default block size and
// parallelism.
func DefaultOptions() Options {
	return Options{
		Interpolation:       raster.Bicubic,
		BlockSize:           DefaultBlockSize,
		DegreeOfParallelism: defaultParallelism(),
	}
}

func defaultParallelism() int {
	return max(1, runtime.NumCPU()-2)
}

// normalize fills zero values with defaults and rejects negative ones.
func (o Options) normalize() (Options, error) {
	if o.BlockSize < 0 {
		return o, fmt.Errorf("%w: block size %d", ErrInvalidOptions, o.BlockSize)
	}
	if o.DegreeOfParallelism < 0 {
		return o, fmt.Errorf("%w: degree of parallelism %d", ErrInvalidOptions, o.DegreeOfParallelism)
	}
	if o.Interpolation < raster.Nearest || o.Interpolation > raster.Bicubic {
		return o, fmt.Errorf("%w: interpolation %v", ErrInvalidOptions, o.Interpolation)
	}
	if o.BlockSize == 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.DegreeOfParallelism == 0 {
		o.DegreeOfParallelism = defaultParallelism()
	}
	return o, nil
}

// Defaults for ServiceOptions.
const (
	DefaultSupportingPoints = 8
	DefaultAreaFactor       = 1.025
	// TransparentCacheSize bounds the number of distinct sizes whose
	// transparent PNG a Service keeps.
	TransparentCacheSize = 16
)

// ServiceOptions configures how a Service approximates source bounds and
// chooses the source resolution.
type ServiceOptions struct {
	// SupportingPoints is the number of samples taken along each edge of
	// the target rectangle (default 8, minimum 2).
	SupportingPoints int

	// SizeFactor selects the source resolution. nil requests as many
	// source pixels as the target has. A negative value requests |f| times
	// the target pixel count. A value in [0, 1] interpolates between the
	// smallest and the largest candidate size derived from matching the
	// target width or height.
	SizeFactor *float64

	// AreaFactor inflates the approximated source bounding box (default 1.025).
	AreaFactor float64

	// SourceCorner is the corner of the source bounding box the inner
	// source puts at the top-left pixel (default north-up).
	SourceCorner mapservice.Corner

	// TargetCorner orients the bounding boxes passed to GetImage.
	TargetCorner mapservice.Corner

	// Limits, when set, is the extent in source coordinates outside of
	// which the inner source has no data.
	Limits *mapservice.BoundingBox

	// Debug draws block outlines and labels over the resampled image.
	Debug bool
}

// DefaultServiceOptions returns the default service configuration.
func DefaultServiceOptions() ServiceOptions {
	return ServiceOptions{
		SupportingPoints: DefaultSupportingPoints,
		AreaFactor:       DefaultAreaFactor,
	}
}

// SizeFactor is a convenience for filling ServiceOptions.SizeFactor.
func SizeFactor(f float64) *float64 { return &f }

func (o ServiceOptions) normalize() (ServiceOptions, error) {
	switch {
	case o.SupportingPoints == 0:
		o.SupportingPoints = DefaultSupportingPoints
	case o.SupportingPoints < 2:
		o.SupportingPoints = 2
	}
	if o.AreaFactor == 0 {
		o.AreaFactor = DefaultAreaFactor
	}
	if !(o.AreaFactor > 0) {
		return o, fmt.Errorf("%w: area factor %g", ErrInvalidOptions, o.AreaFactor)
	}
	if o.Limits != nil && (!o.Limits.IsFinite() || o.Limits.IsDegenerate()) {
		return o, fmt.Errorf("%w: limits %v", ErrInvalidOptions, *o.Limits)
	}
	return o, nil
}
