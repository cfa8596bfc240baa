package reproject

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/karlseguin/ccache/v3"

	"github.com/pspoerri/mapreproject/internal/coord"
	"github.com/pspoerri/mapreproject/internal/encode"
	"github.com/pspoerri/mapreproject/internal/mapservice"
	"github.com/pspoerri/mapreproject/internal/raster"
)

// transparentTTL is how long a cached transparent PNG stays valid. The
// content never changes; the TTL only lets unused sizes age out.
const transparentTTL = time.Hour

// Service renders images in a target CRS from an inner image source that
// serves a different CRS. It implements mapservice.ImageSource, so services
// can be stacked.
type Service struct {
	inner     mapservice.ImageSource
	transform coord.Transformer
	opts      ServiceOptions
	rep       *Reprojector
	decoder   encode.RasterDecoder

	transparent *ccache.Cache[[]byte]
}

var _ mapservice.ImageSource = (*Service)(nil)

// NewService creates a service. transform maps target coordinates to
// source coordinates. A nil decoder uses encode.DefaultDecoder.
func NewService(inner mapservice.ImageSource, transform coord.Transformer, opts Options, sopts ServiceOptions, decoder encode.RasterDecoder) (*Service, error) {
	if inner == nil || transform == nil {
		return nil, fmt.Errorf("%w: nil image source or transform", ErrInvalidOptions)
	}
	rep, err := NewReprojector(opts)
	if err != nil {
		return nil, err
	}
	sopts, err = sopts.normalize()
	if err != nil {
		return nil, err
	}
	if decoder == nil {
		decoder = encode.DefaultDecoder
	}
	return &Service{
		inner:       inner,
		transform:   transform,
		opts:        sopts,
		rep:         rep,
		decoder:     decoder,
		transparent: ccache.New(ccache.Configure[[]byte]().MaxSize(TransparentCacheSize).ItemsToPrune(1)),
	}, nil
}

// Close releases the service's cache worker. The inner source is not closed.
func (s *Service) Close() {
	s.transparent.Stop()
}

// GetImage renders the box, oriented by ServiceOptions.TargetCorner, as PNG.
// It returns nil and no error when there is no data for the box.
func (s *Service) GetImage(ctx context.Context, bbox mapservice.BoundingBox, size mapservice.Size) ([]byte, error) {
	return s.RenderPNG(ctx, mapservice.RectangleFromBox(bbox, s.opts.TargetCorner), size)
}

// RenderPNG renders rect at size. When no reprojection is necessary the
// inner source's bytes are returned unmodified, in whatever format it
// produced; otherwise the result is a stored PNG.
func (s *Service) RenderPNG(ctx context.Context, rect mapservice.MapRectangle, size mapservice.Size) ([]byte, error) {
	r, err := s.render(ctx, rect, size, false)
	if err != nil {
		return nil, err
	}
	switch {
	case r.data != nil:
		return r.data, nil
	case r.img != nil:
		data := r.img.ToPNG()
		raster.Put(r.img)
		return data, nil
	case r.transparent:
		return s.transparentPNG(size)
	default:
		return nil, nil
	}
}

// Render renders rect at size into a raster buffer. It returns nil and no
// error when there is no data for rect.
func (s *Service) Render(ctx context.Context, rect mapservice.MapRectangle, size mapservice.Size) (*raster.Image, error) {
	r, err := s.render(ctx, rect, size, false)
	if err != nil {
		return nil, err
	}
	return s.toRaster(r, size)
}

// Plan describes how a request would be served.
type Plan struct {
	// Rectangular is true when the target maps onto an axis-parallel
	// source rectangle of the same aspect ratio and no resampling is needed.
	Rectangular bool
	// Outside is true when the request lies entirely outside the limits.
	Outside bool
	// Partial is true when the limits cover only part of the request.
	Partial bool
	// Source is the rectangle requested from the inner source, oriented
	// by SourceCorner.
	Source mapservice.MapRectangle
	// SourceSize is the pixel size requested from the inner source.
	SourceSize mapservice.Size
}

// Plan determines the source bounds and size for a request without
// fetching anything. ok is false when the transform is undefined over the
// whole rectangle.
func (s *Service) Plan(rect mapservice.MapRectangle, size mapservice.Size) (p Plan, ok bool, err error) {
	if !size.Valid() {
		return Plan{}, false, fmt.Errorf("%w: size %v", raster.ErrInvalidArgument, size)
	}
	if !rect.Box().IsFinite() || rect.Box().IsDegenerate() {
		return Plan{}, false, fmt.Errorf("%w: rectangle %v", raster.ErrInvalidArgument, rect)
	}

	edges, terr := SourceEdges(s.transform, rect, s.opts.SupportingPoints)
	if terr != nil {
		Logger().Debug("boundary samples failed to transform", "rect", rect.String(), "error", terr)
	}

	if mapped, rectangular := IsRectangular(edges); rectangular &&
		sameAspect(mapped, rect) &&
		sameOrientation(mapped, mapservice.RectangleFromBox(mapped.Box(), s.opts.SourceCorner)) {
		p = Plan{Rectangular: true, Source: mapped, SourceSize: size}
		s.applyLimits(&p, mapped.Box())
		if !p.Partial {
			return p, true, nil
		}
	}

	box, found := mapservice.BoundOf(edges.All())
	if !found || box.IsDegenerate() {
		return Plan{}, false, nil
	}
	src := mapservice.RectangleFromBox(box, s.opts.SourceCorner).Resize(s.opts.AreaFactor)
	p = Plan{Source: src}
	s.applyLimits(&p, src.Box())
	p.SourceSize = SourceSize(src.Box(), size, s.opts.SizeFactor)
	return p, true, nil
}

func (s *Service) applyLimits(p *Plan, box mapservice.BoundingBox) {
	if s.opts.Limits == nil {
		return
	}
	if _, ok := box.Intersect(*s.opts.Limits); !ok {
		p.Outside = true
		return
	}
	p.Partial = !s.opts.Limits.Contains(box)
}

// rendering is the outcome of a request: unmodified source bytes, a
// resampled image, a transparent image, or nothing.
type rendering struct {
	data        []byte
	img         *raster.Image
	transparent bool
}

func (s *Service) render(ctx context.Context, rect mapservice.MapRectangle, size mapservice.Size, clipped bool) (rendering, error) {
	p, ok, err := s.Plan(rect, size)
	if err != nil {
		return rendering{}, err
	}
	if !ok {
		Logger().Debug("no finite source bounds", "rect", rect.String())
		return rendering{}, nil
	}
	if p.Outside {
		return rendering{transparent: true}, nil
	}
	if p.Partial && !clipped {
		return s.renderPartial(ctx, rect, size)
	}

	srcBox := p.Source.Box()
	if p.Partial {
		srcBox, _ = srcBox.Intersect(*s.opts.Limits)
		p.Rectangular = false
		p.Source = mapservice.RectangleFromBox(srcBox, s.opts.SourceCorner)
		p.SourceSize = SourceSize(srcBox, size, s.opts.SizeFactor)
	}

	data, err := s.inner.GetImage(ctx, srcBox, p.SourceSize)
	if err != nil {
		if ctx.Err() != nil {
			return rendering{}, ctx.Err()
		}
		// A failing source means no image for this region.
		Logger().Warn("source fetch failed", "bbox", srcBox.String(), "size", p.SourceSize.String(), "error", err)
		return rendering{}, nil
	}
	if len(data) == 0 {
		return rendering{}, nil
	}
	if p.Rectangular {
		Logger().Debug("rectangular transform, passing source through", "source", srcBox.String())
		return rendering{data: data}, nil
	}

	src, err := s.decoder.DecodeRaster(data, s.rep.opts.Interpolation)
	if err != nil {
		Logger().Warn("source decode failed", "bbox", srcBox.String(), "error", err)
		return rendering{}, fmt.Errorf("decoding source image: %w", err)
	}
	mapper := pixelMapper(s.transform, rect, size, p.Source, src.Width(), src.Height())
	dst, stats, err := s.rep.Reproject(src, size.Width, size.Height, mapper)
	if err != nil {
		return rendering{}, err
	}
	if s.opts.Debug {
		DrawBlocks(dst, GetBlocks(size.Width, size.Height, s.rep.opts.BlockSize))
	}
	Logger().Debug("resampled",
		"source", srcBox.String(), "source_size", p.SourceSize.String(),
		"failed_blocks", stats.FailedBlocks)
	return rendering{img: dst}, nil
}

// renderPartial renders the part of rect the limits cover and places it on
// an otherwise transparent canvas.
func (s *Service) renderPartial(ctx context.Context, rect mapservice.MapRectangle, size mapservice.Size) (rendering, error) {
	covered, ok := coverage(s.transform, rect, size, *s.opts.Limits, s.opts.SupportingPoints)
	if !ok {
		return rendering{transparent: true}, nil
	}
	sub := subRectangle(rect, size, covered)
	subSize := mapservice.Size{Width: covered.Dx(), Height: covered.Dy()}
	if subSize == size {
		return s.render(ctx, rect, size, true)
	}

	r, err := s.render(ctx, sub, subSize, true)
	if err != nil {
		return rendering{}, err
	}
	if r.data == nil && r.img == nil {
		// Nothing came back for the covered part; the rest is outside.
		return rendering{transparent: true}, nil
	}
	part, err := s.toRaster(r, subSize)
	if err != nil {
		return rendering{}, err
	}
	canvas, err := raster.Get(size.Width, size.Height, s.rep.opts.Interpolation)
	if err != nil {
		return rendering{}, err
	}
	canvas.Draw(part, covered.Min.X, covered.Min.Y)
	// Decoded images may be shared through a decode cache.
	if r.data == nil {
		raster.Put(part)
	}
	Logger().Debug("partial coverage", "covered", covered.String(), "size", size.String())
	return rendering{img: canvas}, nil
}

func (s *Service) toRaster(r rendering, size mapservice.Size) (*raster.Image, error) {
	switch {
	case r.img != nil:
		return r.img, nil
	case r.data != nil:
		img, err := s.decoder.DecodeRaster(r.data, s.rep.opts.Interpolation)
		if err != nil {
			return nil, fmt.Errorf("decoding source image: %w", err)
		}
		return img, nil
	case r.transparent:
		return raster.Get(size.Width, size.Height, s.rep.opts.Interpolation)
	default:
		return nil, nil
	}
}

// transparentPNG returns a fully transparent PNG of the given size. The
// encoding is cached per size; every caller gets its own copy.
func (s *Service) transparentPNG(size mapservice.Size) ([]byte, error) {
	item, err := s.transparent.Fetch(size.String(), transparentTTL, func() ([]byte, error) {
		img, err := raster.New(size.Width, size.Height, nil, raster.Nearest)
		if err != nil {
			return nil, err
		}
		return img.ToPNG(), nil
	})
	if err != nil {
		return nil, err
	}
	return bytes.Clone(item.Value()), nil
}
