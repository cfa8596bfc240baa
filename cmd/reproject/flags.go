package main

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/spf13/cobra"

	"github.com/pspoerri/mapreproject/internal/coord"
	"github.com/pspoerri/mapreproject/internal/encode"
	"github.com/pspoerri/mapreproject/internal/mapservice"
	"github.com/pspoerri/mapreproject/internal/raster"
	"github.com/pspoerri/mapreproject/internal/reproject"
	"github.com/pspoerri/mapreproject/internal/source"
)

// sourceFlags are the flags shared by commands that render through a
// reprojection service.
type sourceFlags struct {
	file        string
	url         string
	srcEPSG     int
	timeout     time.Duration
	interp      string
	blockSize   int
	parallelism int
	points      int
	sizeFactor  float64
	areaFactor  float64
	decodeCache int
	debug       bool

	// static is set by service when the source is a --file.
	static *source.Static
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.file, "file", "", "Source image with a world file sidecar (.pgw, .jgw, .tfw, .wld)")
	fl.StringVar(&f.url, "url", "", "Source map server URL template with {bbox} or {minx} {miny} {maxx} {maxy}, {width}, {height}")
	fl.IntVar(&f.srcEPSG, "src-epsg", 2056, "EPSG code of the source")
	fl.DurationVar(&f.timeout, "timeout", 30*time.Second, "Timeout for map server requests")
	fl.StringVar(&f.interp, "interpolation", "bicubic", "Interpolation method: nearest, bilinear, bicubic")
	fl.IntVar(&f.blockSize, "block-size", reproject.DefaultBlockSize, "Block size in pixels for the coarse transform grid")
	fl.IntVar(&f.parallelism, "parallelism", reproject.DefaultOptions().DegreeOfParallelism, "Number of blocks resampled in parallel")
	fl.IntVar(&f.points, "supporting-points", reproject.DefaultSupportingPoints, "Samples per edge when approximating source bounds")
	fl.Float64Var(&f.sizeFactor, "size-factor", 0, "Source size: negative multiplies the target pixel count, 0..1 picks between the smallest and largest candidate (default: target pixel count)")
	fl.Float64Var(&f.areaFactor, "area-factor", reproject.DefaultAreaFactor, "Enlargement of the requested source area")
	fl.IntVar(&f.decodeCache, "decode-cache", 0, "Number of decoded source images to cache (0 = off)")
	fl.BoolVar(&f.debug, "debug", false, "Draw block outlines and indices onto reprojected images")
}

// service builds the reprojection service rendering targetEPSG from the
// configured source. The returned func releases its caches.
func (f *sourceFlags) service(cmd *cobra.Command, targetEPSG int) (*reproject.Service, func(), error) {
	mode, err := raster.ParseInterpolation(f.interp)
	if err != nil {
		return nil, nil, err
	}
	opts := reproject.Options{
		Interpolation:       mode,
		BlockSize:           f.blockSize,
		DegreeOfParallelism: f.parallelism,
	}

	sopts := reproject.DefaultServiceOptions()
	sopts.SupportingPoints = f.points
	sopts.AreaFactor = f.areaFactor
	sopts.Debug = f.debug
	if cmd.Flags().Changed("size-factor") {
		sopts.SizeFactor = reproject.SizeFactor(f.sizeFactor)
	}

	var inner mapservice.ImageSource
	switch {
	case f.file != "" && f.url != "":
		return nil, nil, fmt.Errorf("--file and --url are mutually exclusive")
	case f.file != "":
		st, err := source.OpenFile(f.file)
		if err != nil {
			return nil, nil, err
		}
		limits := st.Bounds()
		sopts.Limits = &limits
		f.static = st
		sopts.SourceCorner = st.Corner()
		inner = st
		if verbose {
			sz := st.Size()
			log.Printf("Source %s: %dx%d px, bounds %v (EPSG:%d)", f.file, sz.Width, sz.Height, limits, f.srcEPSG)
		}
	case f.url != "":
		h, err := source.NewHTTP(source.HTTPConfig{URLTemplate: f.url, Timeout: f.timeout})
		if err != nil {
			return nil, nil, err
		}
		inner = h
	default:
		return nil, nil, fmt.Errorf("one of --file or --url is required")
	}

	t, err := newTransformer(targetEPSG, f.srcEPSG)
	if err != nil {
		return nil, nil, err
	}

	var (
		dec   encode.RasterDecoder
		cache *encode.DecodeCache
	)
	if f.decodeCache > 0 {
		cache = encode.NewDecodeCache(f.decodeCache, 10*time.Minute)
		dec = cache
	}
	svc, err := reproject.NewService(inner, t, opts, sopts, dec)
	if err != nil {
		return nil, nil, err
	}
	return svc, func() {
		svc.Close()
		if cache != nil {
			cache.Close()
		}
	}, nil
}

// newTransformer returns the transform from EPSG code from to EPSG code to,
// preferring the native projections.
func newTransformer(from, to int) (coord.Transformer, error) {
	if from == to {
		return coord.Affine{ScaleX: 1, ScaleY: 1}, nil
	}
	p, q := coord.ForEPSG(from), coord.ForEPSG(to)
	if p != nil && q != nil {
		return coord.Between(p, q), nil
	}
	return coord.NewEPSGTransformer(from, to)
}

// parseSize parses "WIDTHxHEIGHT" or a single number for a square.
func parseSize(s string) (mapservice.Size, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		hs = ws
	}
	w, err1 := strconv.Atoi(strings.TrimSpace(ws))
	h, err2 := strconv.Atoi(strings.TrimSpace(hs))
	size := mapservice.Size{Width: w, Height: h}
	if err1 != nil || err2 != nil || !size.Valid() {
		return mapservice.Size{}, fmt.Errorf("invalid size %q (want WIDTHxHEIGHT)", s)
	}
	return size, nil
}

// parseBBox parses "minx,miny,maxx,maxy".
func parseBBox(s string) (mapservice.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return mapservice.BoundingBox{}, fmt.Errorf("invalid bbox %q (want minx,miny,maxx,maxy)", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return mapservice.BoundingBox{}, fmt.Errorf("invalid bbox %q: %w", s, err)
		}
		v[i] = f
	}
	b := mapservice.NewBoundingBox(v[0], v[1], v[2], v[3])
	if !b.IsFinite() || b.IsDegenerate() {
		return mapservice.BoundingBox{}, fmt.Errorf("invalid bbox %q: empty area", s)
	}
	return b, nil
}

// parseTile parses "z/x/y".
func parseTile(s string) (maptile.Tile, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return maptile.Tile{}, fmt.Errorf("invalid tile %q (want z/x/y)", s)
	}
	var v [3]uint64
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return maptile.Tile{}, fmt.Errorf("invalid tile %q: %w", s, err)
		}
		v[i] = n
	}
	t := maptile.New(uint32(v[1]), uint32(v[2]), maptile.Zoom(v[0]))
	if v[0] > 30 || !t.Valid() {
		return maptile.Tile{}, fmt.Errorf("invalid tile %q: out of range", s)
	}
	return t, nil
}

// tileBounds returns the Web Mercator bounds of a tile.
func tileBounds(t maptile.Tile) (mapservice.BoundingBox, error) {
	b := t.Bound()
	var merc coord.WebMercator
	lo, err := merc.FromWGS84(b.Min)
	if err != nil {
		return mapservice.BoundingBox{}, err
	}
	hi, err := merc.FromWGS84(b.Max)
	if err != nil {
		return mapservice.BoundingBox{}, err
	}
	return mapservice.FromBound(orb.Bound{Min: lo, Max: hi}), nil
}
