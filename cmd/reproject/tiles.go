package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/spf13/cobra"

	"github.com/pspoerri/mapreproject/internal/coord"
	"github.com/pspoerri/mapreproject/internal/encode"
	"github.com/pspoerri/mapreproject/internal/mapservice"
	"github.com/pspoerri/mapreproject/internal/reproject"
)

// maxMercatorLat is the latitude at which Web Mercator tiles end.
const maxMercatorLat = 85.05112877980659

var (
	tilesSrc         sourceFlags
	tilesZoom        string
	tilesBounds      string
	tilesSize        int
	tilesFormat      string
	tilesQuality     int
	tilesConcurrency int
	tilesOut         string
)

var tilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Render a Web Mercator tile pyramid into a z/x/y directory",
	Long: `Renders every Web Mercator tile in a zoom range that overlaps the source
and writes it to <out>/<z>/<x>/<y>.<ext>. The covered area is the extent of
the --file source, or --bounds (in source coordinates) for --url sources.`,
	Example: `  reproject tiles --file swiss.png --src-epsg 2056 --zoom 8-12 -o tiles/`,
	Args:    cobra.NoArgs,
	RunE:    runTiles,
}

func init() {
	tilesSrc.register(tilesCmd)
	fl := tilesCmd.Flags()
	fl.StringVar(&tilesZoom, "zoom", "auto", "Zoom level or range, e.g. 10 or 8-12, or auto from the --file resolution")
	fl.StringVar(&tilesBounds, "bounds", "", "Area to cover in source coordinates minx,miny,maxx,maxy (default: extent of --file)")
	fl.IntVar(&tilesSize, "tile-size", 256, "Output tile size in pixels")
	fl.StringVar(&tilesFormat, "format", "png", "Tile encoding: png, png-deflate, jpeg, webp")
	fl.IntVar(&tilesQuality, "quality", 85, "JPEG/WebP quality 1-100")
	fl.IntVar(&tilesConcurrency, "concurrency", 2, "Number of tiles rendered at once")
	fl.StringVarP(&tilesOut, "out", "o", "", "Output directory")
	_ = tilesCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(tilesCmd)
}

// tileStats holds generation statistics.
type tileStats struct {
	Tiles      int64
	EmptyTiles int64
	TotalBytes int64
}

// tileWriter stores encoded tiles.
type tileWriter interface {
	WriteTile(t maptile.Tile, data []byte) error
}

// dirWriter writes tiles as <root>/<z>/<x>/<y><ext>.
type dirWriter struct {
	root string
	ext  string
}

func (w dirWriter) path(t maptile.Tile) string {
	return filepath.Join(w.root, strconv.Itoa(int(t.Z)), strconv.Itoa(int(t.X)), strconv.Itoa(int(t.Y))+w.ext)
}

func (w dirWriter) WriteTile(t maptile.Tile, data []byte) error {
	p := w.path(t)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

func runTiles(cmd *cobra.Command, args []string) error {
	enc, err := encode.NewEncoder(tilesFormat, tilesQuality)
	if err != nil {
		return err
	}

	svc, closeSvc, err := tilesSrc.service(cmd, 3857)
	if err != nil {
		return err
	}
	defer closeSvc()

	var area mapservice.BoundingBox
	switch {
	case tilesBounds != "":
		if area, err = parseBBox(tilesBounds); err != nil {
			return err
		}
	case tilesSrc.static != nil:
		area = tilesSrc.static.Bounds()
	default:
		return fmt.Errorf("--bounds is required with --url")
	}
	lonLat, err := lonLatBounds(area, tilesSrc.srcEPSG)
	if err != nil {
		return err
	}

	var minZoom, maxZoom int
	if tilesZoom == "auto" {
		if tilesSrc.static == nil {
			return fmt.Errorf("--zoom auto needs a --file source")
		}
		full, err := lonLatBounds(tilesSrc.static.Bounds(), tilesSrc.srcEPSG)
		if err != nil {
			return err
		}
		res, err := mercatorResolution(full, tilesSrc.static.Size().Width)
		if err != nil {
			return err
		}
		minZoom, maxZoom = autoZoomRange(res, tilesSize)
	} else if minZoom, maxZoom, err = parseZoomRange(tilesZoom); err != nil {
		return err
	}
	log.Printf("Covering %v (lon/lat %v) at zoom %d-%d", area, mapservice.FromBound(lonLat), minZoom, maxZoom)

	start := time.Now()
	stats, err := generateTiles(cmd.Context(), tileConfig{
		MinZoom:     minZoom,
		MaxZoom:     maxZoom,
		TileSize:    tilesSize,
		Concurrency: tilesConcurrency,
		Encoder:     enc,
		Bounds:      lonLat,
		Progress:    verbose,
	}, svc, dirWriter{root: tilesOut, ext: enc.FileExtension()})
	if err != nil {
		return err
	}
	log.Printf("Done: %d tiles written, %d empty, %.1f MB in %s",
		stats.Tiles, stats.EmptyTiles, float64(stats.TotalBytes)/(1<<20), formatDuration(time.Since(start)))
	return nil
}

type tileConfig struct {
	MinZoom     int
	MaxZoom     int
	TileSize    int
	Concurrency int
	Encoder     encode.Encoder
	Bounds      orb.Bound
	Progress    bool
}

// generateTiles renders every tile of the zoom range that overlaps
// cfg.Bounds and hands the encoded result to w. Tiles the service has no
// data for are counted as empty and not written.
func generateTiles(ctx context.Context, cfg tileConfig, svc *reproject.Service, w tileWriter) (tileStats, error) {
	var tileCount, emptyCount, totalBytes atomic.Int64
	size := mapservice.Size{Width: cfg.TileSize, Height: cfg.TileSize}
	workers := max(1, cfg.Concurrency)

	for z := cfg.MinZoom; z <= cfg.MaxZoom; z++ {
		tiles := tilesInBounds(maptile.Zoom(z), cfg.Bounds)
		if len(tiles) == 0 {
			continue
		}

		var pb *progressBar
		if cfg.Progress {
			pb = newProgressBar(os.Stderr, fmt.Sprintf("Zoom %2d", z), int64(len(tiles)))
		}

		jobs := make(chan maptile.Tile, workers*2)
		errCh := make(chan error, 1)
		var failed atomic.Bool
		fail := func(err error) {
			failed.Store(true)
			select {
			case errCh <- err:
			default:
			}
		}

		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for t := range jobs {
					// Drain remaining jobs after a failure.
					if failed.Load() {
						continue
					}
					data, err := renderTile(ctx, svc, t, size, cfg.Encoder)
					if err != nil {
						fail(fmt.Errorf("tile %d/%d/%d: %w", t.Z, t.X, t.Y, err))
						continue
					}
					if pb != nil {
						pb.Increment(data == nil)
					}
					if data == nil {
						emptyCount.Add(1)
						continue
					}
					if err := w.WriteTile(t, data); err != nil {
						fail(fmt.Errorf("writing tile %d/%d/%d: %w", t.Z, t.X, t.Y, err))
						continue
					}
					tileCount.Add(1)
					totalBytes.Add(int64(len(data)))
				}
			}()
		}

	feed:
		for _, t := range tiles {
			select {
			case jobs <- t:
			case <-ctx.Done():
				fail(ctx.Err())
				break feed
			}
		}
		close(jobs)
		wg.Wait()
		if pb != nil {
			pb.Finish()
		}

		select {
		case err := <-errCh:
			return tileStats{}, err
		default:
		}
	}

	return tileStats{
		Tiles:      tileCount.Load(),
		EmptyTiles: emptyCount.Load(),
		TotalBytes: totalBytes.Load(),
	}, nil
}

// renderTile returns the encoded tile, or nil when there is nothing to
// draw.
func renderTile(ctx context.Context, svc *reproject.Service, t maptile.Tile, size mapservice.Size, enc encode.Encoder) ([]byte, error) {
	box, err := tileBounds(t)
	if err != nil {
		return nil, err
	}
	rect := mapservice.RectangleFromBox(box, mapservice.MinXMaxY)
	if p, ok, err := svc.Plan(rect, size); err != nil || !ok || p.Outside {
		return nil, err
	}
	img, err := svc.Render(ctx, rect, size)
	if err != nil || img == nil {
		return nil, err
	}
	return enc.Encode(img)
}

// tilesInBounds lists the tiles at zoom z overlapping a lon/lat bound,
// row by row.
func tilesInBounds(z maptile.Zoom, b orb.Bound) []maptile.Tile {
	lat := func(v float64) float64 { return math.Max(-maxMercatorLat, math.Min(maxMercatorLat, v)) }
	lon := func(v float64) float64 { return math.Max(-180, math.Min(180, v)) }
	topLeft := maptile.At(orb.Point{lon(b.Min[0]), lat(b.Max[1])}, z)
	bottomRight := maptile.At(orb.Point{lon(b.Max[0]), lat(b.Min[1])}, z)

	last := uint32(1)<<uint32(z) - 1
	x1, y1 := min(bottomRight.X, last), min(bottomRight.Y, last)
	var tiles []maptile.Tile
	for y := topLeft.Y; y <= y1; y++ {
		for x := topLeft.X; x <= x1; x++ {
			tiles = append(tiles, maptile.New(x, y, z))
		}
	}
	return tiles
}

// lonLatBounds returns the WGS84 envelope of a box in EPSG code epsg,
// sampled along its edges.
func lonLatBounds(box mapservice.BoundingBox, epsg int) (orb.Bound, error) {
	t, err := newTransformer(epsg, 4326)
	if err != nil {
		return orb.Bound{}, err
	}
	edges, _ := reproject.SourceEdges(t, mapservice.RectangleFromBox(box, mapservice.MinXMaxY), 16)
	b, ok := mapservice.BoundOf(edges.All())
	if !ok {
		return orb.Bound{}, fmt.Errorf("bounds %v cannot be expressed in lon/lat", box)
	}
	return b.Bound(), nil
}

// mercatorResolution returns the Web Mercator meters per pixel of an image
// that is widthPx pixels wide and spans b in lon/lat.
func mercatorResolution(b orb.Bound, widthPx int) (float64, error) {
	var merc coord.WebMercator
	lo, err := merc.FromWGS84(orb.Point{b.Min[0], 0})
	if err != nil {
		return 0, err
	}
	hi, err := merc.FromWGS84(orb.Point{b.Max[0], 0})
	if err != nil {
		return 0, err
	}
	if widthPx < 1 {
		return 0, fmt.Errorf("invalid source width %d", widthPx)
	}
	return (hi[0] - lo[0]) / float64(widthPx), nil
}

// autoZoomRange picks the deepest zoom whose tiles are not finer than the
// source, and the six levels above it.
func autoZoomRange(pixelSize float64, tileSize int) (minZoom, maxZoom int) {
	for z := 24; z >= 0; z-- {
		res := 2 * coord.OriginShift / math.Pow(2, float64(z)) / float64(tileSize)
		if res >= pixelSize {
			maxZoom = z
			break
		}
	}
	return max(0, maxZoom-6), maxZoom
}

// parseZoomRange parses "z" or "min-max".
func parseZoomRange(s string) (int, int, error) {
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		hi = lo
	}
	a, err1 := strconv.Atoi(strings.TrimSpace(lo))
	b, err2 := strconv.Atoi(strings.TrimSpace(hi))
	if err1 != nil || err2 != nil || a < 0 || b < a || b > 24 {
		return 0, 0, fmt.Errorf("invalid zoom range %q (want z or min-max, 0-24)", s)
	}
	return a, b, nil
}
