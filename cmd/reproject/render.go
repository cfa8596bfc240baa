package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pspoerri/mapreproject/internal/encode"
	"github.com/pspoerri/mapreproject/internal/mapservice"
)

var (
	renderSrc     sourceFlags
	renderEPSG    int
	renderBBox    string
	renderTileArg string
	renderSize    string
	renderFormat  string
	renderQuality int
	renderOut     string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render one image in the target coordinate system",
	Long: `Renders a bounding box (--bbox, in target coordinates) or a Web Mercator
tile (--tile z/x/y) from the source and writes the encoded image.

The output format follows --format, or the extension of --out.`,
	Example: `  reproject render --file swiss.png --src-epsg 2056 --tile 12/2138/1438 -o tile.png
  reproject render --url 'https://wms.example/?BBOX={bbox}&WIDTH={width}&HEIGHT={height}' \
      --src-epsg 2056 --epsg 4326 --bbox 7.4,46.9,7.5,47 --size 512x512 -o bern.webp`,
	Args: cobra.NoArgs,
	RunE: runRender,
}

func init() {
	renderSrc.register(renderCmd)
	fl := renderCmd.Flags()
	fl.IntVar(&renderEPSG, "epsg", 3857, "EPSG code of the target")
	fl.StringVar(&renderBBox, "bbox", "", "Target bounding box minx,miny,maxx,maxy")
	fl.StringVar(&renderTileArg, "tile", "", "Target Web Mercator tile z/x/y (implies --epsg 3857)")
	fl.StringVar(&renderSize, "size", "256x256", "Output size WIDTHxHEIGHT")
	fl.StringVar(&renderFormat, "format", "", "Output encoding: png, png-deflate, jpeg, webp (default: from --out)")
	fl.IntVar(&renderQuality, "quality", 85, "JPEG/WebP quality 1-100")
	fl.StringVarP(&renderOut, "out", "o", "", "Output file")
	_ = renderCmd.MarkFlagRequired("out")
	renderCmd.MarkFlagsMutuallyExclusive("bbox", "tile")
	renderCmd.MarkFlagsOneRequired("bbox", "tile")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	size, err := parseSize(renderSize)
	if err != nil {
		return err
	}

	var box mapservice.BoundingBox
	if renderTileArg != "" {
		t, err := parseTile(renderTileArg)
		if err != nil {
			return err
		}
		if box, err = tileBounds(t); err != nil {
			return fmt.Errorf("tile %s: %w", renderTileArg, err)
		}
		renderEPSG = 3857
	} else if box, err = parseBBox(renderBBox); err != nil {
		return err
	}

	enc, err := outputEncoder(renderFormat, renderOut, renderQuality)
	if err != nil {
		return err
	}

	svc, closeSvc, err := renderSrc.service(cmd, renderEPSG)
	if err != nil {
		return err
	}
	defer closeSvc()

	start := time.Now()
	img, err := svc.Render(cmd.Context(), mapservice.RectangleFromBox(box, mapservice.MinXMaxY), size)
	if err != nil {
		return fmt.Errorf("rendering %v: %w", box, err)
	}
	if img == nil {
		return fmt.Errorf("no image data for %v (EPSG:%d)", box, renderEPSG)
	}

	data, err := enc.Encode(img)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", enc.Format(), err)
	}
	if err := os.WriteFile(renderOut, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", renderOut, err)
	}
	if verbose {
		log.Printf("Wrote %s (%s, %s, %d bytes) in %s", renderOut, size, enc.Format(), len(data), formatDuration(time.Since(start)))
	}
	return nil
}

// outputEncoder resolves the encoder from an explicit format or the output
// file's extension.
func outputEncoder(format, out string, quality int) (encode.Encoder, error) {
	if format != "" {
		return encode.NewEncoder(format, quality)
	}
	ext := filepath.Ext(out)
	if ext == "" {
		return nil, fmt.Errorf("cannot infer output format from %q; use --format", out)
	}
	return encode.ForExtension(ext, quality)
}
