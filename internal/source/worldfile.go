package source

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pspoerri/mapreproject/internal/mapservice"
)

// WorldFile holds the six parameters of an ESRI world file (.tfw, .pgw,
// .jgw, .wld).
//
// Line 1: pixel width (x-component of pixel size)
// Line 2: rotation about y-axis (typically 0)
// Line 3: rotation about x-axis (typically 0)
// Line 4: pixel height (y-component, typically negative for north-up)
// Line 5: x-coordinate of the center of the upper-left pixel
// Line 6: y-coordinate of the center of the upper-left pixel
type WorldFile struct {
	PixelSizeX float64
	RotationY  float64
	RotationX  float64
	PixelSizeY float64
	OriginX    float64
	OriginY    float64
}

// ParseWorldFile parses world file contents. Rotated world files are
// rejected.
func ParseWorldFile(data []byte) (WorldFile, error) {
	lines := strings.Fields(string(data))
	if len(lines) < 6 {
		return WorldFile{}, fmt.Errorf("world file: expected 6 values, got %d", len(lines))
	}

	var vals [6]float64
	for i := range vals {
		v, err := strconv.ParseFloat(lines[i], 64)
		if err != nil {
			return WorldFile{}, fmt.Errorf("world file line %d: %w", i+1, err)
		}
		vals[i] = v
	}

	wf := WorldFile{
		PixelSizeX: vals[0],
		RotationY:  vals[1],
		RotationX:  vals[2],
		PixelSizeY: vals[3],
		OriginX:    vals[4],
		OriginY:    vals[5],
	}
	if wf.RotationX != 0 || wf.RotationY != 0 {
		return WorldFile{}, fmt.Errorf("world file: rotated world files are not supported (rotation: %f, %f)",
			wf.RotationX, wf.RotationY)
	}
	if wf.PixelSizeX == 0 || wf.PixelSizeY == 0 {
		return WorldFile{}, fmt.Errorf("world file: zero pixel size")
	}
	return wf, nil
}

// ReadWorldFile reads and parses the world file at path.
func ReadWorldFile(path string) (WorldFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WorldFile{}, fmt.Errorf("reading world file %s: %w", path, err)
	}
	wf, err := ParseWorldFile(data)
	if err != nil {
		return WorldFile{}, fmt.Errorf("%s: %w", path, err)
	}
	return wf, nil
}

// FindWorldFile looks for a world file next to imagePath and returns its
// path, or "" if there is none. For "map.png" it tries map.pgw, map.pngw,
// map.wld and their upper-case forms.
func FindWorldFile(imagePath string) string {
	ext := filepath.Ext(imagePath)
	base := imagePath[:len(imagePath)-len(ext)]

	var candidates []string
	if e := strings.TrimPrefix(ext, "."); len(e) >= 2 {
		candidates = append(candidates, "."+e[:1]+e[len(e)-1:]+"w", "."+e+"w")
	}
	candidates = append(candidates, ".wld")
	for _, c := range candidates {
		for _, p := range []string{base + strings.ToLower(c), base + strings.ToUpper(c)} {
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}

// Bounds returns the outer edges of a width x height image. The world file
// origin is the center of the upper-left pixel, so the box extends half a
// pixel beyond it.
func (wf WorldFile) Bounds(width, height int) mapservice.BoundingBox {
	x0 := wf.OriginX - wf.PixelSizeX/2
	y0 := wf.OriginY - wf.PixelSizeY/2
	return mapservice.NewBoundingBox(x0, y0, x0+float64(width)*wf.PixelSizeX, y0+float64(height)*wf.PixelSizeY)
}

// Corner returns which corner of the bounds the first pixel sits on.
func (wf WorldFile) Corner() mapservice.Corner {
	if wf.PixelSizeY < 0 {
		return mapservice.MinXMaxY
	}
	return mapservice.MinXMinY
}

// Resolution returns the absolute pixel size along each axis.
func (wf WorldFile) Resolution() (float64, float64) {
	return math.Abs(wf.PixelSizeX), math.Abs(wf.PixelSizeY)
}
