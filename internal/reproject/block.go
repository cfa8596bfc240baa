package reproject

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Block is a rectangle of target pixels, inclusive on all sides:
// it covers columns X0..X1 and rows Y0..Y1.
type Block struct {
	X0, Y0, X1, Y1 int
}

func (b Block) Width() int  { return b.X1 - b.X0 + 1 }
func (b Block) Height() int { return b.Y1 - b.Y0 + 1 }

// Corners returns the centers of the top-left, top-right, bottom-right and
// bottom-left pixels.
func (b Block) Corners() [4]orb.Point {
	x0, y0, x1, y1 := float64(b.X0), float64(b.Y0), float64(b.X1), float64(b.Y1)
	return [4]orb.Point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

func (b Block) String() string {
	return fmt.Sprintf("[%d,%d]-[%d,%d]", b.X0, b.Y0, b.X1, b.Y1)
}

// GetBlocks partitions a width x height image into about blockSize-sized
// blocks. Every pixel belongs to exactly one block. Blocks are returned row
// by row.
func GetBlocks(width, height, blockSize int) []Block {
	if width < 1 || height < 1 {
		return nil
	}
	if blockSize < 1 {
		blockSize = DefaultBlockSize
	}
	xs := splitAxis(width, blockSize)
	ys := splitAxis(height, blockSize)

	blocks := make([]Block, 0, (len(xs)-1)*(len(ys)-1))
	for j := 0; j+1 < len(ys); j++ {
		for i := 0; i+1 < len(xs); i++ {
			blocks = append(blocks, Block{X0: xs[i], Y0: ys[j], X1: xs[i+1] - 1, Y1: ys[j+1] - 1})
		}
	}
	return blocks
}

// splitAxis returns the start offset of every segment followed by n.
// The segment count is round(n/size), at least one; leftover pixels go one
// each to the leading segments.
func splitAxis(n, size int) []int {
	k := int(math.Round(float64(n) / float64(size)))
	k = min(max(k, 1), n)
	base, rem := n/k, n%k

	starts := make([]int, k+1)
	for i := 0; i < k; i++ {
		w := base
		if i < rem {
			w++
		}
		starts[i+1] = starts[i] + w
	}
	return starts
}
