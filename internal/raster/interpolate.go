package raster

import "math"

// ReadPixel samples the image at fractional coordinates, where integer
// coordinates address pixel centers. Bicubic reads fall back to bilinear
// when the 4x4 neighborhood leaves the image, and bilinear falls back to
// nearest when the 2x2 neighborhood does. Reads outside the image return
// Transparent.
func (m *Image) ReadPixel(x, y float64) Color {
	// Also rejects NaN and values that would overflow int.
	if !(x > -1 && y > -1 && x < float64(m.width) && y < float64(m.height)) {
		return Transparent
	}
	if m.quality >= 2 {
		if c, ok := m.bicubicAt(x, y); ok {
			return c
		}
	}
	if m.quality >= 1 {
		if c, ok := m.bilinearAt(x, y); ok {
			return c
		}
	}
	return m.nearestAt(x, y)
}

func (m *Image) nearestAt(x, y float64) Color {
	return m.Pixel(int(math.Floor(x+0.5)), int(math.Floor(y+0.5)))
}

func (m *Image) bilinearAt(x, y float64) (Color, bool) {
	fx, fy := math.Floor(x), math.Floor(y)
	ix, iy := int(fx), int(fy)
	if ix < 0 || iy < 0 || ix > m.width-2 || iy > m.height-2 {
		return 0, false
	}
	dx, dy := x-fx, y-fy

	w00 := (1 - dx) * (1 - dy)
	w10 := dx * (1 - dy)
	w01 := (1 - dx) * dy
	w11 := dx * dy

	stride := m.width * 4
	o := iy*stride + ix*4
	p00 := m.pix[o : o+4 : o+4]
	p10 := m.pix[o+4 : o+8 : o+8]
	p01 := m.pix[o+stride : o+stride+4 : o+stride+4]
	p11 := m.pix[o+stride+4 : o+stride+8 : o+stride+8]

	var out Color
	for ch := 0; ch < 4; ch++ {
		v := w00*float64(p00[ch]) + w10*float64(p10[ch]) + w01*float64(p01[ch]) + w11*float64(p11[ch])
		out |= Color(clampByte(v)) << (8 * ch)
	}
	return out, true
}

func (m *Image) bicubicAt(x, y float64) (Color, bool) {
	const n = 4

	fx, fy := math.Floor(x), math.Floor(y)
	ix, iy := int(fx), int(fy)
	if ix < 1 || iy < 1 || ix > m.width-3 || iy > m.height-3 {
		return 0, false
	}

	var wx, wy [n]float64
	for k := 0; k < n; k++ {
		wx[k] = bicubicLUT(x - float64(ix-1+k))
		wy[k] = bicubicLUT(y - float64(iy-1+k))
	}

	stride := m.width * 4
	var sum [4]float64
	for ky := 0; ky < n; ky++ {
		row := (iy-1+ky)*stride + (ix-1)*4
		var rowSum [4]float64
		for kx := 0; kx < n; kx++ {
			p := m.pix[row+kx*4 : row+kx*4+4 : row+kx*4+4]
			w := wx[kx]
			rowSum[0] += w * float64(p[0])
			rowSum[1] += w * float64(p[1])
			rowSum[2] += w * float64(p[2])
			rowSum[3] += w * float64(p[3])
		}
		w := wy[ky]
		sum[0] += w * rowSum[0]
		sum[1] += w * rowSum[1]
		sum[2] += w * rowSum[2]
		sum[3] += w * rowSum[3]
	}

	return Color(clampByte(sum[0])) |
		Color(clampByte(sum[1]))<<8 |
		Color(clampByte(sum[2]))<<16 |
		Color(clampByte(sum[3]))<<24, true
}

// clampByte rounds a float64 to the nearest uint8, clamping to [0, 255].
// Defined at package level so the compiler can inline it (closures are not inlined).
func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// bicubic computes the Catmull-Rom (a = -0.5) bicubic kernel value:
//
//	W(x) = 1.5|x|³ - 2.5|x|² + 1         for |x| < 1
//	W(x) = -0.5|x|³ + 2.5|x|² - 4|x| + 2 for 1 ≤ |x| < 2
//	W(x) = 0                                for |x| ≥ 2
func bicubic(x float64) float64 {
	if x < 0 {
		x = -x
	}
	if x >= 2 {
		return 0
	}
	x2 := x * x
	x3 := x2 * x
	if x < 1 {
		return 1.5*x3 - 2.5*x2 + 1
	}
	return -0.5*x3 + 2.5*x2 - 4*x + 2
}

// bicubicLUTSize is the number of entries in the lookup table.
// 1024 entries over [0, 2] gives a step of ~0.00195.
const bicubicLUTSize = 1024

// bicubicTable stores precomputed kernel values for x in [0, 2).
// The kernel is symmetric so only the positive half is stored.
var bicubicTable [bicubicLUTSize + 1]float64

func init() {
	for i := 0; i <= bicubicLUTSize; i++ {
		bicubicTable[i] = bicubic(float64(i) * 2.0 / bicubicLUTSize)
	}
}

// bicubicLUT evaluates the kernel via table lookup with linear
// interpolation between entries. Exact at integer distances.
func bicubicLUT(x float64) float64 {
	if x < 0 {
		x = -x
	}
	if x >= 2 {
		return 0
	}
	pos := x * (bicubicLUTSize / 2.0)
	idx := int(pos)
	frac := pos - float64(idx)
	return bicubicTable[idx]*(1-frac) + bicubicTable[idx+1]*frac
}
