package raster

import "sync"

// poolKey identifies a pool by image dimensions.
type poolKey struct {
	w, h int
}

// pools maps (width, height) → *sync.Pool of *[]byte pixel buffers. A
// service renders many images of the same one or two tile sizes, so the map
// stays tiny.
var pools sync.Map

// Get returns a fully transparent image from the pool, or allocates a new one.
func Get(width, height int, mode Interpolation) (*Image, error) {
	if p, ok := pools.Load(poolKey{width, height}); ok {
		if v := p.(*sync.Pool).Get(); v != nil {
			pix := *v.(*[]byte)
			clear(pix)
			return New(width, height, pix, mode)
		}
	}
	return New(width, height, nil, mode)
}

// Put returns an image's buffer to the pool. The image must not be used
// afterwards. Nil or already returned images are ignored.
func Put(img *Image) {
	if img == nil || img.pix == nil {
		return
	}
	p, _ := pools.LoadOrStore(poolKey{img.width, img.height}, &sync.Pool{})
	pix := img.pix
	img.pix = nil
	p.(*sync.Pool).Put(&pix)
}
