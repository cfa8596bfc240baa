package encode

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/karlseguin/ccache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/pspoerri/mapreproject/internal/raster"
)

// DecodeCache remembers decoded rasters by the hash of their encoded bytes,
// so a source that keeps returning the same stream (an empty sea tile, a
// static overview) is decoded once. It is safe for concurrent use.
type DecodeCache struct {
	cache    *ccache.Cache[*raster.Image]
	inflight singleflight.Group
	ttl      time.Duration
	decoder  RasterDecoder
}

// NewDecodeCache keeps up to maxItems decoded images for ttl each.
func NewDecodeCache(maxItems int, ttl time.Duration) *DecodeCache {
	maxItems = max(maxItems, 1)
	prune := max(maxItems/10, 1)
	return &DecodeCache{
		cache:   ccache.New(ccache.Configure[*raster.Image]().MaxSize(int64(maxItems)).ItemsToPrune(uint32(prune))),
		ttl:     ttl,
		decoder: DefaultDecoder,
	}
}

// DecodeRaster returns a private copy of the cached raster for data, decoding
// and caching it on a miss.
func (c *DecodeCache) DecodeRaster(data []byte, mode raster.Interpolation) (*raster.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	key := strconv.FormatUint(xxhash.Sum64(data), 16) + "/" + strconv.Itoa(len(data))

	if item := c.cache.Get(key); item != nil && !item.Expired() {
		return withMode(item.Value(), mode)
	}
	v, err, _ := c.inflight.Do(key, func() (any, error) {
		img, err := c.decoder.DecodeRaster(data, mode)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, img, c.ttl)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return withMode(v.(*raster.Image), mode)
}

// Len returns the number of cached images.
func (c *DecodeCache) Len() int { return c.cache.ItemCount() }

// Close stops the cache's background worker.
func (c *DecodeCache) Close() { c.cache.Stop() }

// withMode copies a cached image so callers may modify it.
func withMode(img *raster.Image, mode raster.Interpolation) (*raster.Image, error) {
	pix := append([]byte(nil), img.Pix()...)
	return raster.New(img.Width(), img.Height(), pix, mode)
}
