package terrain

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is large enough to hold a 256x256 sampling grid.
const DefaultCacheSize = 1 << 16

type sampleKey struct {
	x, z float64
}

// Cached memoizes exact (x, z) lookups of another HeightField. Renderer
// sampling grids query the same points every frame; the physics path
// rarely repeats a position, so it usually talks to Field directly.
type Cached struct {
	field HeightField
	cache *lru.Cache[sampleKey, float64]
}

// NewCached wraps field with an LRU of the given size. A size <= 0 uses
// DefaultCacheSize. A nil field wraps the analytic Field.
func NewCached(field HeightField, size int) (*Cached, error) {
	if field == nil {
		field = Field{}
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[sampleKey, float64](size)
	if err != nil {
		return nil, fmt.Errorf("terrain: create cache: %w", err)
	}
	return &Cached{field: field, cache: c}, nil
}

// Height implements HeightField.
func (c *Cached) Height(x, z float64) float64 {
	key := sampleKey{x: x, z: z}
	if h, ok := c.cache.Get(key); ok {
		return h
	}
	h := c.field.Height(x, z)
	c.cache.Add(key, h)
	return h
}

// Len returns the number of memoized samples.
func (c *Cached) Len() int {
	return c.cache.Len()
}

// Purge drops all memoized samples.
func (c *Cached) Purge() {
	c.cache.Purge()
}
