package core

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/popmap/popmap-api/internal/domain/model"
)

// CacheRepository is the port for Redis-backed shared state: rendered
// map payloads and webhook delivery claims. The core defines the
// interface; the data layer implements it.
type CacheRepository interface {
	// Set stores a value under key. A zero TTL stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves the value for key. A miss returns (nil, nil).
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// SetIfNotExists stores value only when key is absent, reporting
	// whether this call set it. Concurrent callers agree on a single
	// winner, which is what claims and dedup keys need.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// mapGenerationKey holds the current map-data cache generation. Bumping it on
// event mutation orphans every cached viewport at once; orphans age out via TTL.
const mapGenerationKey = "mapdata:gen"

// mapKeyQuantum is the grid step viewport bounds are snapped to so nearby
// viewports share cache entries.
const mapKeyQuantum = 0.01

// MapKey identifies one cached map-data response.
type MapKey struct {
	Bounds     model.BoundingBox
	CategoryID string
}

// NewMapKey snaps bounds outward to the cache grid.
func NewMapKey(bounds model.BoundingBox, categoryID string) MapKey {
	return MapKey{
		Bounds: model.BoundingBox{
			MinLat: snapDown(bounds.MinLat),
			MaxLat: snapUp(bounds.MaxLat),
			MinLng: snapDown(bounds.MinLng),
			MaxLng: snapUp(bounds.MaxLng),
		},
		CategoryID: categoryID,
	}
}

func snapDown(v float64) float64 {
	return math.Floor(v/mapKeyQuantum) * mapKeyQuantum
}

func snapUp(v float64) float64 {
	return math.Ceil(v/mapKeyQuantum) * mapKeyQuantum
}

// MapCache caches rendered map-data payloads keyed by quantized viewport.
// Entries are short-lived; event mutations invalidate the whole cache by
// bumping the generation.
type MapCache struct {
	cache CacheRepository
	ttl   time.Duration
	now   func() time.Time
}

// MapCacheConfig holds configuration for map-data caching.
type MapCacheConfig struct {
	TTL time.Duration `json:"ttl"`
}

// MapCacheOptions bundles dependencies for NewMapCache.
type MapCacheOptions struct {
	Cache  CacheRepository
	Config MapCacheConfig
	// Now overrides the clock in tests.
	Now func() time.Time
}

// DefaultMapCacheConfig returns a MapCacheConfig with sensible defaults.
func DefaultMapCacheConfig() MapCacheConfig {
	return MapCacheConfig{
		TTL: time.Minute,
	}
}

// NewMapCache creates a new MapCache.
func NewMapCache(opts MapCacheOptions) *MapCache {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ttl := opts.Config.TTL
	if ttl <= 0 {
		ttl = DefaultMapCacheConfig().TTL
	}
	return &MapCache{
		cache: opts.Cache,
		ttl:   ttl,
		now:   now,
	}
}

// Get returns the cached payload for the key, or nil on a miss.
func (c *MapCache) Get(ctx context.Context, key MapKey) ([]byte, error) {
	entryKey, err := c.entryKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return c.cache.Get(ctx, entryKey)
}

// Set stores a rendered payload for the key under the current generation.
func (c *MapCache) Set(ctx context.Context, key MapKey, payload []byte) error {
	entryKey, err := c.entryKey(ctx, key)
	if err != nil {
		return err
	}
	return c.cache.Set(ctx, entryKey, payload, c.ttl)
}

// Invalidate orphans every cached viewport by writing a new generation.
// Called when an event is approved, updated, or cancelled.
func (c *MapCache) Invalidate(ctx context.Context) error {
	gen := strconv.FormatInt(c.now().UnixNano(), 10)
	return c.cache.Set(ctx, mapGenerationKey, []byte(gen), 0)
}

// entryKey resolves the generation-qualified cache key for a viewport.
func (c *MapCache) entryKey(ctx context.Context, key MapKey) (string, error) {
	gen, err := c.cache.Get(ctx, mapGenerationKey)
	if err != nil {
		return "", err
	}
	if len(gen) == 0 {
		gen = []byte("0")
	}
	b := key.Bounds
	return fmt.Sprintf("mapdata:%s:%.2f:%.2f:%.2f:%.2f:%s",
		gen, b.MinLat, b.MinLng, b.MaxLat, b.MaxLng, key.CategoryID), nil
}
