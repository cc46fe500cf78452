// Package thumbnail generates and memoizes low-resolution page previews.
package thumbnail

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// MaxPages is the hard cap: pages beyond it are never thumbnailed.
	MaxPages = 10
	// Scale is the fixed rasterization scale of a preview.
	Scale = 0.5
)

// Rasterizer renders one page to an image data URL.
type Rasterizer interface {
	RasterizePage(ctx context.Context, page int, scale float64) (string, error)
}

// Config bounds thumbnail generation.
type Config struct {
	MaxPages int // lowers the cap; values outside 1..MaxPages mean MaxPages
}

// Cache maps 1-based page numbers to rendered previews. Entries are never
// evicted; a failed page stays absent.
type Cache struct {
	r     Rasterizer
	log   *slog.Logger
	cfg   Config
	stats *Stats

	mu     sync.Mutex
	thumbs map[int]string
	group  singleflight.Group
}

// New creates a cache. stats may be nil.
func New(r Rasterizer, log *slog.Logger, cfg Config, stats *Stats) *Cache {
	if cfg.MaxPages <= 0 || cfg.MaxPages > MaxPages {
		cfg.MaxPages = MaxPages
	}
	return &Cache{
		r:      r,
		log:    log,
		cfg:    cfg,
		stats:  stats,
		thumbs: make(map[int]string),
	}
}

// Ensure generates previews for pages 1..min(totalPages, MaxPages), one page
// at a time, skipping pages already cached. It returns how many pages were
// newly generated. Per-page failures are logged and do not stop the walk.
func (c *Cache) Ensure(ctx context.Context, totalPages int) int {
	last := min(totalPages, c.cfg.MaxPages)
	generated := 0
	for page := 1; page <= last; page++ {
		if _, ok := c.Get(page); ok {
			continue
		}
		fresh, err := c.generate(ctx, page)
		if err != nil {
			c.log.Warn("thumbnail generation failed", "page", page, "error", err)
			continue
		}
		if fresh {
			generated++
		}
	}
	return generated
}

// generate rasterizes page once even when several Ensure walks race on it.
// fresh is true only for the caller whose walk ran the rasterization.
func (c *Cache) generate(ctx context.Context, page int) (fresh bool, err error) {
	_, err, _ = c.group.Do(strconv.Itoa(page), func() (any, error) {
		if _, ok := c.Get(page); ok {
			return nil, nil
		}
		start := time.Now()
		url, err := c.r.RasterizePage(ctx, page, Scale)
		if c.stats != nil {
			c.stats.Record(time.Since(start).Milliseconds(), err)
		}
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.thumbs[page] = url
		c.mu.Unlock()
		fresh = true
		return nil, nil
	})
	return fresh, err
}

// Get returns the cached preview for page.
func (c *Cache) Get(page int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	url, ok := c.thumbs[page]
	return url, ok
}

// All returns a copy of every cached preview.
func (c *Cache) All() map[int]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int]string, len(c.thumbs))
	for k, v := range c.thumbs {
		out[k] = v
	}
	return out
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.thumbs)
}

