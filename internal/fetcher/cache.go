package fetcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/radiorecorder/allday/internal/metrics"
)

// Source is what the page renderer reads upstream documents from
type Source interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
	Exists(ctx context.Context, rawURL string) bool
}

// Cache stores fetched bodies
type Cache interface {
	Lookup(rawURL string, maxAge time.Duration) ([]byte, bool, error)
	Save(rawURL string, body []byte) error
}

// Cached serves GETs from cache while they are younger than ttl. HEAD
// probes always go upstream.
type Cached struct {
	src    Source
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached wraps src with cache
func NewCached(src Source, cache Cache, ttl time.Duration, logger *slog.Logger) *Cached {
	return &Cached{src: src, cache: cache, ttl: ttl, logger: logger}
}

func (c *Cached) Get(ctx context.Context, rawURL string) ([]byte, error) {
	body, ok, err := c.cache.Lookup(rawURL, c.ttl)
	if err != nil {
		c.logger.Warn("cache lookup failed", "url", rawURL, "error", err)
	}
	metrics.RecordCache(ok)
	if ok {
		return body, nil
	}

	body, err = c.src.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Save(rawURL, body); err != nil {
		c.logger.Warn("cache save failed", "url", rawURL, "error", err)
	}
	return body, nil
}

func (c *Cached) Exists(ctx context.Context, rawURL string) bool {
	return c.src.Exists(ctx, rawURL)
}
