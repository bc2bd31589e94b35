package revalidate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// ViewCache stores rendered views by path. *Redis implements it.
type ViewCache interface {
	Get(ctx context.Context, path string) ([]byte, bool, error)
	Set(ctx context.Context, path string, data []byte, ttl time.Duration) error
}

// Views renders JSON views through a cache. A nil *Views renders directly.
// Cache failures are logged and the view is built fresh.
type Views struct {
	cache  ViewCache
	ttl    time.Duration
	logger *slog.Logger
}

func NewViews(cache ViewCache, ttl time.Duration, logger *slog.Logger) *Views {
	if logger == nil {
		logger = slog.Default()
	}
	return &Views{cache: cache, ttl: ttl, logger: logger}
}

// Capped returns views that cache entries for at most ttl.
func (v *Views) Capped(ttl time.Duration) *Views {
	if v == nil {
		return nil
	}
	c := *v
	if ttl > 0 && (c.ttl <= 0 || ttl < c.ttl) {
		c.ttl = ttl
	}
	return &c
}

// Render returns the cached JSON for path, or builds, encodes and caches it.
// hit reports whether the cache answered. An invalidation that lands between
// build and Set is lost, so the stale view lives until its TTL expires.
func (v *Views) Render(ctx context.Context, path string, build func(context.Context) (any, error)) (data []byte, hit bool, err error) {
	if v != nil && v.cache != nil {
		cached, ok, cerr := v.cache.Get(ctx, path)
		if cerr != nil {
			v.logger.WarnContext(ctx, "view cache read failed", "path", path, "error", cerr)
		} else if ok {
			return cached, true, nil
		}
	}

	view, err := build(ctx)
	if err != nil {
		return nil, false, err
	}
	data, err = json.Marshal(view)
	if err != nil {
		return nil, false, fmt.Errorf("encode view %s: %w", path, err)
	}

	if v != nil && v.cache != nil {
		if err := v.cache.Set(ctx, path, data, v.ttl); err != nil {
			v.logger.WarnContext(ctx, "view cache write failed", "path", path, "error", err)
		}
	}
	return data, false, nil
}
