package revalidate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanCount = 200

// Redis caches rendered views under prefix+path and drops them on
// invalidation. Each invalidated path is also published on channel so other
// instances and front ends can refresh.
type Redis struct {
	client  redis.Cmdable
	prefix  string
	channel string
}

func NewRedis(client redis.Cmdable, prefix, channel string) *Redis {
	return &Redis{client: client, prefix: prefix, channel: channel}
}

// Get returns the cached view for path. ok is false on a miss.
func (r *Redis) Get(ctx context.Context, path string) (data []byte, ok bool, err error) {
	data, err = r.client.Get(ctx, r.prefix+path).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached view %s: %w", path, err)
	}
	return data, true, nil
}

// Set caches a view for ttl.
func (r *Redis) Set(ctx context.Context, path string, data []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+path, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache view %s: %w", path, err)
	}
	return nil
}

// Invalidate deletes every cached view at or below each path, then publishes
// the path.
func (r *Redis) Invalidate(ctx context.Context, paths ...string) error {
	var errs []error
	for _, path := range paths {
		if err := r.deletePrefix(ctx, path); err != nil {
			errs = append(errs, err)
			continue
		}
		if r.channel == "" {
			continue
		}
		if err := r.client.Publish(ctx, r.channel, path).Err(); err != nil {
			errs = append(errs, fmt.Errorf("publish invalidation %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Redis) deletePrefix(ctx context.Context, path string) error {
	match := escapeGlob(r.prefix+path) + "*"
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, match, scanCount).Result()
		if err != nil {
			return fmt.Errorf("scan cached views %s: %w", path, err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete cached views %s: %w", path, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
