package revalidate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	failGet bool
}

func (m *memoryCache) Get(_ context.Context, path string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, false, errors.New("cache offline")
	}
	v, ok := m.data[path]
	return v, ok, nil
}

func (m *memoryCache) Set(_ context.Context, path string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[path] = data
	if m.ttls == nil {
		m.ttls = map[string]time.Duration{}
	}
	m.ttls[path] = ttl
	return nil
}

func TestViewsRenderCachesBuiltView(t *testing.T) {
	cache := &memoryCache{data: map[string][]byte{}}
	views := NewViews(cache, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	calls := 0
	build := func(context.Context) (any, error) {
		calls++
		return map[string]int{"n": calls}, nil
	}

	data, hit, err := views.Render(context.Background(), "/projects/a/lookup", build)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.JSONEq(t, `{"n":1}`, string(data))

	data, hit, err = views.Render(context.Background(), "/projects/a/lookup", build)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.JSONEq(t, `{"n":1}`, string(data))
	assert.Equal(t, 1, calls)
}

func TestViewsRenderFallsBackWhenCacheFails(t *testing.T) {
	cache := &memoryCache{data: map[string][]byte{}, failGet: true}
	views := NewViews(cache, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	data, hit, err := views.Render(context.Background(), "/x", func(context.Context) (any, error) {
		return []string{"a"}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.JSONEq(t, `["a"]`, string(data))
}

func TestNilViewsBuildsDirectly(t *testing.T) {
	var views *Views
	boom := errors.New("boom")

	_, _, err := views.Render(context.Background(), "/x", func(context.Context) (any, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestViewsCappedShortensTTL(t *testing.T) {
	build := func(context.Context) (any, error) { return []string{}, nil }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cases := []struct {
		name string
		base time.Duration
		cap  time.Duration
		want time.Duration
	}{
		{"cap below base", 5 * time.Minute, 30 * time.Second, 30 * time.Second},
		{"cap above base", 10 * time.Second, 30 * time.Second, 10 * time.Second},
		{"no base expiry", 0, 30 * time.Second, 30 * time.Second},
		{"zero cap", time.Minute, 0, time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cache := &memoryCache{data: map[string][]byte{}}
			base := NewViews(cache, tc.base, logger)

			_, _, err := base.Capped(tc.cap).Render(context.Background(), "/projects/a/raw-deliveries", build)
			require.NoError(t, err)
			assert.Equal(t, tc.want, cache.ttls["/projects/a/raw-deliveries"])

			_, _, err = base.Render(context.Background(), "/projects/a/lookup", build)
			require.NoError(t, err)
			assert.Equal(t, tc.base, cache.ttls["/projects/a/lookup"], "the original views keep their TTL")
		})
	}

	var none *Views
	assert.Nil(t, none.Capped(time.Second))
}
