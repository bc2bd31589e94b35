package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	dErrors "sitecarbon/pkg/domain-errors"
)

// TxRunner runs the insert and delete of one promotion as a unit.
// Postgres runs it in one SQL transaction; in memory a keyed lock
// serialises promotions of the same raw delivery.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

const (
	numShards        = 64
	defaultTxTimeout = 5 * time.Second
)

type txKey struct{}

// withTxKey names the record a transaction works on so lock-based runners
// can pick a shard.
func withTxKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, txKey{}, key)
}

// ShardedTx is the in-memory TxRunner. Operations on the same key are
// serialised; different keys mostly proceed in parallel.
type ShardedTx struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewShardedTx() *ShardedTx {
	return &ShardedTx{timeout: defaultTxTimeout}
}

func (t *ShardedTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := t.shard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

func (t *ShardedTx) shard(ctx context.Context) int {
	key, _ := ctx.Value(txKey{}).(string)
	if key == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % numShards)
}
