package watermark

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/szibis/logrelay/internal/logging"
)

const defaultRedisPollInterval = 100 * time.Millisecond

// advanceScript raises the stored mark without ever lowering it.
var advanceScript = redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
local next = tonumber(ARGV[1])
if next > cur then
  redis.call("SET", KEYS[1], ARGV[1])
  return next
end
return cur
`)

// RedisConfig configures a Redis-backed mark.
type RedisConfig struct {
	// Key holds the mark as a decimal string. A missing key reads as 0.
	Key string
	// PollInterval is how often the cached mark is refreshed.
	PollInterval time.Duration
}

// Redis is a high-water mark shared through a Redis key. HighWater serves
// a cached value refreshed in the background since it is called while the
// queue lock is held.
type Redis struct {
	client redis.UniversalClient
	key    string
	log    *logging.Component

	cached  atomic.Uint64
	lastErr atomic.Pointer[error]

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Advancer = (*Redis)(nil)

// NewRedis reads the mark once and starts the refresh loop. The caller
// keeps ownership of client.
func NewRedis(ctx context.Context, client redis.UniversalClient, cfg RedisConfig) (*Redis, error) {
	if cfg.Key == "" {
		return nil, errors.New("watermark: redis key is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultRedisPollInterval
	}

	r := &Redis{
		client: client,
		key:    cfg.Key,
		log:    logging.With("component", "watermark", "source", "redis", "key", cfg.Key),
	}
	if err := r.refresh(ctx); err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go r.pollLoop(loopCtx, cfg.PollInterval)
	return r, nil
}

func (r *Redis) pollLoop(ctx context.Context, interval time.Duration) {
	defer r.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.refresh(ctx); err != nil && ctx.Err() == nil {
				r.log.Warn("high-water refresh failed", logging.F("error", err.Error()))
			}
		}
	}
}

func (r *Redis) refresh(ctx context.Context) error {
	v, err := r.client.Get(ctx, r.key).Uint64()
	if errors.Is(err, redis.Nil) {
		v, err = 0, nil
	}
	r.store(v, err)
	return err
}

func (r *Redis) store(v uint64, err error) {
	if err != nil {
		err = fmt.Errorf("watermark: redis get %s: %w", r.key, err)
		r.lastErr.Store(&err)
		return
	}
	r.lastErr.Store(nil)
	r.raise(v)
}

func (r *Redis) raise(v uint64) {
	for {
		cur := r.cached.Load()
		if v <= cur || r.cached.CompareAndSwap(cur, v) {
			return
		}
	}
}

// HighWater returns the cached mark, or the last refresh error.
func (r *Redis) HighWater() (uint64, error) {
	if p := r.lastErr.Load(); p != nil {
		return 0, *p
	}
	return r.cached.Load(), nil
}

// Advance raises the shared mark to seq.
func (r *Redis) Advance(ctx context.Context, seq uint64) error {
	v, err := advanceScript.Run(ctx, r.client, []string{r.key}, seq).Uint64()
	if err != nil {
		return fmt.Errorf("watermark: redis advance %s: %w", r.key, err)
	}
	r.raise(v)
	return nil
}

// Close stops the refresh loop.
func (r *Redis) Close() error {
	r.cancel()
	r.wg.Wait()
	return nil
}
