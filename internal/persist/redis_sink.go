package persist

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisSinkOpts configures a RedisSink.
type RedisSinkOpts struct {
	// Client cannot be nil.
	Client redis.Cmdable

	// ClientCloser closes Client when RedisSink.Close is called. Optional.
	ClientCloser io.Closer

	// Key is the single redis key the blob is stored under.
	Key string

	// ClientTimeout bounds each redis call. Default 500ms.
	ClientTimeout time.Duration

	// TTL is the key's expiry, refreshed on every Write. Zero means no
	// expiry.
	TTL time.Duration

	// Logger receives warnings on redis failures. A nil Logger disables
	// logging.
	Logger *zap.Logger
}

func (o *RedisSinkOpts) init() error {
	if o.Client == nil {
		return errors.New("persist: redis sink requires a non-nil client")
	}
	if o.Key == "" {
		o.Key = "super-dns-lookup:cache"
	}
	if o.ClientTimeout <= 0 {
		o.ClientTimeout = 500 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return nil
}

// RedisSink persists a single opaque blob under a single redis key. It is
// adapted from the teacher's per-DNS-message redis_cache.RedisCache: same
// client abstraction and same disable-and-backoff-ping behavior on
// failure, but storing one key for the whole cache snapshot instead of one
// key per message.
type RedisSink struct {
	opts           RedisSinkOpts
	clientDisabled uint32
}

// NewRedisSink builds a RedisSink from opts.
func NewRedisSink(opts RedisSinkOpts) (*RedisSink, error) {
	if err := opts.init(); err != nil {
		return nil, err
	}
	return &RedisSink{opts: opts}, nil
}

func (r *RedisSink) disabled() bool {
	return atomic.LoadUint32(&r.clientDisabled) != 0
}

func (r *RedisSink) disableClient() {
	if atomic.CompareAndSwapUint32(&r.clientDisabled, 0, 1) {
		r.opts.Logger.Warn("redis persistence temporarily disabled")
		go func() {
			const maxBackoff = 30 * time.Second
			backoff := 100 * time.Millisecond
			for {
				time.Sleep(backoff)
				ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
				err := r.opts.Client.Ping(ctx).Err()
				cancel()
				if err != nil {
					if backoff >= maxBackoff {
						backoff = maxBackoff
					} else {
						backoff += time.Duration(rand.Intn(1000))*time.Millisecond + time.Second
					}
					r.opts.Logger.Warn("redis ping failed", zap.Error(err), zap.Duration("next_ping", backoff))
					continue
				}
				atomic.StoreUint32(&r.clientDisabled, 0)
				return
			}
		}()
	}
}

// Read returns the stored blob, or (nil, nil) if the key does not exist or
// the sink is currently disabled after a failure.
func (r *RedisSink) Read() ([]byte, error) {
	if r.disabled() {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.ClientTimeout)
	defer cancel()
	b, err := r.opts.Client.Get(ctx, r.opts.Key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.opts.Logger.Warn("redis get", zap.Error(err))
		r.disableClient()
		return nil, nil
	}
	return b, nil
}

// Write stores blob under the configured key, refreshing TTL. Unlike Read,
// a failed Write is reported to the caller: Teardown needs to know its
// flush did not land rather than silently discard the cache state.
func (r *RedisSink) Write(blob []byte) error {
	if r.disabled() {
		return errors.New("persist: redis sink is disabled after a prior failure")
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.ClientTimeout)
	defer cancel()
	if err := r.opts.Client.Set(ctx, r.opts.Key, blob, r.opts.TTL).Err(); err != nil {
		r.opts.Logger.Warn("redis set", zap.Error(err))
		r.disableClient()
		return err
	}
	return nil
}

// Close closes the underlying redis client via ClientCloser, if set.
func (r *RedisSink) Close() error {
	if r.opts.ClientCloser != nil {
		return r.opts.ClientCloser.Close()
	}
	return nil
}
