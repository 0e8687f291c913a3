package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/finsync/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// ErrLockLost is returned by release when the lease could not be kept alive
// for the whole run
var ErrLockLost = errors.New("lock lease lost")

// redisLease is the part of *redislock.Lock the locker needs
type redisLease interface {
	Refresh(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

// lockObtainer wraps redislock.Client.Obtain behind an interface so tests can
// replace the Redis round-trip.
type lockObtainer interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (redisLease, error)
}

type redislockObtainer struct {
	client *redislock.Client
}

func (o redislockObtainer) Obtain(ctx context.Context, key string, ttl time.Duration) (redisLease, error) {
	lock, err := o.client.Obtain(ctx, key, ttl, nil)
	if err != nil {
		return nil, err
	}
	return redislockLease{lock: lock}, nil
}

type redislockLease struct {
	lock *redislock.Lock
}

func (l redislockLease) Refresh(ctx context.Context, ttl time.Duration) error {
	return l.lock.Refresh(ctx, ttl, nil)
}

func (l redislockLease) Release(ctx context.Context) error {
	return l.lock.Release(ctx)
}

// RedisLocker implements Locker with redislock so that every API instance
// and the scheduler share one lock per entity type. While a lease is held a
// heartbeat extends it every ttl/3, so the TTL only bounds how long a
// crashed process can block the key.
type RedisLocker struct {
	obtainer     lockObtainer
	ttl          time.Duration
	refreshEvery time.Duration
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisLocker creates a locker over an existing Redis client
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	return newRedisLocker(redislockObtainer{client: redislock.New(client)}, ttl)
}

func newRedisLocker(obtainer lockObtainer, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	every := ttl / 3
	if every <= 0 {
		every = ttl
	}
	return &RedisLocker{obtainer: obtainer, ttl: ttl, refreshEvery: every}
}

// Acquire obtains the key without retrying and keeps it alive until release
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	lease, err := l.obtainer.Obtain(ctx, key, l.ttl)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotAcquired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain sync lock %s: %w", key, err)
	}

	hb := &heartbeat{stop: make(chan struct{}), done: make(chan struct{})}
	go hb.run(context.WithoutCancel(ctx), l.refreshEvery, func(ctx context.Context) error {
		return lease.Refresh(ctx, l.ttl)
	})

	var once sync.Once
	var releaseErr error
	return func(ctx context.Context) error {
		once.Do(func() {
			lost := hb.halt()
			err := lease.Release(ctx)
			switch {
			case lost != nil:
				releaseErr = fmt.Errorf("%w: %s: %v", ErrLockLost, key, lost)
			case errors.Is(err, redislock.ErrLockNotHeld):
				releaseErr = fmt.Errorf("%w: %s", ErrLockLost, key)
			default:
				releaseErr = err
			}
		})
		return releaseErr
	}, nil
}

// heartbeat refreshes a lease until halted or until a refresh fails
type heartbeat struct {
	stop chan struct{}
	done chan struct{}
	err  error
}

func (h *heartbeat) run(ctx context.Context, every time.Duration, refresh func(context.Context) error) {
	defer close(h.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			if err := refresh(ctx); err != nil {
				h.err = err
				return
			}
		}
	}
}

// halt stops the heartbeat and returns the refresh error, if any
func (h *heartbeat) halt() error {
	close(h.stop)
	<-h.done
	return h.err
}

var _ Locker = (*RedisLocker)(nil)
