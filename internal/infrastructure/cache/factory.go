package cache

import (
	"fmt"

	"github.com/finsync/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Lock backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// LockerFactory creates the sync locker selected by configuration
type LockerFactory struct {
	syncConfig            config.SyncConfig
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	dial                  func(config.RedisConfig) (*redis.Client, error)
}

// LockerFactoryOption is a functional option for configuring the factory
type LockerFactoryOption func(*LockerFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// in-memory locker. Default is false: two instances without a shared lock
// could replace the same window concurrently.
func WithInMemoryFallback(allow bool) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewLockerFactory creates a new factory
func NewLockerFactory(syncCfg config.SyncConfig, redisCfg config.RedisConfig, opts ...LockerFactoryOption) *LockerFactory {
	f := &LockerFactory{
		syncConfig:  syncCfg,
		redisConfig: redisCfg,
		logger:      zap.NewNop(),
		dial:        NewRedisClient,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create builds the configured locker. The returned close function releases
// the Redis connection, if any.
func (f *LockerFactory) Create() (Locker, func() error, error) {
	noop := func() error { return nil }

	switch f.syncConfig.LockBackend {
	case "", BackendMemory:
		f.logger.Info("Using in-memory sync locker")
		return NewInMemoryLocker(), noop, nil

	case BackendRedis:
		client, err := f.dial(f.redisConfig)
		if err != nil {
			if !f.allowInMemoryFallback {
				return nil, nil, fmt.Errorf("failed to create Redis sync locker: %w", err)
			}
			f.logger.Warn("Redis unavailable, falling back to in-memory sync locker",
				zap.String("addr", f.redisConfig.Addr()),
				zap.Error(err))
			return NewInMemoryLocker(), noop, nil
		}
		f.logger.Info("Using Redis sync locker",
			zap.String("addr", f.redisConfig.Addr()),
			zap.Duration("ttl", f.syncConfig.LockTTL))
		return NewRedisLocker(client, f.syncConfig.LockTTL), client.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown sync lock backend %q", f.syncConfig.LockBackend)
}
