// internal/lock/redis_lock.go
package lock

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockLua deletes the lock only if it still carries the caller's token, so
// an expired holder cannot release a lock another process has since taken.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// RedisConfig holds connection and timing parameters for RedisLocker.
type RedisConfig struct {
	Addr       string        `env:"ADDR" envDefault:"localhost:6379"`
	Password   string        `env:"PASSWORD"`
	DB         int           `env:"DB" envDefault:"0"`
	TLSEnabled bool          `env:"TLS" envDefault:"false"`
	TTL        time.Duration `env:"LOCK_TTL" envDefault:"10s"`
	RetryEvery time.Duration `env:"LOCK_RETRY" envDefault:"25ms"`
}

// RedisLocker is a Locker shared by every process pointing at the same Redis.
// It uses SET NX with a TTL and a token-checked Lua unlock.
type RedisLocker struct {
	rdb        *redis.Client
	unlockSc   *redis.Script
	ttl        time.Duration
	retryEvery time.Duration
}

// NewRedisLocker connects, pings, and returns a RedisLocker.
func NewRedisLocker(ctx context.Context, cfg RedisConfig) (*RedisLocker, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	retry := cfg.RetryEvery
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	return &RedisLocker{
		rdb:        rdb,
		unlockSc:   redis.NewScript(unlockLua),
		ttl:        ttl,
		retryEvery: retry,
	}, nil
}

func redisKey(key string) string {
	return "lock:" + key
}

// Lock polls SET NX until it wins or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()
	lk := redisKey(key)

	ticker := time.NewTicker(l.retryEvery)
	defer ticker.Stop()
	for {
		ok, err := l.rdb.SetNX(ctx, lk, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Background context so the lock is released even if the caller's
			// context is already cancelled.
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = l.unlockSc.Run(unlockCtx, l.rdb, []string{lk}, token).Err()
		})
	}, nil
}

// Close closes the Redis connection.
func (l *RedisLocker) Close() error {
	return l.rdb.Close()
}

var _ Locker = (*RedisLocker)(nil)
