// Package lock keeps two notification passes from running at the same time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrHeld is returned by Acquire when another pass owns the lock.
var ErrHeld = errors.New("notification pass lock is held by another run")

const defaultKey = "lodge_notifier:pass_lock"

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a single-key lock shared by every notifier replica.
type RedisLock struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedisLock builds a lock on key. The TTL bounds how long a crashed holder blocks others.
func NewRedisLock(client redis.UniversalClient, key string, ttl time.Duration) *RedisLock {
	key = strings.TrimSuffix(strings.TrimSpace(key), ":")
	if key == "" {
		key = defaultKey
	}
	return &RedisLock{client: client, key: key, ttl: ttl}
}

// Acquire takes the lock. The returned release is safe to call once the pass ends,
// and never removes a lock that has since expired and been taken by someone else.
func (l *RedisLock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire pass lock: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return func() {
		// the pass context may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Err()
	}, nil
}

// LocalLock serializes passes inside one process. It is used when no Redis is configured.
type LocalLock struct {
	mu sync.Mutex
}

func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

func (l *LocalLock) Acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.mu.TryLock() {
		return nil, ErrHeld
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}
