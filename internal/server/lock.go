package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TurnLock serialises turns per user. Acquire fails with ErrTurnInProgress
// when the user already holds the lock.
type TurnLock interface {
	Acquire(ctx context.Context, userID string) (release func(), err error)
}

// LocalLock is an in-process TurnLock for a single server instance.
type LocalLock struct {
	mu   sync.Mutex
	busy map[string]bool
}

// NewLocalLock creates a LocalLock.
func NewLocalLock() *LocalLock {
	return &LocalLock{busy: map[string]bool{}}
}

func (l *LocalLock) Acquire(_ context.Context, userID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy[userID] {
		return nil, ErrTurnInProgress
	}
	l.busy[userID] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.busy, userID)
			l.mu.Unlock()
		})
	}, nil
}

// releaseScript deletes the lock only if it still holds our token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// RedisLock is a TurnLock shared by every server instance using the same
// Redis. The TTL bounds how long a crashed holder blocks the user.
type RedisLock struct {
	client   redis.Cmdable
	ttl      time.Duration
	newToken func() string
}

// NewRedisLock creates a RedisLock whose keys expire after ttl.
func NewRedisLock(client redis.Cmdable, ttl time.Duration) *RedisLock {
	return &RedisLock{client: client, ttl: ttl, newToken: uuid.NewString}
}

// LockKey is the Redis key guarding a user's turns.
func LockKey(userID string) string {
	return "dsatutor:turnlock:" + userID
}

func (l *RedisLock) Acquire(ctx context.Context, userID string) (func(), error) {
	key, token := LockKey(userID), l.newToken()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire turn lock: %w", err)
	}
	if !ok {
		return nil, ErrTurnInProgress
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be done.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			l.client.Eval(ctx, releaseScript, []string{key}, token)
		})
	}, nil
}
