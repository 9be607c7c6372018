package voucher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"vouchsafe/pkg/platform/sentinel"
)

// ReleaseFunc releases an acquired redemption lock.
type ReleaseFunc func()

// Locker serializes redemption of one reference. The record store offers no
// conditional update, so exactly-once redemption needs a serialization point
// in front of the read-check-write: the service re-reads the voucher inside
// the critical section, and the loser of any race observes it already
// redeemed.
type Locker interface {
	Acquire(ctx context.Context, reference int64) (ReleaseFunc, error)
}

// KeyedMutex is the in-process Locker for single-worker deployments. Waiters
// block until the holder releases or their context ends.
type KeyedMutex struct {
	mu   sync.Mutex
	keys map[int64]chan struct{}
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{keys: make(map[int64]chan struct{})}
}

func (m *KeyedMutex) Acquire(ctx context.Context, reference int64) (ReleaseFunc, error) {
	m.mu.Lock()
	ch, ok := m.keys[reference]
	if !ok {
		ch = make(chan struct{}, 1)
		m.keys[reference] = ch
	}
	m.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RedisLocker serializes redemptions across workers with a SET NX lock keyed
// by reference. A held lock fails fast with sentinel.ErrConflict rather than
// queueing; the TTL bounds how long a crashed worker can pin a reference.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, reference int64) (ReleaseFunc, error) {
	key := fmt.Sprintf("vouchsafe:redeem:%d", reference)

	acquired, err := l.client.SetNX(ctx, key, "1", l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redemption lock: %w", sentinel.ErrUnavailable)
	}
	if !acquired {
		return nil, sentinel.ErrConflict
	}
	return func() {
		// Release outlives the request context on purpose.
		l.client.Del(context.Background(), key)
	}, nil
}
