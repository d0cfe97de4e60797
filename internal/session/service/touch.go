package service

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TouchLimiter decides whether an implicit activity touch should be written now.
// Allow returns true at most once per interval for a given session.
type TouchLimiter interface {
	Allow(ctx context.Context, sessionID string) (bool, error)
}

// RedisTouchLimiter shares the throttle window across server replicas with SET NX PX.
type RedisTouchLimiter struct {
	client   redis.UniversalClient
	prefix   string
	interval time.Duration
}

// NewRedisTouchLimiter returns a limiter keyed under prefix. A non-positive interval allows every touch.
func NewRedisTouchLimiter(client redis.UniversalClient, prefix string, interval time.Duration) *RedisTouchLimiter {
	if prefix == "" {
		prefix = "fieldsales:session:touch:"
	}
	return &RedisTouchLimiter{client: client, prefix: prefix, interval: interval}
}

func (l *RedisTouchLimiter) Allow(ctx context.Context, sessionID string) (bool, error) {
	if l.interval <= 0 {
		return true, nil
	}
	return l.client.SetNX(ctx, l.prefix+sessionID, 1, l.interval).Result()
}

// LocalTouchLimiter is the single-process fallback used when Redis is not configured.
type LocalTouchLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     map[string]time.Time
	now      func() time.Time
}

func NewLocalTouchLimiter(interval time.Duration) *LocalTouchLimiter {
	return &LocalTouchLimiter{interval: interval, next: make(map[string]time.Time), now: time.Now}
}

func (l *LocalTouchLimiter) Allow(_ context.Context, sessionID string) (bool, error) {
	if l.interval <= 0 {
		return true, nil
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if until, ok := l.next[sessionID]; ok && now.Before(until) {
		return false, nil
	}
	l.next[sessionID] = now.Add(l.interval)
	if len(l.next) > 4096 {
		for id, until := range l.next {
			if !now.Before(until) {
				delete(l.next, id)
			}
		}
	}
	return true, nil
}
