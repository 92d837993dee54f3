package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker serializes fold-and-write per recipient email. Two concurrent
// requests from the same not-yet-synced agent would otherwise both read the
// same ledger rows and race their merged metadata writes.
type Locker interface {
	Acquire(ctx context.Context, email string) (func(), error)
}

const (
	lockTTL     = 30 * time.Second
	lockBackoff = 50 * time.Millisecond
)

// RedisLocker takes a per-email advisory lock via SET NX with a TTL, so a
// crashed holder cannot wedge a recipient forever.
type RedisLocker struct {
	Client *redis.Client
}

func (l *RedisLocker) Acquire(ctx context.Context, email string) (func(), error) {
	key := "reconcile_lock:" + strings.ToLower(email)
	for {
		ok, err := l.Client.SetNX(ctx, key, 1, lockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() { l.Client.Del(context.Background(), key) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockBackoff):
		}
	}
}

// LocalLocker is the single-process fallback used when redis is not
// configured (and in tests). It only serializes within one process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) Acquire(ctx context.Context, email string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[strings.ToLower(email)]
	if !ok {
		m = &sync.Mutex{}
		l.locks[strings.ToLower(email)] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock, nil
}
