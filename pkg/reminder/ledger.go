package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// DefaultLedgerTTL bounds how long a sent reminder is remembered.
const DefaultLedgerTTL = 30 * 24 * time.Hour

// Ledger remembers which reminders were already sent.
type Ledger interface {
	// Claim records key and reports whether this call was the first.
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets key so a later run can claim it again.
	Release(ctx context.Context, key string) error
	Close() error
}

// MemoryLedger is a process-local Ledger.
type MemoryLedger struct {
	mu    sync.Mutex
	seen  map[string]time.Time
	ttl   time.Duration
	clock clockwork.Clock
}

func NewMemoryLedger(ttl time.Duration, clock clockwork.Clock) *MemoryLedger {
	if ttl <= 0 {
		ttl = DefaultLedgerTTL
	}

	return &MemoryLedger{
		seen:  make(map[string]time.Time),
		ttl:   ttl,
		clock: clock,
	}
}

func (l *MemoryLedger) Claim(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	if expires, ok := l.seen[key]; ok && now.Before(expires) {
		return false, nil
	}

	l.seen[key] = now.Add(l.ttl)

	return true, nil
}

func (l *MemoryLedger) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.seen, key)

	return nil
}

func (l *MemoryLedger) Close() error {
	return nil
}

// RedisLedger shares the ledger between replicas with SETNX.
type RedisLedger struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisLedger connects to the Redis server at rawURL (redis://host:port/db).
func NewRedisLedger(ctx context.Context, rawURL string, ttl time.Duration) (*RedisLedger, error) {
	options, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisLedgerWithClient(client, ttl), nil
}

func NewRedisLedgerWithClient(client redis.UniversalClient, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = DefaultLedgerTTL
	}

	return &RedisLedger{client: client, prefix: "clubflow:reminder:", ttl: ttl}
}

func (l *RedisLedger) Claim(ctx context.Context, key string) (bool, error) {
	claimed, err := l.client.SetNX(ctx, l.prefix+key, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder %s: %w", key, err)
	}

	return claimed, nil
}

func (l *RedisLedger) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release reminder %s: %w", key, err)
	}

	return nil
}

func (l *RedisLedger) Close() error {
	return l.client.Close()
}
