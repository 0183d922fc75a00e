package tenancy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/frahmantamala/evaluation-sync/internal"
)

// Locker grants one exclusive holder per tenant. Acquire never waits: a
// held lock fails with SYNC_IN_PROGRESS.
type Locker interface {
	Acquire(ctx context.Context, tenantID string) (release func(), err error)
}

// LocalLocker serialises tenants within one process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker returns a locker valid within one process.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// Acquire fails with SYNC_IN_PROGRESS while tenantID is held.
func (l *LocalLocker) Acquire(_ context.Context, tenantID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[tenantID]; busy {
		return nil, internal.ErrSyncInProgress.WithMessage("a reconciliation is already running for tenant %s", tenantID)
	}
	l.held[tenantID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, tenantID)
			l.mu.Unlock()
		})
	}, nil
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

var extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)

// RedisLocker is a lease shared by every worker process. The lease expires
// after ttl so a crashed holder cannot block a tenant forever; a live holder
// extends it every ttl/3 until release.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisLocker returns a locker shared by every process using client.
func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{
		client: client,
		prefix: "evaluation-sync:lock:",
		ttl:    ttl,
		logger: logger,
	}
}

// Acquire takes the lease for tenantID or fails with SYNC_IN_PROGRESS.
func (l *RedisLocker) Acquire(ctx context.Context, tenantID string) (func(), error) {
	key := l.prefix + tenantID
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire tenant lock: %w", err)
	}
	if !ok {
		return nil, internal.ErrSyncInProgress.WithMessage("a reconciliation is already running for tenant %s", tenantID)
	}

	renewCtx, stopRenewal := context.WithCancel(context.Background())
	renewed := make(chan struct{})
	go l.keepAlive(renewCtx, renewed, key, token, tenantID)

	var once sync.Once
	return func() {
		once.Do(func() {
			stopRenewal()
			<-renewed

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				l.logger.Warn("failed to release tenant lock, lease will expire",
					"tenant_id", tenantID,
					"ttl", l.ttl,
					"error", err)
			}
		})
	}, nil
}

// keepAlive extends the lease while it is still ours. It stops when ctx is
// cancelled or the lease turns out to be lost.
func (l *RedisLocker) keepAlive(ctx context.Context, done chan<- struct{}, key, token, tenantID string) {
	defer close(done)

	interval := l.ttl / 3
	if interval <= 0 {
		interval = l.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			extended, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Warn("failed to extend tenant lock", "tenant_id", tenantID, "error", err)
				continue
			}
			if extended == 0 {
				l.logger.Error("tenant lock lease lost while running", "tenant_id", tenantID, "ttl", l.ttl)
				return
			}
		}
	}
}
