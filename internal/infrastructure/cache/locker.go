package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker grants short exclusive leases on a key.
type Locker interface {
	// TryLock returns a release function when the lease was acquired.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// PaymentLockKey is the lease key for work on one gateway id. Webhook
// processing and synchronous capture share it.
func PaymentLockKey(gatewayID string) string {
	return "payment:lock:" + gatewayID
}

// Deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type redisLocker struct {
	client redis.UniversalClient
}

// NewRedisLocker creates a Locker backed by SET NX
func NewRedisLocker(client redis.UniversalClient) Locker {
	return &redisLocker{client: client}
}

func (l *redisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// The caller context may already be done
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}

type localLease struct {
	token   uint64
	expires time.Time
}

// localLocker holds leases in process memory. It serializes one replica only.
type localLocker struct {
	mu     sync.Mutex
	next   uint64
	leases map[string]localLease
	now    func() time.Time
}

// NewLocalLocker returns a Locker for deployments without redis.
func NewLocalLocker() Locker {
	return &localLocker{
		leases: make(map[string]localLease),
		now:    time.Now,
	}
}

func (l *localLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if lease, ok := l.leases[key]; ok && now.Before(lease.expires) {
		return nil, false, nil
	}

	l.next++
	token := l.next
	l.leases[key] = localLease{token: token, expires: now.Add(ttl)}

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if lease, ok := l.leases[key]; ok && lease.token == token {
			delete(l.leases, key)
		}
	}
	return release, true, nil
}
