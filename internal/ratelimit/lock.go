package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Compare-and-delete so a lease that expired mid-section can never release
// the next holder's lock.
const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker hands out single-holder leases over redis.
type Locker struct {
	client  *redis.Client
	release *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client:  client,
		release: redis.NewScript(lockReleaseScript),
	}
}

// Lock is one acquired lease. Release is safe on a nil lock, which is what
// acquisition hands back when locking is disabled.
type Lock struct {
	locker *Locker
	key    string
	token  string
}

// Acquire takes the lease or reports it held elsewhere. The ttl bounds how
// long a crashed holder can block everyone else.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, bool, error) {
	if l == nil || l.client == nil {
		return nil, false, errors.New("lock client not configured")
	}
	if key == "" {
		return nil, false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return nil, false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{locker: l, key: key, token: token}, true, nil
}

// Release drops the lease if this holder still owns it.
func (lk *Lock) Release(ctx context.Context) error {
	if lk == nil || lk.locker == nil {
		return nil
	}
	return lk.locker.release.Run(ctx, lk.locker.client, []string{lk.key}, lk.token).Err()
}
