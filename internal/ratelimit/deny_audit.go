package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sellora/internal/config"
)

const (
	keyDenyAuditOrg       = "authz:deny:org:%s"
	keyDenyAuditPrincipal = "authz:deny:principal:%s"
	keyMemberTransferLock = "org:member:transfer:%s:%s"
)

const defaultTransferLockTTL = 15 * time.Second

// DenyAuditLimiter bounds how fast denial audit rows are written. A scripted
// scan of a tenant can emit thousands of denials per second; the decisions
// themselves stay untouched, only the audit fan-out is shed.
type DenyAuditLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	orgRate  float64
	orgBurst int
	lockTTL  time.Duration
}

// NewRedisClient builds the shared redis client, or nil when unconfigured.
func NewRedisClient(cfg config.Config) *redis.Client {
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})
}

func NewDenyAuditLimiter(cfg config.Config, client *redis.Client) (*DenyAuditLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if client == nil {
		return nil, errors.New("rate limit requires redis")
	}
	if limitCfg.DenyAuditRate <= 0 || limitCfg.DenyAuditBurst <= 0 {
		return nil, errors.New("deny audit rate limit must be positive")
	}

	return &DenyAuditLimiter{
		enabled:  true,
		bucket:   NewTokenBucket(client),
		locker:   NewLocker(client),
		orgRate:  limitCfg.DenyAuditRate,
		orgBurst: limitCfg.DenyAuditBurst,
		lockTTL:  defaultTransferLockTTL,
	}, nil
}

func (l *DenyAuditLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowOrg reports whether another denial may be audited for the org.
func (l *DenyAuditLimiter) AllowOrg(ctx context.Context, orgID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyDenyAuditOrg, strings.TrimSpace(orgID)), l.orgRate, l.orgBurst)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

// AllowPrincipal applies a tighter per-user bucket inside the org bucket so
// one noisy user cannot exhaust the whole org budget.
func (l *DenyAuditLimiter) AllowPrincipal(ctx context.Context, userID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	rate := l.orgRate / 4
	if rate <= 0 {
		rate = l.orgRate
	}
	burst := l.orgBurst / 4
	if burst <= 0 {
		burst = 1
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyDenyAuditPrincipal, strings.TrimSpace(userID)), rate, burst)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

// TryLockTransfer serializes membership moves for one user within an org.
// With redis disabled it reports success with a nil lock, whose Release is a
// no-op.
func (l *DenyAuditLimiter) TryLockTransfer(ctx context.Context, orgID, userID string) (*Lock, bool, error) {
	if !l.Enabled() {
		return nil, true, nil
	}
	key := fmt.Sprintf(keyMemberTransferLock, strings.TrimSpace(orgID), strings.TrimSpace(userID))
	return l.locker.Acquire(ctx, key, l.lockTTL)
}
