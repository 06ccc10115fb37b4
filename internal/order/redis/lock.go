package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-checkout/internal/logger"
)

const (
	lockPrefix     = "payment_lock:"
	defaultLockTTL = 30 * time.Second
)

// Redis guards a purchase while its payment is in flight so a concurrent
// retry does not reach the gateway twice. The database state transition is
// still the source of truth.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Redis{Client: client, TTL: ttl, Logger: log}
}

func lockKey(purchaseID string) string {
	return lockPrefix + purchaseID
}

// LockPurchase takes the lock for owner. It reports false when someone else
// already holds it.
func (r *Redis) LockPurchase(ctx context.Context, purchaseID, owner string) (bool, error) {
	ok, err := r.Client.SetNX(ctx, lockKey(purchaseID), owner, r.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("lock purchase %s: %w", purchaseID, err)
	}
	if !ok {
		r.Logger.Debug("REDIS", fmt.Sprintf("Payment lock for %s is already held", purchaseID))
	}
	return ok, nil
}

// unlockScript deletes the key only while it still holds the caller's
// owner token, so an expired lock re-taken by another attempt survives.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// UnlockPurchase releases the lock only if owner still holds it.
func (r *Redis) UnlockPurchase(ctx context.Context, purchaseID, owner string) error {
	key := lockKey(purchaseID)
	n, err := unlockScript.Run(ctx, r.Client, []string{key}, owner).Int()
	if err != nil {
		return fmt.Errorf("unlock %s: %w", key, err)
	}
	if n == 0 {
		r.Logger.Debug("REDIS", fmt.Sprintf("Payment lock for %s was not held by %s", purchaseID, owner))
	}
	return nil
}

// IsLocked reports whether a payment is currently in flight for purchaseID.
func (r *Redis) IsLocked(ctx context.Context, purchaseID string) (bool, error) {
	_, err := r.Client.Get(ctx, lockKey(purchaseID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
