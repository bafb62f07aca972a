package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const lockKey = "ticketsync:pass_lock"

// Lock is a SetNX-based single-flight guard for the manual sync trigger.
// With more than one replica behind the same Redis, only one pass runs at
// a time; the TTL makes sure a crashed holder cannot wedge the trigger.
type Lock struct {
	Client *redis.Client
	Holder string
}

func NewLock(client *redis.Client, holder string) *Lock {
	return &Lock{Client: client, Holder: holder}
}

// getLockTTL returns the pass lock TTL from the environment or the default.
func (l *Lock) getLockTTL() time.Duration {
	defaultTTL := 10 * time.Minute

	ttlStr := os.Getenv("SYNC_LOCK_TTL_MINUTES")
	if ttlStr == "" {
		return defaultTTL
	}

	ttlMin, err := strconv.Atoi(ttlStr)
	if err != nil || ttlMin <= 0 {
		return defaultTTL
	}
	return time.Duration(ttlMin) * time.Minute
}

// Acquire claims the pass lock. Returns false without error when another
// holder has it.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.Client.SetNX(ctx, lockKey, l.Holder, l.getLockTTL()).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire pass lock: %w", err)
	}
	return ok, nil
}

// Release drops the pass lock, but only if this holder still owns it; a
// lock that expired and was re-acquired elsewhere is left alone.
func (l *Lock) Release(ctx context.Context) error {
	val, err := l.Client.Get(ctx, lockKey).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val == l.Holder {
		_, err := l.Client.Del(ctx, lockKey).Result()
		return err
	}
	return nil
}
