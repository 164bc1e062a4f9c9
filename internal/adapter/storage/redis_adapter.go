package storage

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/invsnap/internal/core/domain"
)

const (
	syncLockKeyPrefix = "synclock:"
	summaryKeyPrefix  = "summary:"
	defaultLockTTL    = 5 * time.Minute
)

// Deletes the lock only if it still carries our token, so an expired lock
// taken over by another process is left alone.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisAdapter struct {
	client  *redis.Client
	lockTTL time.Duration

	mu     sync.Mutex
	tokens map[domain.Marketplace]string
}

func NewRedisAdapter(client *redis.Client, lockTTL time.Duration) *RedisAdapter {
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &RedisAdapter{
		client:  client,
		lockTTL: lockTTL,
		tokens:  make(map[domain.Marketplace]string),
	}
}

func (r *RedisAdapter) AcquireSyncLock(ctx context.Context, marketplace domain.Marketplace) (bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, syncLockKeyPrefix+string(marketplace), token, r.lockTTL).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	r.mu.Lock()
	r.tokens[marketplace] = token
	r.mu.Unlock()
	return true, nil
}

func (r *RedisAdapter) ReleaseSyncLock(ctx context.Context, marketplace domain.Marketplace) error {
	r.mu.Lock()
	token, ok := r.tokens[marketplace]
	delete(r.tokens, marketplace)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return releaseLockScript.Run(ctx, r.client, []string{syncLockKeyPrefix + string(marketplace)}, token).Err()
}

func (r *RedisAdapter) SetLastSummary(ctx context.Context, snap domain.Snapshot) error {
	return r.client.HSet(ctx, summaryKeyPrefix+string(snap.Marketplace),
		"top_date", snap.Orders.TopDate,
		"top_date_count", snap.Orders.TopDateCount,
		"order_count", snap.Orders.OrderCount,
		"snapshot_id", snap.ID.String(),
		"taken_at", snap.TakenAt.Unix(),
	).Err()
}

func (r *RedisAdapter) GetLastSummary(ctx context.Context, marketplace domain.Marketplace) (*domain.OrderSummary, error) {
	fields, err := r.client.HGetAll(ctx, summaryKeyPrefix+string(marketplace)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	var s domain.OrderSummary
	s.TopDate, _ = strconv.ParseInt(fields["top_date"], 10, 64)
	s.TopDateCount, _ = strconv.Atoi(fields["top_date_count"])
	s.OrderCount, _ = strconv.Atoi(fields["order_count"])
	return &s, nil
}
