package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stemsi/exstem-results/internal/config"
)

// releaseUnlockScript deletes the lock only if it still holds our token.
var releaseUnlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisReleaseLock keeps concurrent auto-releases of one exam from overlapping.
type RedisReleaseLock struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisReleaseLock creates a new RedisReleaseLock. The lock expires on its
// own after ttl if its holder dies.
func NewRedisReleaseLock(rdb *redis.Client, ttl time.Duration) *RedisReleaseLock {
	return &RedisReleaseLock{rdb: rdb, ttl: ttl}
}

// TryLock acquires the exam's release lock without waiting.
func (l *RedisReleaseLock) TryLock(ctx context.Context, examID uuid.UUID) (func(), bool, error) {
	key := config.CacheKey.ExamReleaseLockKey(examID.String())
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseUnlockScript.Run(ctx, l.rdb, []string{key}, token).Err()
	}
	return unlock, true, nil
}
