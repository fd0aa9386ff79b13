package cache

import (
	"context"
	"fmt"
	"time"

	"round-lottery/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	KeyRoundLock = "lock:%s"
	KeyRateLimit = "ratelimit:%s:%d"
)

type RedisService struct {
	client  *redis.Client
	lockTTL time.Duration
}

func NewRedisService(cfg config.RedisConfig) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}

	return &RedisService{
		client:  client,
		lockTTL: lockTTL,
	}, nil
}

// Client exposes the underlying connection for the notification sink
func (s *RedisService) Client() *redis.Client {
	return s.client
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

// releaseLockScript deletes the lock only while it still holds our token
var releaseLockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// Acquire takes the lock for key until release is called or the lock TTL
// passes. acquired is false when another holder has it.
func (s *RedisService) Acquire(ctx context.Context, key string) (func(), bool, error) {
	lockKey := fmt.Sprintf(KeyRoundLock, key)
	token := uuid.NewString()

	ok, err := s.client.SetNX(ctx, lockKey, token, s.lockTTL).Result()
	if err != nil {
		return func() {}, false, err
	}
	if !ok {
		return func() {}, false, nil
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		releaseLockScript.Run(releaseCtx, s.client, []string{lockKey}, token)
	}
	return release, true, nil
}

var rateLimitScript = redis.NewScript(`
	local count = redis.call("INCR", KEYS[1])
	if count == 1 then
		redis.call("PEXPIRE", KEYS[1], ARGV[1])
	end
	return count
`)

// Allow counts one hit for subject in the current window and reports
// whether it stays within limit
func (s *RedisService) Allow(ctx context.Context, subject string, limit int64, window time.Duration) (bool, error) {
	bucket := time.Now().UnixNano() / int64(window)
	key := fmt.Sprintf(KeyRateLimit, subject, bucket)

	count, err := rateLimitScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return count <= limit, nil
}
