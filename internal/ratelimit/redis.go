package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisTimeout = 100 * time.Millisecond

// Connect creates a Redis client from a redis:// URL and verifies connectivity.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// RedisCounter is an httprate.LimitCounter that shares window counts between
// server instances. While Redis is unreachable it counts in process memory.
type RedisCounter struct {
	rdb    *redis.Client
	prefix string
	log    *zap.Logger

	// Set once by httprate through Config.
	window   time.Duration
	fallback httprate.LimitCounter
}

var _ httprate.LimitCounter = (*RedisCounter)(nil)

// NewRedisCounter stores counts under "<prefix>:<window key>".
func NewRedisCounter(rdb *redis.Client, prefix string, log *zap.Logger) *RedisCounter {
	return &RedisCounter{rdb: rdb, prefix: prefix, log: log}
}

func (c *RedisCounter) Config(requestLimit int, windowLength time.Duration) {
	c.window = windowLength
	c.fallback = httprate.NewLocalLimitCounter(windowLength)
	c.fallback.Config(requestLimit, windowLength)
}

func (c *RedisCounter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

func (c *RedisCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	redisKey := c.key(key, currentWindow)
	pipe := c.rdb.TxPipeline()
	pipe.IncrBy(ctx, redisKey, int64(amount))
	// The count is read again as the previous window, so it must outlive the next one.
	pipe.PExpire(ctx, redisKey, 3*c.window)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("redis rate limit increment failed, counting locally", zap.String("prefix", c.prefix), zap.Error(err))
		return c.fallback.IncrementBy(key, currentWindow, amount)
	}
	return nil
}

func (c *RedisCounter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	values, err := c.rdb.MGet(ctx, c.key(key, currentWindow), c.key(key, previousWindow)).Result()
	if err != nil {
		c.log.Warn("redis rate limit read failed, counting locally", zap.String("prefix", c.prefix), zap.Error(err))
		return c.fallback.Get(key, currentWindow, previousWindow)
	}

	counts := make([]int, 2)
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid rate limit count %q: %w", s, err)
		}
		counts[i] = n
	}
	return counts[0], counts[1], nil
}

func (c *RedisCounter) key(key string, window time.Time) string {
	return fmt.Sprintf("%s:%d", c.prefix, httprate.LimitCounterKey(key, window))
}
