package gojob

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	queueredis "github.com/goliatone/go-job/queue/adapters/redis"
	"github.com/redis/go-redis/v9"
)

// QueueName namespaces the checkout job keys in Redis.
const QueueName = "checkout:jobs"

// NewRedisQueue returns a durable go-job queue backed by client.
func NewRedisQueue(client redis.UniversalClient, opts ...queueredis.Option) (*queueredis.Adapter, error) {
	if client == nil {
		return nil, fmt.Errorf("gojob: redis client is required")
	}
	opts = append([]queueredis.Option{queueredis.WithQueueName(QueueName)}, opts...)
	return queueredis.NewAdapter(queueredis.NewStorage(redisClient{client: client}, opts...)), nil
}

// redisClient binds go-redis to the client contract of the go-job redis
// storage. Missing keys read as empty values.
type redisClient struct {
	client redis.UniversalClient
}

func (c redisClient) HSet(ctx context.Context, key string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	args := make([]any, 0, len(values)*2)
	for field, value := range values {
		args = append(args, field, value)
	}
	return c.client.HSet(ctx, key, args...).Err()
}

func (c redisClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.client.HGetAll(ctx, key).Result()
}

func (c redisClient) HGet(ctx context.Context, key, field string) (string, error) {
	return emptyOnNil(c.client.HGet(ctx, key, field).Result())
}

func (c redisClient) HDel(ctx context.Context, key string, fields ...string) error {
	return c.client.HDel(ctx, key, fields...).Err()
}

func (c redisClient) LPush(ctx context.Context, key string, values ...string) error {
	return c.client.LPush(ctx, key, toArgs(values)...).Err()
}

func (c redisClient) RPop(ctx context.Context, key string) (string, error) {
	return emptyOnNil(c.client.RPop(ctx, key).Result())
}

func (c redisClient) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return c.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (c redisClient) ZRem(ctx context.Context, key string, members ...string) error {
	return c.client.ZRem(ctx, key, toArgs(members)...).Err()
}

func (c redisClient) ZRangeByScore(ctx context.Context, key string, max float64, limit int64) ([]queueredis.ZItem, error) {
	entries, err := c.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(max, 'f', -1, 64),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]queueredis.ZItem, 0, len(entries))
	for _, entry := range entries {
		out = append(out, queueredis.ZItem{Member: fmt.Sprint(entry.Member), Score: entry.Score})
	}
	return out, nil
}

func (c redisClient) Eval(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	out, err := c.client.Eval(ctx, script, keys, args...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return out, err
}

func (c redisClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

func (c redisClient) Del(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

func emptyOnNil(value string, err error) (string, error) {
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return value, err
}

func toArgs(values []string) []any {
	out := make([]any, len(values))
	for i, value := range values {
		out[i] = value
	}
	return out
}

var _ queueredis.Client = redisClient{}
