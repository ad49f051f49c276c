package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "haulharbor"

type RedisTotalsCache struct {
	client *redis.Client
}

func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisTotalsCache(client *redis.Client) *RedisTotalsCache {
	return &RedisTotalsCache{client: client}
}

func (c *RedisTotalsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisTotalsCache) Close() error {
	return c.client.Close()
}

func (c *RedisTotalsCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisTotalsCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+":"+key, payload, ttl).Err()
}

func (c *RedisTotalsCache) Generation(ctx context.Context, accountID string) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(accountID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisTotalsCache) Bump(ctx context.Context, accountID string) error {
	return c.client.Incr(ctx, generationKey(accountID)).Err()
}

func generationKey(accountID string) string {
	return fmt.Sprintf("%s:gen:%s", keyPrefix, accountID)
}
