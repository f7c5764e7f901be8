package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces cursor keys.
const KeyPrefix = "carfeed:session:"

// RedisKV is the subset of *redis.Client the cursor store uses.
type RedisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCursors stores cursors as JSON values that expire after TTL of
// inactivity. A zero TTL keeps them forever.
type RedisCursors struct {
	kv  RedisKV
	ttl time.Duration
}

func NewRedisCursors(kv RedisKV, ttl time.Duration) *RedisCursors {
	return &RedisCursors{kv: kv, ttl: ttl}
}

func (r *RedisCursors) Load(ctx context.Context, session string) (Cursor, bool, error) {
	raw, err := r.kv.Get(ctx, KeyPrefix+session).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cursor{}, false, nil
	}
	if err != nil {
		return Cursor{}, false, err
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, false, fmt.Errorf("decode cursor: %w", err)
	}
	return c, true, nil
}

func (r *RedisCursors) Save(ctx context.Context, session string, c Cursor) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, KeyPrefix+session, raw, r.ttl).Err()
}

func (r *RedisCursors) Reset(ctx context.Context, session string) error {
	return r.kv.Del(ctx, KeyPrefix+session).Err()
}

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}
