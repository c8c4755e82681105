package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/yevheniidehtiar/locust-love-django/internal/profiling"
)

// RedisBackend keeps recent reports in a capped list and indexes every
// finding under its own expiring key.
type RedisBackend struct {
	client *redis.Client
	key    string
	keep   int64
	ttl    time.Duration
}

// NewRedisBackend connects to url. key defaults to "smells:profiles".
func NewRedisBackend(url, key string, limit int, ttl time.Duration) (*RedisBackend, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisBackendClient(redis.NewClient(opt), key, limit, ttl), nil
}

// NewRedisBackendClient wraps an existing client.
func NewRedisBackendClient(client *redis.Client, key string, limit int, ttl time.Duration) *RedisBackend {
	if key == "" {
		key = "smells:profiles"
	}
	if limit <= 0 {
		limit = DefaultCap
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisBackend{client: client, key: key, keep: int64(limit), ttl: ttl}
}

func (r *RedisBackend) findingKey(id string) string {
	return r.key + ":finding:" + id
}

func (r *RedisBackend) Save(ctx context.Context, rep profiling.Report) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, r.key, data)
		pipe.LTrim(ctx, r.key, -r.keep, -1)
		for _, f := range rep.Findings {
			pipe.Set(ctx, r.findingKey(f.ID), data, r.ttl)
		}
		return nil
	})
	return err
}

func (r *RedisBackend) Get(ctx context.Context, findingID string) (profiling.Report, profiling.Finding, error) {
	val, err := r.client.Get(ctx, r.findingKey(findingID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return profiling.Report{}, profiling.Finding{}, ErrNotFound
	}
	if err != nil {
		return profiling.Report{}, profiling.Finding{}, err
	}
	var rep profiling.Report
	if err := json.Unmarshal(val, &rep); err != nil {
		return profiling.Report{}, profiling.Finding{}, err
	}
	return find([]profiling.Report{rep}, findingID)
}

func (r *RedisBackend) load(ctx context.Context, start int64) ([]profiling.Report, error) {
	vals, err := r.client.LRange(ctx, r.key, start, -1).Result()
	if err != nil {
		return nil, err
	}
	items := make([]profiling.Report, 0, len(vals))
	for _, v := range vals {
		var rep profiling.Report
		if err := json.Unmarshal([]byte(v), &rep); err == nil {
			items = append(items, rep)
		}
	}
	return items, nil
}

func (r *RedisBackend) List(ctx context.Context, limit int) ([]profiling.Report, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	items, err := r.load(ctx, start)
	if err != nil {
		return nil, err
	}
	return newest(items, limit), nil
}

// Clear drops the list and every finding key.
func (r *RedisBackend) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.findingKey("*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	keys = append(keys, r.key)
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisBackend) Stats(ctx context.Context) (Stats, error) {
	items, err := r.load(ctx, 0)
	if err != nil {
		return Stats{}, err
	}
	return summarize("redis", items, time.Now()), nil
}

// Close releases the client.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
