package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const maxMergeAttempts = 5

// RedisKV stores each namespace as one hash, keyed "<prefix>:<namespace>".
type RedisKV struct {
	client *redis.Client
	prefix string
}

var _ KV = (*RedisKV)(nil)

func NewRedisKV(client *redis.Client, prefix string) *RedisKV {
	return &RedisKV{client: client, prefix: prefix}
}

func (r *RedisKV) key(ns Namespace) string {
	if r.prefix == "" {
		return string(ns)
	}
	return r.prefix + ":" + string(ns)
}

func (r *RedisKV) GetAll(ctx context.Context, ns Namespace) (map[string]json.RawMessage, error) {
	values, err := r.client.HGetAll(ctx, r.key(ns)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", ns, err)
	}
	out := make(map[string]json.RawMessage, len(values))
	for id, v := range values {
		out[id] = json.RawMessage(v)
	}
	return out, nil
}

func (r *RedisKV) SetAll(ctx context.Context, ns Namespace, values map[string]json.RawMessage) error {
	key := r.key(ns)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) == 0 {
			return nil
		}
		fields := make(map[string]any, len(values))
		for id, v := range values {
			fields[id] = string(v)
		}
		pipe.HSet(ctx, key, fields)
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace %s: %w", ns, err)
	}
	return nil
}

func (r *RedisKV) GetOne(ctx context.Context, ns Namespace, id string) (json.RawMessage, error) {
	v, err := r.client.HGet(ctx, r.key(ns), id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("hget %s/%s: %w", ns, id, err)
	}
	return json.RawMessage(v), nil
}

// MergeOne uses optimistic locking on the namespace hash and retries when another writer
// got in between.
func (r *RedisKV) MergeOne(ctx context.Context, ns Namespace, id string, value json.RawMessage) error {
	key := r.key(ns)
	txf := func(tx *redis.Tx) error {
		existing, err := tx.HGet(ctx, key, id).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		merged, err := mergeJSON(json.RawMessage(existing), value)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, string(merged))
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxMergeAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("merge %s/%s: %w", ns, id, err)
		}
		return nil
	}
	return fmt.Errorf("merge %s/%s: too much contention", ns, id)
}
