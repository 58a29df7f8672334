package subscriber

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey holds the subscriber set.
const DefaultRedisKey = "signalsentinel:subscribers"

// RedisStore keeps subscribers in a Redis set.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(addr, password string, db int, key string) (*RedisStore, error) {
	if key == "" {
		key = DefaultRedisKey
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client, key: key}, nil
}

func (r *RedisStore) Add(ctx context.Context, chatID int64) error {
	return r.client.SAdd(ctx, r.key, chatID).Err()
}

func (r *RedisStore) Remove(ctx context.Context, chatID int64) error {
	return r.client.SRem(ctx, r.key, chatID).Err()
}

func (r *RedisStore) Load(ctx context.Context) ([]int64, error) {
	members, err := r.client.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	return parseMembers(members)
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func parseMembers(members []string) ([]int64, error) {
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse subscriber %q: %w", m, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
