package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	app "ortho-mapper/internal/application"
)

// RedisQueue pushes run jobs onto a Redis list.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

// Enqueue stores the request and returns the run ID it will execute under.
func (q *RedisQueue) Enqueue(ctx context.Context, req app.RunRequest) (string, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	data, err := encodeJob(RunJob{
		ID:        id,
		InputDir:  req.InputDir,
		Label:     req.Label,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue run %s: %w", id, err)
	}
	return id, nil
}

// Len returns the number of waiting jobs.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
