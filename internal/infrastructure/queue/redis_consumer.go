package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	app "ortho-mapper/internal/application"
	"ortho-mapper/internal/domain/entity"
	"ortho-mapper/internal/logging"
)

// RunExecutor executes a dequeued run.
type RunExecutor interface {
	Execute(ctx context.Context, req app.RunRequest) (*entity.RunRecord, error)
}

// RedisConsumer pops run jobs from a Redis list and executes them.
type RedisConsumer struct {
	client      *redis.Client
	key         string
	executor    RunExecutor
	concurrency int
	pollTimeout time.Duration
	log         *logging.Logger
}

func NewRedisConsumer(client *redis.Client, key string, executor RunExecutor, concurrency int, log *logging.Logger) *RedisConsumer {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = logging.Discard()
	}
	return &RedisConsumer{
		client:      client,
		key:         key,
		executor:    executor,
		concurrency: concurrency,
		pollTimeout: 5 * time.Second,
		log:         log,
	}
}

// Run blocks until ctx is done and all in-flight jobs have finished.
func (c *RedisConsumer) Run(ctx context.Context) {
	c.log.Info("consumer started", "queue", c.key, "concurrency", c.concurrency)

	var wg sync.WaitGroup
	for i := 0; i < c.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.worker(ctx, id)
		}(i)
	}
	wg.Wait()

	c.log.Info("consumer stopped", "queue", c.key)
}

func (c *RedisConsumer) worker(ctx context.Context, id int) {
	for ctx.Err() == nil {
		res, err := c.client.BRPop(ctx, c.pollTimeout, c.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			c.log.Error("dequeue failed", "worker", id, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		// BRPOP returns [key, value]
		if len(res) != 2 {
			continue
		}
		c.handle(ctx, id, []byte(res[1]))
	}
}

func (c *RedisConsumer) handle(ctx context.Context, worker int, payload []byte) {
	job, err := decodeJob(payload)
	if err != nil {
		c.log.Error("dropping malformed job", "worker", worker, "error", err)
		return
	}
	record, err := c.executor.Execute(ctx, job.Request())
	if err != nil {
		c.log.Error("run failed", "worker", worker, "run_id", job.ID, "error", err)
		return
	}
	c.log.Info("run done", "worker", worker, "run_id", record.ID, "status", record.Status)
}
