package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yasef05/video-downloader-backend/internal/model"
)

const jobKeyPrefix = "job:"

// RedisStore keeps job records in Redis so they survive process restarts.
// The single-writer contract still holds: only the owning runner updates a
// job, so the unlocked read-modify-write in Update cannot lose writes.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a store backed by the given Redis client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

// Create inserts a new job record.
func (r *RedisStore) Create(ctx context.Context, job *model.Job) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.UpdatedAt = job.CreatedAt

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job %s: %w", job.ID, err)
	}

	ok, err := r.rdb.SetNX(ctx, jobKey(job.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("storing job %s: %w", job.ID, err)
	}
	if !ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	return nil
}

// Get returns the job for the given identifier.
func (r *RedisStore) Get(ctx context.Context, id string) (*model.Job, error) {
	data, err := r.rdb.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decoding job %s: %w", id, err)
	}
	return &job, nil
}

// Update loads the job, applies mutate, and writes it back.
func (r *RedisStore) Update(ctx context.Context, id string, mutate func(*model.Job)) error {
	job, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	mutate(job)
	job.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job %s: %w", id, err)
	}
	return r.rdb.Set(ctx, jobKey(id), data, 0).Err()
}
