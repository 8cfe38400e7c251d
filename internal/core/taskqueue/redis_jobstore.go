package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/markdave123-py/contexta-graph/internal/core"
	"github.com/markdave123-py/contexta-graph/internal/models"
)

var _ core.JobStore = (*RedisJobStore)(nil)

const maxWatchRetries = 10

// RedisJobStore keeps each job as a JSON document and its terminal result
// under a separate key. Updates are optimistic WATCH/MULTI transactions.
type RedisJobStore struct {
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisJobStore(rdb goredis.UniversalClient, prefix string, ttl time.Duration) *RedisJobStore {
	return &RedisJobStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisJobStore) jobKey(id string) string    { return s.prefix + ":job:" + id }
func (s *RedisJobStore) resultKey(id string) string { return s.prefix + ":result:" + id }

func (s *RedisJobStore) CreateJob(ctx context.Context, job *models.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("%w: job id required", models.ErrInvalidInput)
	}
	now := time.Now().UTC()
	if job.Status == "" {
		job.Status = models.StatusPending
	}
	job.CreatedAt, job.UpdatedAt = now, now
	if len(job.History) == 0 {
		job.History = []models.JobEvent{{Status: job.Status, Note: "queued", At: now}}
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, s.jobKey(job.ID), raw, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: job %s already exists", models.ErrInvalidInput, job.ID)
	}
	return nil
}

func (s *RedisJobStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	raw, err := s.rdb.Get(ctx, s.jobKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, models.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	var job models.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (s *RedisJobStore) UpdateStatus(ctx context.Context, id string, to models.JobStatus, meta models.JobMeta, note string) error {
	return s.mutate(ctx, id, func(job *models.Job) error {
		if err := models.ValidateTransition(job.Status, to); err != nil {
			return err
		}
		job.Status = to
		job.Meta = meta
		job.History = append(job.History, models.JobEvent{Status: to, Note: note, At: time.Now().UTC()})
		return nil
	}, nil)
}

func (s *RedisJobStore) Requeue(ctx context.Context, id string, note string) (int, error) {
	var count int
	err := s.mutate(ctx, id, func(job *models.Job) error {
		if err := models.ValidateTransition(job.Status, models.StatusPending); err != nil {
			return err
		}
		job.Status = models.StatusPending
		job.Requeues++
		count = job.Requeues
		job.History = append(job.History, models.JobEvent{Status: models.StatusPending, Note: note, At: time.Now().UTC()})
		return nil
	}, nil)
	return count, err
}

func (s *RedisJobStore) Finish(ctx context.Context, id string, to models.JobStatus, result *models.JobResult, detail string) error {
	if !to.IsTerminal() {
		return fmt.Errorf("%w: %s is not terminal", models.ErrInvalidTransition, to)
	}
	var rawResult []byte
	if result != nil {
		var err error
		if rawResult, err = json.Marshal(result); err != nil {
			return err
		}
	}
	return s.mutate(ctx, id, func(job *models.Job) error {
		if err := models.ValidateTransition(job.Status, to); err != nil {
			return err
		}
		job.Status = to
		job.Error = detail
		job.History = append(job.History, models.JobEvent{Status: to, Note: detail, At: time.Now().UTC()})
		return nil
	}, func(pipe goredis.Pipeliner) {
		if rawResult != nil {
			pipe.Set(ctx, s.resultKey(id), rawResult, s.ttl)
		}
	})
}

func (s *RedisJobStore) GetResult(ctx context.Context, id string) (*models.JobResult, error) {
	raw, err := s.rdb.Get(ctx, s.resultKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var res models.JobResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", id, err)
	}
	return &res, nil
}

// mutate applies fn to the stored job inside a WATCH transaction and retries
// when another writer got there first.
func (s *RedisJobStore) mutate(ctx context.Context, id string, fn func(*models.Job) error, extra func(goredis.Pipeliner)) error {
	key := s.jobKey(id)
	txf := func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return models.ErrJobNotFound
		}
		if err != nil {
			return err
		}
		var job models.Job
		if err := json.Unmarshal(raw, &job); err != nil {
			return fmt.Errorf("decode job %s: %w", id, err)
		}
		if err := fn(&job); err != nil {
			return err
		}
		job.UpdatedAt = time.Now().UTC()
		updated, err := json.Marshal(job)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, updated, s.ttl)
			if extra != nil {
				extra(pipe)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("job %s: too many concurrent updates", id)
}
