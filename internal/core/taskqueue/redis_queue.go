package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/markdave123-py/contexta-graph/internal/core"
	"github.com/markdave123-py/contexta-graph/internal/models"
)

var _ core.JobQueue = (*RedisQueue)(nil)

// promoteScript moves due members of the delayed set onto the ready list in
// score order, at most ARGV[2] per call.
var promoteScript = goredis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, m in ipairs(due) do
  redis.call('ZREM', KEYS[1], m)
  redis.call('LPUSH', KEYS[2], m)
end
return #due
`)

// RedisQueue is a FIFO list of ready messages plus a sorted set of delayed
// messages scored by their due time in unix milliseconds.
type RedisQueue struct {
	rdb     goredis.UniversalClient
	ready   string
	delayed string
}

func NewRedisQueue(rdb goredis.UniversalClient, name string) *RedisQueue {
	return &RedisQueue{
		rdb:     rdb,
		ready:   name + ":ready",
		delayed: name + ":delayed",
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, msg models.TaskMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, q.ready, raw).Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrQueueUnavailable, err)
	}
	return nil
}

func (q *RedisQueue) EnqueueDelayed(ctx context.Context, msg models.TaskMessage, delay time.Duration) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	due := time.Now().Add(delay).UnixMilli()
	if err := q.rdb.ZAdd(ctx, q.delayed, goredis.Z{Score: float64(due), Member: string(raw)}).Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrQueueUnavailable, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (*models.TaskMessage, error) {
	res, err := q.rdb.BRPop(ctx, wait, q.ready).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// res is [key, value].
	var msg models.TaskMessage
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		return nil, fmt.Errorf("decode task message: %w", err)
	}
	return &msg, nil
}

func (q *RedisQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	n, err := promoteScript.Run(ctx, q.rdb,
		[]string{q.delayed, q.ready},
		strconv.FormatInt(now.UnixMilli(), 10), 100,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("promote delayed: %w", err)
	}
	return n, nil
}

// Purge empties both the ready list and the delayed set atomically.
func (q *RedisQueue) Purge(ctx context.Context) ([]string, error) {
	var ready *goredis.StringSliceCmd
	var delayed *goredis.StringSliceCmd
	_, err := q.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		ready = pipe.LRange(ctx, q.ready, 0, -1)
		delayed = pipe.ZRange(ctx, q.delayed, 0, -1)
		pipe.Del(ctx, q.ready, q.delayed)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrQueueUnavailable, err)
	}

	var ids []string
	for _, raw := range append(ready.Val(), delayed.Val()...) {
		var msg models.TaskMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil || msg.JobID == "" {
			continue
		}
		ids = append(ids, msg.JobID)
	}
	return ids, nil
}

// Depth reports the number of ready and delayed messages.
func (q *RedisQueue) Depth(ctx context.Context) (ready int64, delayed int64, err error) {
	if ready, err = q.rdb.LLen(ctx, q.ready).Result(); err != nil {
		return 0, 0, err
	}
	if delayed, err = q.rdb.ZCard(ctx, q.delayed).Result(); err != nil {
		return 0, 0, err
	}
	return ready, delayed, nil
}
