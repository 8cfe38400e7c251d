package ingestion_engine

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"

	"github.com/markdave123-py/contexta-graph/internal/logger"
)

// Admission bounds the number of ingestion jobs executing at once.
// TryAcquire never blocks: ok=false means the bound is saturated and the
// caller should requeue. release is safe to call more than once.
type Admission interface {
	TryAcquire(ctx context.Context, jobID string) (release func(), ok bool, err error)
	// InFlight reports how many jobs currently hold a slot.
	InFlight(ctx context.Context) (int64, error)
}

// LocalAdmission caps concurrent jobs inside one worker process.
type LocalAdmission struct {
	sem  *semaphore.Weighted
	held atomic.Int64
}

func NewLocalAdmission(max int) *LocalAdmission {
	if max < 1 {
		max = 1
	}
	return &LocalAdmission{sem: semaphore.NewWeighted(int64(max))}
}

func (a *LocalAdmission) TryAcquire(_ context.Context, _ string) (func(), bool, error) {
	if !a.sem.TryAcquire(1) {
		return nil, false, nil
	}
	a.held.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			a.held.Add(-1)
			a.sem.Release(1)
		})
	}, true, nil
}

func (a *LocalAdmission) InFlight(context.Context) (int64, error) {
	return a.held.Load(), nil
}

// acquireScript holds one lease per job in a sorted set scored by expiry.
// Expired leases are dropped first so a crashed worker cannot leak a slot.
var acquireScript = goredis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
if redis.call('ZSCORE', KEYS[1], ARGV[3]) then
  redis.call('ZADD', KEYS[1], ARGV[2], ARGV[3])
  return 1
end
if redis.call('ZCARD', KEYS[1]) < tonumber(ARGV[4]) then
  redis.call('ZADD', KEYS[1], ARGV[2], ARGV[3])
  return 1
end
return 0
`)

// SharedAdmission caps concurrent jobs across every worker sharing the
// Redis instance.
type SharedAdmission struct {
	rdb      goredis.UniversalClient
	key      string
	max      int
	leaseTTL time.Duration
	log      *logger.Logger
}

func NewSharedAdmission(rdb goredis.UniversalClient, key string, max int, leaseTTL time.Duration, log *logger.Logger) *SharedAdmission {
	if max < 1 {
		max = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SharedAdmission{rdb: rdb, key: key, max: max, leaseTTL: leaseTTL, log: log.With("component", "SharedAdmission")}
}

func (a *SharedAdmission) TryAcquire(ctx context.Context, jobID string) (func(), bool, error) {
	now := time.Now()
	ok, err := acquireScript.Run(ctx, a.rdb, []string{a.key},
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(now.Add(a.leaseTTL).UnixMilli(), 10),
		jobID,
		a.max,
	).Int()
	if err != nil {
		return nil, false, fmt.Errorf("admission acquire: %w", err)
	}
	if ok != 1 {
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := a.rdb.ZRem(relCtx, a.key, jobID).Err(); err != nil {
				// The slot stays taken until the lease expires.
				a.log.Warn("Admission lease release failed", "job_id", jobID, "lease_ttl", a.leaseTTL, "error", err)
			}
		})
	}
	return release, true, nil
}

// InFlight reports the number of unexpired leases.
func (a *SharedAdmission) InFlight(ctx context.Context) (int64, error) {
	return a.rdb.ZCount(ctx, a.key, strconv.FormatInt(time.Now().UnixMilli(), 10), "+inf").Result()
}

var (
	_ Admission = (*LocalAdmission)(nil)
	_ Admission = (*SharedAdmission)(nil)
)
