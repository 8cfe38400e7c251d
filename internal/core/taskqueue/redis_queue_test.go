package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-graph/internal/models"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func msg(id string) models.TaskMessage {
	return models.TaskMessage{JobID: id, Request: models.IngestRequest{DocumentID: "doc-" + id, Text: "hello"}}
}

func TestRedisQueue_FIFO(t *testing.T) {
	_, rdb := newTestRedis(t)
	q := NewRedisQueue(rdb, "ingest")
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, msg("a")))
	require.NoError(t, q.Enqueue(ctx, msg("b")))

	got, err := q.Dequeue(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.JobID)
	assert.Equal(t, "doc-a", got.Request.DocumentID)

	got, err = q.Dequeue(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "b", got.JobID)
}

func TestRedisQueue_DequeueEmpty(t *testing.T) {
	_, rdb := newTestRedis(t)
	q := NewRedisQueue(rdb, "ingest")

	got, err := q.Dequeue(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisQueue_DelayedPromotion(t *testing.T) {
	_, rdb := newTestRedis(t)
	q := NewRedisQueue(rdb, "ingest")
	ctx := context.Background()

	require.NoError(t, q.EnqueueDelayed(ctx, msg("later"), time.Minute))

	n, err := q.PromoteDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = q.PromoteDue(ctx, time.Now().Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := q.Dequeue(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "later", got.JobID)

	ready, delayed, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, ready)
	assert.Zero(t, delayed)
}

func TestRedisQueue_Purge(t *testing.T) {
	_, rdb := newTestRedis(t)
	q := NewRedisQueue(rdb, "ingest")
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, msg("a")))
	require.NoError(t, q.Enqueue(ctx, msg("b")))
	require.NoError(t, q.EnqueueDelayed(ctx, msg("c"), time.Hour))

	ids, err := q.Purge(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids)

	ready, delayed, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, ready)
	assert.Zero(t, delayed)
}

func TestRedisQueue_Unavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	q := NewRedisQueue(rdb, "ingest")
	mr.Close()

	err := q.Enqueue(context.Background(), msg("a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrQueueUnavailable)
}
