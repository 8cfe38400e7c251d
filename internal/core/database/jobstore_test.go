package db

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-graph/internal/config"
	"github.com/markdave123-py/contexta-graph/internal/models"
)

// newTestStore connects to DATABASE_URL and skips when it is unset.
func newTestStore(t *testing.T) *JobStore {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	store, err := NewJobStore(context.Background(), &config.Config{DatabaseURL: url})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newJob(t *testing.T, store *JobStore) string {
	t.Helper()
	id := "test-" + uuid.NewString()
	require.NoError(t, store.CreateJob(context.Background(), &models.Job{ID: id, DocumentID: "doc-1"}))
	t.Cleanup(func() {
		_, _ = store.db.ExecContext(context.Background(), `DELETE FROM ingest_jobs WHERE id = $1`, id)
	})
	return id
}

func TestFinish_RejectsNonTerminalWithoutTouchingStore(t *testing.T) {
	var s JobStore
	err := s.Finish(context.Background(), "any", models.StatusProcessingPages, nil, "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestCreateJob_RequiresID(t *testing.T) {
	var s JobStore
	assert.ErrorIs(t, s.CreateJob(context.Background(), &models.Job{}), models.ErrInvalidInput)
	assert.ErrorIs(t, s.CreateJob(context.Background(), nil), models.ErrInvalidInput)
}

func TestJobStore_Lifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := newJob(t, store)

	require.NoError(t, store.UpdateStatus(ctx, id, models.StatusStarted, models.JobMeta{DocumentID: "doc-1"}, ""))
	require.NoError(t, store.UpdateStatus(ctx, id, models.StatusProcessingDocument, models.JobMeta{DocumentID: "doc-1", Phase: "document"}, ""))
	require.NoError(t, store.UpdateStatus(ctx, id, models.StatusProcessingPages,
		models.JobMeta{DocumentID: "doc-1", Page: 1, TotalPages: 2, Phase: "pages"}, "page 1 of 2"))

	_, err := store.GetResult(ctx, id)
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, store.Finish(ctx, id, models.StatusProcessingDone,
		&models.JobResult{Message: "Document processed", DocumentID: "doc-1", TaskID: id, Pages: 2}, ""))

	job, err := store.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessingDone, job.Status)
	assert.Equal(t, 2, job.Meta.TotalPages)
	statuses := make([]models.JobStatus, 0, len(job.History))
	for _, ev := range job.History {
		statuses = append(statuses, ev.Status)
	}
	assert.Equal(t, []models.JobStatus{
		models.StatusPending,
		models.StatusStarted,
		models.StatusProcessingDocument,
		models.StatusProcessingPages,
		models.StatusProcessingDone,
	}, statuses)

	res, err := store.GetResult(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "doc-1", res.DocumentID)
}

func TestJobStore_RejectsInvalidTransition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := newJob(t, store)

	err := store.UpdateStatus(ctx, id, models.StatusProcessingPages, models.JobMeta{}, "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	require.NoError(t, store.UpdateStatus(ctx, id, models.StatusStarted, models.JobMeta{}, ""))
	err = store.Finish(ctx, id, models.StatusProcessingDone, nil, "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	job, err := store.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusStarted, job.Status)
	assert.Len(t, job.History, 2)
}

func TestJobStore_Requeue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	id := newJob(t, store)

	n, err := store.Requeue(ctx, id, "admission limit reached")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = store.Requeue(ctx, id, "admission limit reached")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	job, err := store.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, job.Status)
	assert.Equal(t, 2, job.Requeues)
	assert.Equal(t, "admission limit reached", job.History[len(job.History)-1].Note)

	require.NoError(t, store.UpdateStatus(ctx, id, models.StatusStarted, models.JobMeta{}, ""))
	_, err = store.Requeue(ctx, id, "late")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestJobStore_MissingAndDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetJob(ctx, "missing-"+uuid.NewString())
	assert.ErrorIs(t, err, models.ErrJobNotFound)
	err = store.UpdateStatus(ctx, "missing-"+uuid.NewString(), models.StatusStarted, models.JobMeta{}, "")
	assert.ErrorIs(t, err, models.ErrJobNotFound)

	id := newJob(t, store)
	err = store.CreateJob(ctx, &models.Job{ID: id})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
