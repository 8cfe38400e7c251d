package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/markdave123-py/contexta-graph/internal/core"
	"github.com/markdave123-py/contexta-graph/internal/logger"
	"github.com/markdave123-py/contexta-graph/internal/models"
)

const resultPollInterval = 100 * time.Millisecond

type ProcessDocumentsRequest struct {
	DocumentLimit     int  `json:"documentLimit"`
	GenerateQuestions bool `json:"generateQuestions"`
	GenerateSummaries bool `json:"generateSummaries"`
}

// TaskService is the task-level surface: enqueue, batch trigger, status
// lookup and purge.
type TaskService struct {
	tasks      TaskEnqueuer
	jobs       core.JobStore
	queue      core.JobQueue
	docs       core.DocumentStore
	resultWait time.Duration
	log        *logger.Logger
}

func NewTaskService(tasks TaskEnqueuer, jobs core.JobStore, queue core.JobQueue, docs core.DocumentStore, resultWait time.Duration, log *logger.Logger) *TaskService {
	if log == nil {
		log = logger.Nop()
	}
	return &TaskService{
		tasks:      tasks,
		jobs:       jobs,
		queue:      queue,
		docs:       docs,
		resultWait: resultWait,
		log:        log.With("component", "TaskService"),
	}
}

// Ingest queues text for a document that already exists in the graph.
func (s *TaskService) Ingest(ctx context.Context, req models.IngestRequest) (string, error) {
	if req.DocumentID == "" {
		return "", fmt.Errorf("%w: documentId is required", models.ErrInvalidInput)
	}
	if _, err := s.docs.GetDocument(ctx, req.DocumentID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", fmt.Errorf("%w: document %s does not exist", models.ErrInvalidInput, req.DocumentID)
		}
		return "", fmt.Errorf("lookup document %s: %w", req.DocumentID, err)
	}
	return s.tasks.Enqueue(ctx, req)
}

// ProcessDocuments queues every pending document up to the limit and returns
// the job ids in document order. A document that cannot be queued is logged
// and skipped; it stays pending for the next run. The call fails only when
// nothing could be queued.
func (s *TaskService) ProcessDocuments(ctx context.Context, req ProcessDocumentsRequest) ([]string, error) {
	limit := req.DocumentLimit
	if limit <= 0 {
		limit = defaultListLimit
	}
	docs, err := s.docs.PendingDocuments(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("pending documents: %w", err)
	}

	ids := make([]string, 0, len(docs))
	var lastErr error
	for _, d := range docs {
		id, err := s.tasks.Enqueue(ctx, models.IngestRequest{
			Text:              d.Text,
			DocumentID:        d.UUID,
			GenerateQuestions: req.GenerateQuestions,
			GenerateSummaries: req.GenerateSummaries,
		})
		if err != nil {
			s.log.Warn("Could not queue pending document", "document_id", d.UUID, "error", err)
			lastErr = err
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 && lastErr != nil {
		return ids, fmt.Errorf("queue pending documents: %w", lastErr)
	}
	s.log.Info("Pending documents queued", "count", len(ids), "failed", len(docs)-len(ids))
	return ids, nil
}

// Status reports the job state. Unknown ids are NOT_FOUND. A terminal job
// whose result cannot be read within the result wait is reported as TIMEOUT.
func (s *TaskService) Status(ctx context.Context, id string) (*models.TaskInfo, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if errors.Is(err, models.ErrJobNotFound) {
		return &models.TaskInfo{TaskID: id, Status: models.StatusNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrQueueUnavailable, err)
	}

	if !job.Status.IsTerminal() {
		meta := job.Meta
		return &models.TaskInfo{TaskID: id, Status: job.Status, Meta: &meta}, nil
	}

	result, err := s.awaitResult(ctx, id)
	if err != nil {
		return &models.TaskInfo{TaskID: id, Status: models.StatusTimeout, Error: err.Error()}, nil
	}
	info := &models.TaskInfo{TaskID: id, Status: job.Status, Result: result}
	if job.Status == models.StatusProcessingFailed || job.Status == models.StatusFailure {
		info.Error = job.Error
	}
	return info, nil
}

func (s *TaskService) awaitResult(ctx context.Context, id string) (*models.JobResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.resultWait)
	defer cancel()

	ticker := time.NewTicker(resultPollInterval)
	defer ticker.Stop()
	for {
		res, err := s.jobs.GetResult(ctx, id)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("result not available within %s", s.resultWait)
		case <-ticker.C:
		}
	}
}

// Purge drops every queued job that has not started and marks each FAILURE.
func (s *TaskService) Purge(ctx context.Context) (int, error) {
	ids, err := s.queue.Purge(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: purge: %v", models.ErrQueueUnavailable, err)
	}
	for _, id := range ids {
		err := s.jobs.Finish(ctx, id, models.StatusFailure, &models.JobResult{
			Message: "Task purged", TaskID: id, Error: "purged",
		}, "purged")
		if err != nil && !errors.Is(err, models.ErrJobNotFound) && !errors.Is(err, models.ErrInvalidTransition) {
			s.log.Warn("Could not mark purged job", "job_id", id, "error", err)
		}
	}
	s.log.Info("Queue purged", "purged", len(ids))
	return len(ids), nil
}

func (s *TaskService) QueueDepth(ctx context.Context) (*models.QueueDepth, error) {
	ready, delayed, err := s.queue.Depth(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: depth: %v", models.ErrQueueUnavailable, err)
	}
	return &models.QueueDepth{Ready: ready, Delayed: delayed}, nil
}
