package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/contexta-graph/internal/core"
	"github.com/markdave123-py/contexta-graph/internal/logger"
	"github.com/markdave123-py/contexta-graph/internal/models"
)

type Ingestor interface {
	Start(ctx context.Context, numWorkers int)
	Enqueue(ctx context.Context, req models.IngestRequest) (string, error)
	Run(ctx context.Context, jobID string, req models.IngestRequest) (*models.JobResult, error)
}

var _ Ingestor = (*DocumentIngestor)(nil)

func NewDocumentIngestor(
	pages core.PageStore,
	emb core.EmbeddingProvider,
	derived *DerivedContentGenerator,
	jobs core.JobStore,
	queue core.JobQueue,
	admission Admission,
	cfg *IngestConfig,
	log *logger.Logger,
) *DocumentIngestor {
	if log == nil {
		log = logger.Nop()
	}
	return &DocumentIngestor{
		pages:     pages,
		embedder:  emb,
		derived:   derived,
		jobs:      jobs,
		queue:     queue,
		admission: admission,
		parent:    NewSplitter(cfg.ParentTokens, cfg.ParentOverlap),
		child:     NewSplitter(cfg.ChildTokens, cfg.ChildOverlap),
		cfg:       cfg,
		log:       log.With("component", "DocumentIngestor"),
	}
}

// Enqueue records a PENDING job and publishes it. The job id is returned as
// soon as the message is durable; nothing else is awaited.
func (i *DocumentIngestor) Enqueue(ctx context.Context, req models.IngestRequest) (string, error) {
	req.DocumentID = strings.TrimSpace(req.DocumentID)
	if req.DocumentID == "" {
		return "", fmt.Errorf("%w: documentId is required", models.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Text) == "" {
		return "", fmt.Errorf("%w: text is required", models.ErrInvalidInput)
	}

	job := &models.Job{ID: uuid.NewString(), Status: models.StatusPending, DocumentID: req.DocumentID}
	if err := i.jobs.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("%w: create job: %v", models.ErrQueueUnavailable, err)
	}
	if err := i.queue.Enqueue(ctx, models.TaskMessage{JobID: job.ID, Request: req}); err != nil {
		i.finish(ctx, job.ID, models.StatusFailure, &models.JobResult{
			Message: "Task could not be queued", DocumentID: req.DocumentID, TaskID: job.ID, Error: err.Error(),
		}, "enqueue failed")
		return "", err
	}
	i.log.Info("Ingestion job queued", "job_id", job.ID, "document_id", req.DocumentID)
	return job.ID, nil
}

// Start launches numWorkers consumers and the delayed-message promoter. They
// stop when ctx is cancelled; Wait blocks until they have.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	i.log.Info("Starting ingestion workers", "workers", numWorkers)

	i.wg.Add(numWorkers + 1)
	for w := 0; w < numWorkers; w++ {
		workerID := w + 1
		go func() {
			defer i.wg.Done()
			i.runLoop(ctx, workerID)
		}()
	}
	go func() {
		defer i.wg.Done()
		i.promoteLoop(ctx)
	}()
}

func (i *DocumentIngestor) Wait() { i.wg.Wait() }

func (i *DocumentIngestor) runLoop(ctx context.Context, workerID int) {
	for {
		if ctx.Err() != nil {
			i.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		}
		msg, err := i.queue.Dequeue(ctx, i.cfg.PollWait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			i.log.Warn("Dequeue failed", "worker_id", workerID, "error", err)
			sleepCtx(ctx, time.Second)
			continue
		}
		if msg == nil {
			continue
		}
		i.handle(ctx, workerID, *msg)
	}
}

func (i *DocumentIngestor) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(i.cfg.PromoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n, err := i.queue.PromoteDue(ctx, now); err != nil {
				if ctx.Err() == nil {
					i.log.Warn("Promoting delayed jobs failed", "error", err)
				}
			} else if n > 0 {
				i.log.Debug("Promoted delayed jobs", "count", n)
			}
		}
	}
}

// handle admits msg or puts it back on the queue with a delay.
func (i *DocumentIngestor) handle(ctx context.Context, workerID int, msg models.TaskMessage) {
	release, ok, err := i.admission.TryAcquire(ctx, msg.JobID)
	if err != nil {
		i.log.Warn("Admission check failed", "worker_id", workerID, "job_id", msg.JobID, "error", err)
	}
	if !ok {
		if n, err := i.admission.InFlight(ctx); err == nil {
			i.log.Debug("Admission saturated", "worker_id", workerID, "job_id", msg.JobID, "in_flight", n)
		}
		i.requeue(ctx, msg)
		return
	}
	defer release()
	i.processOne(ctx, workerID, msg)
}

func (i *DocumentIngestor) requeue(ctx context.Context, msg models.TaskMessage) {
	n, err := i.jobs.Requeue(ctx, msg.JobID, "admission limit reached")
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) || errors.Is(err, models.ErrInvalidTransition) {
			i.log.Warn("Dropping message for unknown or finished job", "job_id", msg.JobID, "error", err)
			return
		}
		i.log.Error("Recording requeue failed", "job_id", msg.JobID, "error", err)
	}
	if i.cfg.MaxRequeues > 0 && n > i.cfg.MaxRequeues {
		i.log.Warn("Admission retries exhausted", "job_id", msg.JobID, "requeues", n)
		i.finish(ctx, msg.JobID, models.StatusFailure, &models.JobResult{
			Message: "Task was never admitted", DocumentID: msg.Request.DocumentID, TaskID: msg.JobID,
			Error: "admission retries exhausted",
		}, "admission retries exhausted")
		return
	}
	if err := i.queue.EnqueueDelayed(ctx, msg, i.cfg.RetryDelay); err != nil {
		i.log.Error("Requeue failed", "job_id", msg.JobID, "error", err)
		i.finish(ctx, msg.JobID, models.StatusFailure, &models.JobResult{
			Message: "Task could not be requeued", DocumentID: msg.Request.DocumentID, TaskID: msg.JobID,
			Error: err.Error(),
		}, "requeue failed")
		return
	}
	i.log.Info("Job requeued", "job_id", msg.JobID, "requeues", n, "delay", i.cfg.RetryDelay)
}

func (i *DocumentIngestor) processOne(ctx context.Context, workerID int, msg models.TaskMessage) {
	log := i.log.With("worker_id", workerID, "job_id", msg.JobID, "document_id", msg.Request.DocumentID)

	if err := i.jobs.UpdateStatus(ctx, msg.JobID, models.StatusStarted, models.JobMeta{DocumentID: msg.Request.DocumentID}, ""); err != nil {
		log.Warn("Skipping job that cannot start", "error", err)
		return
	}

	jobCtx := ctx
	if i.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, i.cfg.JobTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Ingestion panic", "panic", r)
			i.fail(ctx, msg, fmt.Errorf("panic: %v", r))
		}
	}()

	start := time.Now()
	result, err := i.Run(jobCtx, msg.JobID, msg.Request)
	if err != nil {
		log.Error("Ingestion failed", "error", err, "elapsed", time.Since(start))
		i.fail(ctx, msg, err)
		return
	}
	i.finish(ctx, msg.JobID, models.StatusProcessingDone, result, "")
	log.Info("Ingestion finished",
		"pages", result.Pages, "children", result.Children,
		"questions", result.Questions, "summaries", result.Summaries,
		"elapsed", time.Since(start))
}

func (i *DocumentIngestor) fail(ctx context.Context, msg models.TaskMessage, cause error) {
	i.finish(ctx, msg.JobID, models.StatusProcessingFailed, &models.JobResult{
		Message:    "Document processing failed",
		DocumentID: msg.Request.DocumentID,
		TaskID:     msg.JobID,
		Error:      cause.Error(),
	}, cause.Error())
}

// finish writes the terminal state even when ctx is already cancelled.
func (i *DocumentIngestor) finish(ctx context.Context, jobID string, to models.JobStatus, result *models.JobResult, detail string) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := i.jobs.Finish(fctx, jobID, to, result, detail); err != nil {
		i.log.Error("Recording terminal status failed", "job_id", jobID, "status", to, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
