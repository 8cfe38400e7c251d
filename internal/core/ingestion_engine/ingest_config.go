package ingestion_engine

import (
	"sync"
	"time"

	"github.com/markdave123-py/contexta-graph/internal/config"
	"github.com/markdave123-py/contexta-graph/internal/core"
	"github.com/markdave123-py/contexta-graph/internal/logger"
)

// IngestConfig tunes the ingestion pipeline and its workers.
//
// ParentTokens/ParentOverlap: page splitter window (512/24).
// ChildTokens/ChildOverlap:   child splitter window (100/24).
// EmbedDim:                   expected vector length; 0 skips the check.
// RetryDelay:                 backoff before an unadmitted job is retried.
// MaxRequeues:                admission retries before the job is failed.
// JobTimeout:                 upper bound on one job's execution.
// PollWait:                   how long a worker blocks waiting for a message.
// PromoteInterval:            how often delayed messages are checked.
type IngestConfig struct {
	ParentTokens    int
	ParentOverlap   int
	ChildTokens     int
	ChildOverlap    int
	EmbedDim        int
	RetryDelay      time.Duration
	MaxRequeues     int
	JobTimeout      time.Duration
	PollWait        time.Duration
	PromoteInterval time.Duration
}

// IngestConfigFrom maps process configuration onto the pipeline knobs.
func IngestConfigFrom(cfg *config.Config) *IngestConfig {
	return &IngestConfig{
		ParentTokens:    cfg.ParentChunkTokens,
		ParentOverlap:   cfg.ParentOverlapTokens,
		ChildTokens:     cfg.ChildChunkTokens,
		ChildOverlap:    cfg.ChildOverlapTokens,
		EmbedDim:        cfg.EmbedDim,
		RetryDelay:      cfg.AdmissionRetryDelay,
		MaxRequeues:     cfg.AdmissionMaxRetries,
		JobTimeout:      cfg.JobTimeout,
		PollWait:        2 * time.Second,
		PromoteInterval: time.Second,
	}
}

// DocumentIngestor runs ingestion jobs pulled from the queue:
//
// pages:     graph persistence for the page hierarchy.
// embedder:  embedding provider.
// derived:   question and summary generation.
// jobs:      task status store.
// queue:     durable job queue.
// admission: bound on concurrently executing jobs.
type DocumentIngestor struct {
	pages     core.PageStore
	embedder  core.EmbeddingProvider
	derived   *DerivedContentGenerator
	jobs      core.JobStore
	queue     core.JobQueue
	admission Admission
	parent    *Splitter
	child     *Splitter
	cfg       *IngestConfig
	log       *logger.Logger
	wg        sync.WaitGroup
}
