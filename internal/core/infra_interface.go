package core

import (
	"context"
	"io"
	"time"

	"github.com/markdave123-py/contexta-graph/internal/models"
)

// PageStore persists the page hierarchy produced by the ingestion pipeline.
// Every method is one transaction.
type PageStore interface {
	// WritePage merges the page under its document and replaces the page's
	// children. It returns the page with its stored uuid.
	WritePage(ctx context.Context, w models.PageWrite) (models.Page, error)
	// PrunePages removes pages of the document whose index is above keep.
	PrunePages(ctx context.Context, documentID string, keep int) (int, error)
	ReplaceQuestions(ctx context.Context, pageID string, questions []models.Question) error
	MergeSummary(ctx context.Context, pageID string, summary models.Summary) error
}

// DocumentStore reads and writes Document nodes.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document, username string) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, limit int) ([]models.Document, error)
	// PendingDocuments returns documents that have text, are flagged for
	// processing and have no pages yet.
	PendingDocuments(ctx context.Context, limit int) ([]models.Document, error)
}

// VectorSearcher runs similarity search over the child and page indexes.
type VectorSearcher interface {
	SearchChildren(ctx context.Context, vector []float32, k int, minScore float64) ([]models.Match, error)
	SearchPages(ctx context.Context, vector []float32, k int, minScore float64) ([]models.Match, error)
}

// HierarchyResolver maps node ids back to their owning documents.
type HierarchyResolver interface {
	// DocumentsForNodes returns node uuid -> document uuid for every id that
	// belongs to a document. Unknown ids are absent from the map.
	DocumentsForNodes(ctx context.Context, ids []string) (map[string]string, error)
	DocumentHierarchy(ctx context.Context, documentID string) (*models.DocumentHierarchy, error)
}

// UserStore persists User nodes.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// JobStore is the task status store. Status changes are checked against the
// job state machine and recorded in the job history.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	UpdateStatus(ctx context.Context, id string, to models.JobStatus, meta models.JobMeta, note string) error
	// Requeue records an admission requeue and returns the new requeue count.
	Requeue(ctx context.Context, id string, note string) (int, error)
	Finish(ctx context.Context, id string, to models.JobStatus, result *models.JobResult, detail string) error
	GetResult(ctx context.Context, id string) (*models.JobResult, error)
}

// JobQueue is the durable ingestion queue.
type JobQueue interface {
	Enqueue(ctx context.Context, msg models.TaskMessage) error
	EnqueueDelayed(ctx context.Context, msg models.TaskMessage, delay time.Duration) error
	// Dequeue blocks up to wait; it returns nil, nil when nothing arrived.
	Dequeue(ctx context.Context, wait time.Duration) (*models.TaskMessage, error)
	// PromoteDue moves delayed messages whose time has come onto the ready queue.
	PromoteDue(ctx context.Context, now time.Time) (int, error)
	// Purge drops every queued message that has not started and returns their job ids.
	Purge(ctx context.Context) ([]string, error)
	Depth(ctx context.Context) (ready int64, delayed int64, err error)
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)

	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
