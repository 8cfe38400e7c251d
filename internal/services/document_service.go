package services

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/contexta-graph/internal/core"
	"github.com/markdave123-py/contexta-graph/internal/logger"
	"github.com/markdave123-py/contexta-graph/internal/models"
)

// addedDateLayout matches the minute-precision UTC stamp stored on documents.
const addedDateLayout = "2006-01-02T15:04Z"

const defaultListLimit = 100

// TaskEnqueuer hands an ingestion request to the task queue and returns the
// job id.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, req models.IngestRequest) (string, error)
}

type AddDocumentRequest struct {
	URL  string `json:"url"`
	Note string `json:"note"`
}

type UploadRequest struct {
	FileName    string
	ContentType string
	Data        []byte
	Note        string
}

// AddDocumentResult is the created document and the job ingesting it.
type AddDocumentResult struct {
	Document *models.Document `json:"document"`
	TaskID   string           `json:"taskId"`
}

type DocumentService struct {
	docs      core.DocumentStore
	fetcher   core.PageFetcher
	extractor core.DocumentExtractor
	storage   core.ObjectClient
	tasks     TaskEnqueuer
	log       *logger.Logger
	now       func() time.Time
}

// NewDocumentService wires the document flows. storage may be nil, in which
// case snapshots and uploaded originals are not archived.
func NewDocumentService(docs core.DocumentStore, fetcher core.PageFetcher, extractor core.DocumentExtractor, storage core.ObjectClient, tasks TaskEnqueuer, log *logger.Logger) *DocumentService {
	if log == nil {
		log = logger.Nop()
	}
	return &DocumentService{
		docs:      docs,
		fetcher:   fetcher,
		extractor: extractor,
		storage:   storage,
		tasks:     tasks,
		log:       log.With("component", "DocumentService"),
		now:       time.Now,
	}
}

// AddFromURL fetches the page, stores it as a document added by username and
// queues it for ingestion with questions and summaries enabled. Fetch
// failures are invalid input and nothing is stored.
func (s *DocumentService) AddFromURL(ctx context.Context, username string, req AddDocumentRequest) (*AddDocumentResult, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, fmt.Errorf("%w: url is required", models.ErrInvalidInput)
	}

	raw, body, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	doc := s.newDocument(raw)
	doc.URL = url
	doc.Note = req.Note
	if s.storage != nil {
		key := path.Join("snapshots", doc.UUID+".html")
		if _, err := s.storage.UploadFile(ctx, "", key, body, "text/html"); err != nil {
			s.log.Warn("Snapshot archive failed (continuing)", "document_id", doc.UUID, "error", err)
		}
	}
	return s.store(ctx, username, doc)
}

// Upload extracts text from an uploaded file while the original is archived,
// then stores and queues the document.
func (s *DocumentService) Upload(ctx context.Context, username string, req UploadRequest) (*AddDocumentResult, error) {
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", models.ErrInvalidInput)
	}
	fileName := filepath.Base(strings.TrimSpace(req.FileName))
	if fileName == "." || fileName == "/" || fileName == "" {
		fileName = "document"
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	docID := uuid.NewString()
	var (
		raw       *models.RawDocument
		objectURL string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		raw, err = s.extractor.ExtractText(gctx, req.Data, contentType)
		return err
	})
	if s.storage != nil {
		g.Go(func() error {
			var err error
			objectURL, err = s.storage.UploadFile(gctx, "", objectKey(username, docID, fileName), req.Data, contentType)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc := s.newDocument(raw)
	doc.UUID = docID
	doc.URL = objectURL
	doc.Note = req.Note
	if raw.Title == "" {
		doc.Name = fileName
	}
	return s.store(ctx, username, doc)
}

func (s *DocumentService) List(ctx context.Context, limit int) ([]models.Document, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.docs.ListDocuments(ctx, limit)
}

func (s *DocumentService) newDocument(raw *models.RawDocument) *models.Document {
	id := uuid.NewString()
	name := strings.TrimSpace(raw.Title)
	if name == "" {
		name = "Untitled Document " + id
	}
	return &models.Document{
		UUID:        id,
		Name:        name,
		Text:        raw.Text,
		ImageURL:    raw.ImageURL,
		Publisher:   raw.Publisher,
		Thumbnail:   raw.Thumbnail,
		WordCount:   raw.WordCount,
		AddedDate:   s.now().UTC().Format(addedDateLayout),
		ProcessFlag: true,
	}
}

// store creates the document and queues it. A queueing failure leaves the
// document in place; it is picked up again by the batch trigger.
func (s *DocumentService) store(ctx context.Context, username string, doc *models.Document) (*AddDocumentResult, error) {
	if err := s.docs.CreateDocument(ctx, doc, username); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	s.log.Info("Document added", "document_id", doc.UUID, "username", username, "words", doc.WordCount)

	taskID, err := s.tasks.Enqueue(ctx, models.IngestRequest{
		Text:              doc.Text,
		DocumentID:        doc.UUID,
		GenerateQuestions: true,
		GenerateSummaries: true,
	})
	if err != nil {
		return nil, fmt.Errorf("queue document %s: %w", doc.UUID, err)
	}
	return &AddDocumentResult{Document: doc, TaskID: taskID}, nil
}

// objectKey creates a consistent S3 key layout.
func objectKey(username, docID, filename string) string {
	filename = strings.ReplaceAll(filename, " ", "_")
	return path.Join("users", username, "documents", docID, filename)
}
