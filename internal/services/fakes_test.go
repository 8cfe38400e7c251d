package services

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/markdave123-py/contexta-graph/internal/models"
)

type memDocs struct {
	mu       sync.Mutex
	docs     []*models.Document
	owners   map[string]string
	pending  []models.Document
	createEr error
}

func newMemDocs() *memDocs { return &memDocs{owners: map[string]string{}} }

func (m *memDocs) CreateDocument(_ context.Context, doc *models.Document, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createEr != nil {
		return m.createEr
	}
	m.docs = append(m.docs, doc)
	m.owners[doc.UUID] = username
	return nil
}

func (m *memDocs) GetDocument(_ context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.UUID == id {
			return d, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memDocs) ListDocuments(_ context.Context, limit int) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, *d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AddedDate > out[j].AddedDate })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memDocs) PendingDocuments(_ context.Context, limit int) ([]models.Document, error) {
	if len(m.pending) > limit {
		return m.pending[:limit], nil
	}
	return m.pending, nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUsers() *memUsers { return &memUsers{users: map[string]*models.User{}} }

func (m *memUsers) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return models.ErrInvalidInput
	}
	cp := *u
	m.users[u.Username] = &cp
	return nil
}

func (m *memUsers) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type stubFetcher struct {
	doc  *models.RawDocument
	body []byte
	err  error
}

func (f stubFetcher) Fetch(context.Context, string) (*models.RawDocument, []byte, error) {
	return f.doc, f.body, f.err
}

type stubExtractor struct {
	doc *models.RawDocument
	err error
}

func (e stubExtractor) ExtractText(context.Context, []byte, string) (*models.RawDocument, error) {
	return e.doc, e.err
}

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newMemStorage() *memStorage { return &memStorage{objects: map[string][]byte{}} }

func (s *memStorage) UploadFile(_ context.Context, bucket, key string, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.objects[key] = data
	return "https://bucket.example/" + key, nil
}

func (s *memStorage) DeleteFile(context.Context, string, string) error { return nil }

func (s *memStorage) GetFile(_ context.Context, _, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return b, nil
}

func (s *memStorage) GetObjectReader(context.Context, string, string) (io.ReadCloser, error) {
	return nil, errors.New("not supported")
}

type recordingEnqueuer struct {
	mu      sync.Mutex
	reqs    []models.IngestRequest
	calls   map[string]int
	err     error
	failFor map[string]error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, req models.IngestRequest) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.calls == nil {
		e.calls = map[string]int{}
	}
	e.calls[req.DocumentID]++
	if e.err != nil {
		return "", e.err
	}
	if err := e.failFor[req.DocumentID]; err != nil {
		return "", err
	}
	e.reqs = append(e.reqs, req)
	return "task-" + req.DocumentID, nil
}
