package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/markdave123-py/contexta-graph/internal/core"
	"github.com/markdave123-py/contexta-graph/internal/core/prompts"
	"github.com/markdave123-py/contexta-graph/internal/core/taskqueue"
	"github.com/markdave123-py/contexta-graph/internal/logger"
	"github.com/markdave123-py/contexta-graph/internal/models"
)

const testDim = 4

// memPageStore is an in-memory core.PageStore keyed like the graph: pages
// merge on (document, name).
type memPageStore struct {
	mu         sync.Mutex
	pages      map[string]models.Page
	pageDoc    map[string]string
	byName     map[string]string
	children   map[string][]models.Child
	questions  map[string][]models.Question
	summaries  map[string]models.Summary
	failOnPage int
}

var _ core.PageStore = (*memPageStore)(nil)

func newMemPageStore() *memPageStore {
	return &memPageStore{
		pages:     map[string]models.Page{},
		pageDoc:   map[string]string{},
		byName:    map[string]string{},
		children:  map[string][]models.Child{},
		questions: map[string][]models.Question{},
		summaries: map[string]models.Summary{},
	}
}

func (s *memPageStore) WritePage(_ context.Context, w models.PageWrite) (models.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOnPage > 0 && w.Page.Name == models.PageName(s.failOnPage) {
		return models.Page{}, errors.New("graph unavailable")
	}
	key := w.DocumentID + "|" + w.Page.Name
	page := w.Page
	if id, ok := s.byName[key]; ok {
		page.UUID = id
	}
	s.byName[key] = page.UUID
	s.pages[page.UUID] = page
	s.pageDoc[page.UUID] = w.DocumentID
	s.children[page.UUID] = append([]models.Child(nil), w.Children...)
	return page, nil
}

func (s *memPageStore) PrunePages(_ context.Context, documentID string, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, p := range s.pages {
		if s.pageDoc[id] == documentID && models.PageIndex(p.Name) > keep {
			delete(s.pages, id)
			delete(s.byName, documentID+"|"+p.Name)
			delete(s.children, id)
			delete(s.questions, id)
			delete(s.summaries, id)
			n++
		}
	}
	return n, nil
}

func (s *memPageStore) ReplaceQuestions(_ context.Context, pageID string, qs []models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[pageID]; !ok {
		return fmt.Errorf("page %s: %w", pageID, models.ErrNotFound)
	}
	s.questions[pageID] = append([]models.Question(nil), qs...)
	return nil
}

func (s *memPageStore) MergeSummary(_ context.Context, pageID string, sum models.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[pageID]; !ok {
		return fmt.Errorf("page %s: %w", pageID, models.ErrNotFound)
	}
	if prev, ok := s.summaries[pageID]; ok {
		sum.UUID = prev.UUID
	}
	s.summaries[pageID] = sum
	return nil
}

// docPages returns the document's pages ordered by index.
func (s *memPageStore) docPages(documentID string) []models.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Page
	for id, p := range s.pages {
		if s.pageDoc[id] == documentID {
			out = append(out, p)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && models.PageIndex(out[j].Name) < models.PageIndex(out[j-1].Name); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func (s *memPageStore) childCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.children {
		n += len(c)
	}
	return n
}

// fakeEmbedder returns a fixed-size vector derived from the text length and
// tracks how many calls run at once.
type fakeEmbedder struct {
	delay    time.Duration
	calls    atomic.Int64
	active   atomic.Int64
	maxSeen  atomic.Int64
	err      error
	shortDim bool
}

func (e *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	n := e.active.Add(1)
	defer e.active.Add(-1)
	for {
		m := e.maxSeen.Load()
		if n <= m || e.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if e.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.delay):
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	dim := testDim
	if e.shortDim {
		dim = testDim - 1
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, dim)
		v[0] = float32(len(t))
		v[dim-1] = 1
		out[i] = v
	}
	return out, nil
}

// fakeLLM answers question prompts with a fixed JSON list and anything else
// with a one-line summary.
type fakeLLM struct {
	questions []string
	summary   string
	err       error
	calls     atomic.Int64
}

func (l *fakeLLM) Generate(_ context.Context, system, _ string) (string, error) {
	l.calls.Add(1)
	if l.err != nil {
		return "", l.err
	}
	if strings.Contains(system, "questions") {
		quoted := make([]string, len(l.questions))
		for i, q := range l.questions {
			quoted[i] = fmt.Sprintf("%q", q)
		}
		return `{"questions": [` + strings.Join(quoted, ", ") + `]}`, nil
	}
	return l.summary, nil
}

type harness struct {
	mr        *miniredis.Miniredis
	rdb       *goredis.Client
	store     *memPageStore
	embedder  *fakeEmbedder
	llm       *fakeLLM
	jobs      *taskqueue.RedisJobStore
	queue     *taskqueue.RedisQueue
	admission *LocalAdmission
	ingestor  *DocumentIngestor
}

func testConfig() *IngestConfig {
	return &IngestConfig{
		ParentTokens:    10,
		ParentOverlap:   0,
		ChildTokens:     4,
		ChildOverlap:    0,
		EmbedDim:        testDim,
		RetryDelay:      20 * time.Millisecond,
		MaxRequeues:     1000,
		JobTimeout:      10 * time.Second,
		PollWait:        time.Second,
		PromoteInterval: 10 * time.Millisecond,
	}
}

func newHarness(t *testing.T, cfg *IngestConfig, maxConcurrent int) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{
		mr:        mr,
		rdb:       rdb,
		store:     newMemPageStore(),
		embedder:  &fakeEmbedder{},
		llm:       &fakeLLM{questions: []string{"What is w000?", "Where is w001?", "Why w002?"}, summary: "A short summary."},
		jobs:      taskqueue.NewRedisJobStore(rdb, "test", time.Hour),
		queue:     taskqueue.NewRedisQueue(rdb, "test:ingest"),
		admission: NewLocalAdmission(maxConcurrent),
	}
	derived := NewDerivedContentGenerator(h.llm, h.embedder, h.store, prompts.Default(), 2, testDim)
	h.ingestor = NewDocumentIngestor(h.store, h.embedder, derived, h.jobs, h.queue, h.admission, cfg, logger.Nop())
	return h
}

// deliver pops the next ready message and hands it to the worker logic.
func (h *harness) deliver(t *testing.T, ctx context.Context) {
	t.Helper()
	msg, err := h.queue.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if msg == nil {
		t.Fatal("no message ready")
	}
	h.ingestor.handle(ctx, 1, *msg)
}
