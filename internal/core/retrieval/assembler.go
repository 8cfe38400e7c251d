package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/contexta-graph/internal/core"
	"github.com/markdave123-py/contexta-graph/internal/core/prompts"
	"github.com/markdave123-py/contexta-graph/internal/logger"
	"github.com/markdave123-py/contexta-graph/internal/models"
)

const (
	ModeChild  = "child"
	ModeParent = "parent"
)

// Config controls retrieval width and which index is searched.
//
// K:        number of candidate passages (5).
// MinScore: similarity floor; weaker matches are dropped (0.5).
// Mode:     "child" searches children, "parent" lifts scores to pages.
type Config struct {
	K        int
	MinScore float64
	Mode     string
}

// Assembler answers a question from the indexed documents and resolves the
// cited passages back to their document hierarchies.
type Assembler struct {
	embedder core.EmbeddingProvider
	llm      core.LLMProvider
	search   core.VectorSearcher
	graph    core.HierarchyResolver
	prompts  *prompts.Prompts
	cfg      Config
	log      *logger.Logger
}

func NewAssembler(emb core.EmbeddingProvider, llm core.LLMProvider, search core.VectorSearcher, graph core.HierarchyResolver, p *prompts.Prompts, cfg Config, log *logger.Logger) *Assembler {
	if p == nil {
		p = prompts.Default()
	}
	if cfg.K <= 0 {
		cfg.K = 5
	}
	if cfg.Mode != ModeParent {
		cfg.Mode = ModeChild
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Assembler{
		embedder: emb, llm: llm, search: search, graph: graph, prompts: p, cfg: cfg,
		log: log.With("component", "AnswerAssembler"),
	}
}

// Ask runs retrieval and completion, then resolves the cited sources. No
// matching passages is a valid outcome with empty sources; a failing
// completion is an error.
func (a *Assembler) Ask(ctx context.Context, question string) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", models.ErrInvalidInput)
	}
	start := time.Now()
	reqPayload, _ := json.Marshal(map[string]string{"question": question})

	matches, err := a.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	sys, user := a.prompts.Answer.Render(map[string]string{
		"context":  buildContext(matches),
		"question": question,
	})
	raw, err := a.llm.Generate(ctx, sys, user)
	if err != nil {
		return nil, fmt.Errorf("%w: completion: %v", models.ErrUpstream, err)
	}
	retrieved := time.Now()

	text, cited := parseAnswer(raw)
	ids := citedCandidates(NormalizeSources(cited), matches)

	sources, err := a.resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	resolved := time.Now()
	hierPayload, _ := json.Marshal(sources)

	a.log.Info("Question answered",
		"candidates", len(matches), "cited", len(ids), "documents", len(sources),
		"elapsed", resolved.Sub(start))

	return &models.Answer{
		Answer:  text,
		Sources: sources,
		Timings: models.AnswerTimings{
			RetrievalDuration: retrieved.Sub(start).Seconds(),
			HierarchyDuration: resolved.Sub(retrieved).Seconds(),
			TotalDuration:     resolved.Sub(start).Seconds(),
		},
		PayloadSizes: models.PayloadSizes{
			RequestSize:    len(reqPayload),
			ResponseSize:   len(raw),
			DBResponseSize: len(hierPayload),
		},
	}, nil
}

func (a *Assembler) retrieve(ctx context.Context, question string) ([]models.Match, error) {
	vecs, err := a.embedder.EmbedTexts(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("%w: embed question: %v", models.ErrUpstream, err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("%w: embed question: no vector returned", models.ErrUpstream)
	}

	var matches []models.Match
	if a.cfg.Mode == ModeParent {
		matches, err = a.search.SearchPages(ctx, vecs[0], a.cfg.K, a.cfg.MinScore)
	} else {
		matches, err = a.search.SearchChildren(ctx, vecs[0], a.cfg.K, a.cfg.MinScore)
	}
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	kept := matches[:0]
	for _, m := range matches {
		if m.Score >= a.cfg.MinScore {
			kept = append(kept, m)
		}
	}
	if len(kept) > a.cfg.K {
		kept = kept[:a.cfg.K]
	}
	return kept, nil
}

// resolve returns one hierarchy per distinct document, in order of first
// citation, with cited pages and children flagged.
func (a *Assembler) resolve(ctx context.Context, ids []string) ([]models.DocumentHierarchy, error) {
	out := []models.DocumentHierarchy{}
	if len(ids) == 0 {
		return out, nil
	}
	owners, err := a.graph.DocumentsForNodes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve sources: %w", err)
	}

	var docIDs []string
	seen := map[string]bool{}
	for _, id := range ids {
		doc, ok := owners[id]
		if !ok {
			a.log.Warn("Cited source has no document", "source", id)
			continue
		}
		if !seen[doc] {
			seen[doc] = true
			docIDs = append(docIDs, doc)
		}
	}

	trees := make([]*models.DocumentHierarchy, len(docIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, docID := range docIDs {
		g.Go(func() error {
			h, err := a.graph.DocumentHierarchy(gctx, docID)
			if err != nil {
				return fmt.Errorf("document %s: %w", docID, err)
			}
			trees[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolve sources: %w", err)
	}

	cited := make(map[string]bool, len(ids))
	for _, id := range ids {
		cited[id] = true
	}
	for _, h := range trees {
		markCited(h, cited)
		out = append(out, *h)
	}
	return out, nil
}

func markCited(h *models.DocumentHierarchy, cited map[string]bool) {
	for i := range h.Pages {
		p := &h.Pages[i]
		p.Cited = cited[p.UUID]
		for j := range p.Children {
			if cited[p.Children[j].UUID] {
				p.Children[j].Cited = true
				p.Cited = true
			}
		}
		for _, ref := range append(append([]models.NodeRef{}, p.Questions...), p.Summaries...) {
			if cited[ref.UUID] {
				p.Cited = true
			}
		}
	}
}

func buildContext(matches []models.Match) string {
	if len(matches) == 0 {
		return "(no passages)"
	}
	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s] %s", m.UUID, strings.TrimSpace(m.Text))
	}
	return b.String()
}

// citedCandidates keeps cited ids that were actually retrieved. An empty
// candidate set always yields no sources.
func citedCandidates(ids []string, matches []models.Match) []string {
	known := make(map[string]bool, len(matches))
	for _, m := range matches {
		known[m.UUID] = true
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if known[id] {
			out = append(out, id)
		}
	}
	return out
}
