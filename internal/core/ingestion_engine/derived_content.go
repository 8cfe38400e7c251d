package ingestion_engine

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/markdave123-py/contexta-graph/internal/core"
	"github.com/markdave123-py/contexta-graph/internal/core/prompts"
	"github.com/markdave123-py/contexta-graph/internal/models"
)

// DerivedContentGenerator produces hypothetical questions and summaries for
// a page and stores them with their embeddings.
type DerivedContentGenerator struct {
	llm          core.LLMProvider
	embedder     core.EmbeddingProvider
	store        core.PageStore
	prompts      *prompts.Prompts
	maxQuestions int
	embedDim     int
}

func NewDerivedContentGenerator(llm core.LLMProvider, emb core.EmbeddingProvider, store core.PageStore, p *prompts.Prompts, maxQuestions, embedDim int) *DerivedContentGenerator {
	if p == nil {
		p = prompts.Default()
	}
	return &DerivedContentGenerator{
		llm: llm, embedder: emb, store: store, prompts: p,
		maxQuestions: maxQuestions, embedDim: embedDim,
	}
}

// GenerateQuestions asks the model for questions about pageText and keeps at
// most maxQuestions non-empty ones, in the order proposed.
func (g *DerivedContentGenerator) GenerateQuestions(ctx context.Context, pageText string) ([]string, error) {
	sys, user := g.prompts.Questions.Render(map[string]string{"text": pageText})
	raw, err := g.llm.Generate(ctx, sys, user)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	qs := parseQuestions(raw)
	if len(qs) > g.maxQuestions {
		qs = qs[:g.maxQuestions]
	}
	return qs, nil
}

func (g *DerivedContentGenerator) GenerateSummary(ctx context.Context, pageText string) (string, error) {
	sys, user := g.prompts.Summary.Render(map[string]string{"text": pageText})
	raw, err := g.llm.Generate(ctx, sys, user)
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	return strings.TrimSpace(raw), nil
}

// WriteQuestions replaces the page's questions and returns how many were stored.
func (g *DerivedContentGenerator) WriteQuestions(ctx context.Context, page models.Page, pageIndex int) (int, error) {
	if g.maxQuestions <= 0 {
		return 0, nil
	}
	qs, err := g.GenerateQuestions(ctx, page.Text)
	if err != nil {
		return 0, err
	}

	var questions []models.Question
	if len(qs) > 0 {
		vecs, err := g.embedder.EmbedTexts(ctx, qs)
		if err != nil {
			return 0, fmt.Errorf("embed questions: %w", err)
		}
		if err := checkVectors(vecs, len(qs), g.embedDim); err != nil {
			return 0, fmt.Errorf("embed questions: %w", err)
		}
		questions = make([]models.Question, len(qs))
		for i, q := range qs {
			questions[i] = models.Question{
				UUID:      uuid.NewString(),
				Name:      models.QuestionName(pageIndex, i+1),
				Text:      q,
				Embedding: vecs[i],
			}
		}
	}
	if err := g.store.ReplaceQuestions(ctx, page.UUID, questions); err != nil {
		return 0, fmt.Errorf("store questions: %w", err)
	}
	return len(questions), nil
}

// WriteSummary merges the page's single summary. An empty completion stores nothing.
func (g *DerivedContentGenerator) WriteSummary(ctx context.Context, page models.Page) (int, error) {
	text, err := g.GenerateSummary(ctx, page.Text)
	if err != nil {
		return 0, err
	}
	if text == "" {
		return 0, nil
	}
	vecs, err := g.embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		return 0, fmt.Errorf("embed summary: %w", err)
	}
	if err := checkVectors(vecs, 1, g.embedDim); err != nil {
		return 0, fmt.Errorf("embed summary: %w", err)
	}
	s := models.Summary{UUID: uuid.NewString(), Text: text, Embedding: vecs[0]}
	if err := g.store.MergeSummary(ctx, page.UUID, s); err != nil {
		return 0, fmt.Errorf("store summary: %w", err)
	}
	return 1, nil
}

var (
	codeFence  = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	listMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
)

// parseQuestions accepts {"questions": [...]}, a bare JSON array, or one
// question per line with optional bullets or numbering.
func parseQuestions(raw string) []string {
	raw = stripFence(raw)
	if raw == "" {
		return nil
	}

	var obj struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(raw), &obj); err == nil && obj.Questions != nil {
		return nonEmpty(obj.Questions)
	}
	var arr []string
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		return nonEmpty(arr)
	}

	lines := strings.Split(raw, "\n")
	for i, l := range lines {
		lines[i] = listMarker.ReplaceAllString(l, "")
	}
	return nonEmpty(lines)
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func checkVectors(vecs [][]float32, want, dim int) error {
	if len(vecs) != want {
		return fmt.Errorf("got %d embeddings for %d texts", len(vecs), want)
	}
	for _, v := range vecs {
		if len(v) == 0 || (dim > 0 && len(v) != dim) {
			return fmt.Errorf("%w: got %d, want %d", models.ErrDimensionMismatch, len(v), dim)
		}
	}
	return nil
}
