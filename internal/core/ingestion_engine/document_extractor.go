package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/contexta-graph/internal/core"
	"github.com/markdave123-py/contexta-graph/internal/models"
)

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor implements core.DocumentExtractor using sajari/docconv.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

// ExtractText converts data to plain text. Blank lines are dropped and each
// remaining line is trimmed.
func (e *DocconvExtractor) ExtractText(ctx context.Context, data []byte, contentType string) (*models.RawDocument, error) {
	type converted struct {
		res *docconv.Response
		err error
	}
	done := make(chan converted, 1)
	go func() {
		res, err := docconv.Convert(bytes.NewReader(data), contentType, e.useReadability)
		done <- converted{res, err}
	}()

	var c converted
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c = <-done:
	}
	if c.err != nil {
		return nil, fmt.Errorf("docconv: extraction failed for content type %q: %w", contentType, c.err)
	}

	text := normalizeLines(c.res.Body)
	if text == "" {
		return nil, fmt.Errorf("%w: no text extracted from %q document", models.ErrInvalidInput, contentType)
	}
	return &models.RawDocument{
		Title:     strings.TrimSpace(c.res.Meta["Title"]),
		Text:      text,
		WordCount: len(strings.Fields(text)),
	}, nil
}

func normalizeLines(body string) string {
	lines := strings.Split(body, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
