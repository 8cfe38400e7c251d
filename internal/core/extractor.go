package core

import (
	"context"

	"github.com/markdave123-py/contexta-graph/internal/models"
)

// DocumentExtractor turns an uploaded file into normalized text.
// The contentType hint selects the parsing strategy.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, data []byte, contentType string) (*models.RawDocument, error)
}

// PageFetcher downloads a web page and extracts its document fields.
// The raw body is returned alongside so callers can archive it.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*models.RawDocument, []byte, error)
}
