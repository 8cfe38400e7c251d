package webpage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/markdave123-py/contexta-graph/internal/core"
	"github.com/markdave123-py/contexta-graph/internal/models"
)

var _ core.PageFetcher = (*Fetcher)(nil)

const (
	userAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/64.0.3282.140 Safari/537.36 Edge/17.17134"
	defaultMaxBytes = 10 << 20
)

// DefaultIcon is used as the primary image when a page has none.
const DefaultIcon = `<svg xmlns="http://www.w3.org/2000/svg" fill="none" viewBox="0 0 24 24" stroke-width="1.5" stroke="currentColor" class="w-6 h-6"><path stroke-linecap="round" stroke-linejoin="round" d="M19.5 14.25v-2.625a3.375 3.375 0 00-3.375-3.375h-1.5A1.125 1.125 0 0113.5 7.125v-1.5a3.375 3.375 0 00-3.375-3.375H8.25m2.25 0H5.625c-.621 0-1.125.504-1.125 1.125v17.25c0 .621.504 1.125 1.125 1.125h12.75c.621 0 1.125-.504 1.125-1.125V11.25a9 9 0 00-9-9z" /></svg>`

// Fetcher downloads HTML pages and extracts document fields with goquery.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}, maxBytes: defaultMaxBytes}
}

// Fetch downloads rawURL. Unreachable pages, non-2xx responses and pages
// without text are invalid input.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*models.RawDocument, []byte, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, nil, fmt.Errorf("%w: %q is not an http(s) url", models.ErrInvalidInput, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.1")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: could not fetch document from %s: %v", models.ErrInvalidInput, u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("%w: could not fetch document from %s: status %d", models.ErrInvalidInput, u, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", u, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, nil, fmt.Errorf("%w: document at %s exceeds %d bytes", models.ErrInvalidInput, u, f.maxBytes)
	}

	doc, err := Extract(body, u.String())
	if err != nil {
		return nil, nil, err
	}
	return doc, body, nil
}

// Extract reads title, text, image, publisher and thumbnail from an HTML
// page. Title is empty when neither <title> nor og:title is present.
func Extract(body []byte, pageURL string) (*models.RawDocument, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", models.ErrInvalidInput, err)
	}

	out := &models.RawDocument{
		Title:     title(doc),
		ImageURL:  primaryImage(doc),
		Publisher: publisher(doc, pageURL),
	}
	out.Thumbnail = metaContent(doc, `meta[name="thumbnail"]`)
	if out.Thumbnail == "" {
		out.Thumbnail = out.ImageURL
	}

	out.Text = fullText(doc)
	if out.Text == "" {
		return nil, fmt.Errorf("%w: no text found at %s", models.ErrInvalidInput, pageURL)
	}
	out.WordCount = len(strings.Fields(out.Text))
	return out, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}

func title(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return metaContent(doc, `meta[property="og:title"]`)
}

func primaryImage(doc *goquery.Document) string {
	if img := metaContent(doc, `meta[property="og:image"]`); img != "" {
		return img
	}
	if src := strings.TrimSpace(doc.Find("img[src]").First().AttrOr("src", "")); src != "" {
		return src
	}
	return DefaultIcon
}

func publisher(doc *goquery.Document, pageURL string) string {
	if site := metaContent(doc, `meta[property="og:site_name"]`); site != "" {
		return site
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}

// fullText prefers div.document-content and falls back to the whole page.
// Whitespace is collapsed to single spaces.
func fullText(doc *goquery.Document) string {
	doc.Find("script, style, meta, noscript, title").Remove()
	sel := doc.Find("div.document-content").First()
	if sel.Length() == 0 {
		sel = doc.Selection
	}
	return strings.Join(strings.Fields(spacedText(sel)), " ")
}

// spacedText joins text nodes with spaces so adjacent block elements do not
// run their words together.
func spacedText(sel *goquery.Selection) string {
	var parts []string
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "#text":
			parts = append(parts, s.Text())
		case "#comment":
		default:
			parts = append(parts, spacedText(s))
		}
	})
	return strings.Join(parts, " ")
}
