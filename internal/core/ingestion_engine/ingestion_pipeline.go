package ingestion_engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/markdave123-py/contexta-graph/internal/models"
)

// Run ingests one document: pages and children in splitter order, then the
// optional question and summary phases. Status is reported through the job
// store after every page. The caller owns the terminal transition.
func (i *DocumentIngestor) Run(ctx context.Context, jobID string, req models.IngestRequest) (*models.JobResult, error) {
	docID := req.DocumentID
	progress := func(status models.JobStatus, page, total int, phase string) error {
		meta := models.JobMeta{DocumentID: docID, Page: page, TotalPages: total, Phase: phase}
		if err := i.jobs.UpdateStatus(ctx, jobID, status, meta, ""); err != nil {
			return &PipelineError{Phase: phase, DocumentID: docID, Page: page, Err: fmt.Errorf("status update: %w", err)}
		}
		return nil
	}

	if err := progress(models.StatusProcessingDocument, 0, 0, "document"); err != nil {
		return nil, err
	}

	result := &models.JobResult{Message: "Document processed", DocumentID: docID, TaskID: jobID}
	chunks := i.parent.Split(req.Text)
	if len(chunks) == 0 {
		result.Message = "Document has no content to process"
		return result, nil
	}
	total := len(chunks)

	pages := make([]models.Page, 0, total)
	for idx, text := range chunks {
		n := idx + 1
		page, children, err := i.writePage(ctx, docID, n, text)
		if err != nil {
			i.log.Error("Page write failed",
				"document_id", docID, "job_id", jobID, "page", n, "total_pages", total, "error", err)
			return nil, &PipelineError{Phase: "pages", DocumentID: docID, Page: n, Err: err}
		}
		pages = append(pages, page)
		result.Pages++
		result.Children += children

		if err := progress(models.StatusProcessingPages, n, total, "pages"); err != nil {
			return nil, err
		}
	}

	pruned, err := i.pages.PrunePages(ctx, docID, total)
	if err != nil {
		i.log.Error("Pruning stale pages failed", "document_id", docID, "job_id", jobID, "error", err)
		return nil, &PipelineError{Phase: "pages", DocumentID: docID, Err: fmt.Errorf("prune pages: %w", err)}
	}
	if pruned > 0 {
		i.log.Info("Pruned stale pages", "document_id", docID, "pruned", pruned)
	}

	if req.GenerateQuestions {
		for idx, page := range pages {
			n := idx + 1
			if err := progress(models.StatusProcessingQuestions, n, total, "questions"); err != nil {
				return nil, err
			}
			count, err := i.derived.WriteQuestions(ctx, page, n)
			if err != nil {
				i.log.Error("Question generation failed", "document_id", docID, "job_id", jobID, "page", n, "error", err)
				return nil, &PipelineError{Phase: "questions", DocumentID: docID, Page: n, Err: err}
			}
			result.Questions += count
		}
	}

	if req.GenerateSummaries {
		for idx, page := range pages {
			n := idx + 1
			if err := progress(models.StatusProcessingSummary, n, total, "summary"); err != nil {
				return nil, err
			}
			count, err := i.derived.WriteSummary(ctx, page)
			if err != nil {
				i.log.Error("Summary generation failed", "document_id", docID, "job_id", jobID, "page", n, "error", err)
				return nil, &PipelineError{Phase: "summary", DocumentID: docID, Page: n, Err: err}
			}
			result.Summaries += count
		}
	}

	return result, nil
}

// writePage embeds the page and its children in one provider call and then
// persists them in a single transaction.
func (i *DocumentIngestor) writePage(ctx context.Context, docID string, n int, text string) (models.Page, int, error) {
	children := i.child.Split(text)
	vecs, err := i.embedder.EmbedTexts(ctx, append([]string{text}, children...))
	if err != nil {
		return models.Page{}, 0, fmt.Errorf("embed: %w", err)
	}
	if err := checkVectors(vecs, len(children)+1, i.cfg.EmbedDim); err != nil {
		return models.Page{}, 0, fmt.Errorf("embed: %w", err)
	}

	w := models.PageWrite{
		DocumentID: docID,
		Page: models.Page{
			UUID:      uuid.NewString(),
			Name:      models.PageName(n),
			Text:      text,
			Embedding: vecs[0],
		},
		Children: make([]models.Child, len(children)),
	}
	for c, childText := range children {
		w.Children[c] = models.Child{
			UUID:      uuid.NewString(),
			Name:      models.ChildName(n, c+1),
			Text:      childText,
			Embedding: vecs[c+1],
		}
	}

	page, err := i.pages.WritePage(ctx, w)
	if err != nil {
		return models.Page{}, 0, fmt.Errorf("store page: %w", err)
	}
	return page, len(children), nil
}
