package graphdb

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/markdave123-py/contexta-graph/internal/models"
)

const mergePageCypher = `
MATCH (d:Document {uuid: $documentId})
MERGE (d)-[:HAS_PAGE]->(p:Page {name: $name})
ON CREATE SET p.uuid = $uuid, p.datecreated = datetime()
SET p.text = $text, p.source = $documentId, p.dateupdated = datetime()
WITH p
CALL db.create.setNodeVectorProperty(p, 'embedding', $embedding)
RETURN p.uuid AS uuid`

const dropChildrenCypher = `
MATCH (p:Page {uuid: $pageId})-[:HAS_CHILD]->(c:Child)
DETACH DELETE c`

const createChildrenCypher = `
MATCH (p:Page {uuid: $pageId})
UNWIND $children AS row
CREATE (p)-[:HAS_CHILD]->(c:Child {uuid: row.uuid, name: row.name, text: row.text, source: p.uuid, datecreated: datetime()})
WITH c, row
CALL db.create.setNodeVectorProperty(c, 'embedding', row.embedding)`

// WritePage stores the page and its children in one transaction. The page is
// merged on (document, name) so re-ingestion keeps its uuid; its previous
// children are replaced.
func (c *Client) WritePage(ctx context.Context, w models.PageWrite) (models.Page, error) {
	out, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		recs, err := collect(ctx, tx, mergePageCypher, map[string]any{
			"documentId": w.DocumentID,
			"name":       w.Page.Name,
			"uuid":       w.Page.UUID,
			"text":       w.Page.Text,
			"embedding":  toFloat64s(w.Page.Embedding),
		})
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, fmt.Errorf("document %s: %w", w.DocumentID, models.ErrNotFound)
		}
		pageID := recordString(recs[0], "uuid")

		if err := exec(ctx, tx, dropChildrenCypher, map[string]any{"pageId": pageID}); err != nil {
			return nil, err
		}
		if len(w.Children) > 0 {
			if err := exec(ctx, tx, createChildrenCypher, map[string]any{
				"pageId":   pageID,
				"children": childRows(w.Children),
			}); err != nil {
				return nil, err
			}
		}
		return pageID, nil
	})
	if err != nil {
		return models.Page{}, fmt.Errorf("write %s: %w", w.Page.Name, err)
	}
	page := w.Page
	page.UUID = out.(string)
	return page, nil
}

const prunePagesCypher = `
MATCH (d:Document {uuid: $documentId})-[:HAS_PAGE]->(p:Page)
WHERE coalesce(toInteger(replace(p.name, 'Page ', '')), 0) > $keep
OPTIONAL MATCH (p)-[:HAS_CHILD|HAS_QUESTION|HAS_SUMMARY]->(n)
WITH collect(DISTINCT p) AS pages, collect(DISTINCT n) AS nodes
FOREACH (x IN nodes | DETACH DELETE x)
FOREACH (x IN pages | DETACH DELETE x)
RETURN size(pages) AS pruned`

func (c *Client) PrunePages(ctx context.Context, documentID string, keep int) (int, error) {
	out, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		recs, err := collect(ctx, tx, prunePagesCypher, map[string]any{"documentId": documentID, "keep": keep})
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return 0, nil
		}
		return recordInt(recs[0], "pruned"), nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune pages of %s: %w", documentID, err)
	}
	return out.(int), nil
}

const dropQuestionsCypher = `
MATCH (p:Page {uuid: $pageId})
OPTIONAL MATCH (p)-[:HAS_QUESTION]->(q:Question)
DETACH DELETE q
RETURN DISTINCT p.uuid AS uuid`

const createQuestionsCypher = `
MATCH (p:Page {uuid: $pageId})
UNWIND $questions AS row
CREATE (p)-[:HAS_QUESTION]->(q:Question {uuid: row.uuid, name: row.name, text: row.text, source: p.uuid, datecreated: datetime()})
WITH q, row
CALL db.create.setNodeVectorProperty(q, 'embedding', row.embedding)`

// ReplaceQuestions swaps the page's question set for qs. An empty qs clears it.
func (c *Client) ReplaceQuestions(ctx context.Context, pageID string, qs []models.Question) error {
	_, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		recs, err := collect(ctx, tx, dropQuestionsCypher, map[string]any{"pageId": pageID})
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, fmt.Errorf("page %s: %w", pageID, models.ErrNotFound)
		}
		if len(qs) == 0 {
			return nil, nil
		}
		return nil, exec(ctx, tx, createQuestionsCypher, map[string]any{
			"pageId":    pageID,
			"questions": questionRows(qs),
		})
	})
	if err != nil {
		return fmt.Errorf("replace questions: %w", err)
	}
	return nil
}

const mergeSummaryCypher = `
MATCH (p:Page {uuid: $pageId})
MERGE (p)-[:HAS_SUMMARY]->(s:Summary)
ON CREATE SET s.uuid = $uuid, s.datecreated = datetime()
SET s.text = $text, s.name = p.name, s.source = p.uuid
WITH s
CALL db.create.setNodeVectorProperty(s, 'embedding', $embedding)
RETURN s.uuid AS uuid`

// MergeSummary keeps exactly one summary per page, updating it in place.
func (c *Client) MergeSummary(ctx context.Context, pageID string, s models.Summary) error {
	_, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		recs, err := collect(ctx, tx, mergeSummaryCypher, map[string]any{
			"pageId":    pageID,
			"uuid":      s.UUID,
			"text":      s.Text,
			"embedding": toFloat64s(s.Embedding),
		})
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, fmt.Errorf("page %s: %w", pageID, models.ErrNotFound)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("merge summary: %w", err)
	}
	return nil
}

func childRows(children []models.Child) []map[string]any {
	rows := make([]map[string]any, len(children))
	for i, ch := range children {
		rows[i] = map[string]any{
			"uuid":      ch.UUID,
			"name":      ch.Name,
			"text":      ch.Text,
			"embedding": toFloat64s(ch.Embedding),
		}
	}
	return rows
}

func questionRows(qs []models.Question) []map[string]any {
	rows := make([]map[string]any, len(qs))
	for i, q := range qs {
		rows[i] = map[string]any{
			"uuid":      q.UUID,
			"name":      q.Name,
			"text":      q.Text,
			"embedding": toFloat64s(q.Embedding),
		}
	}
	return rows
}

func toFloat64s(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
