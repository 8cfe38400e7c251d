package graphdb

import (
	"context"
	"fmt"

	"github.com/markdave123-py/contexta-graph/internal/models"
)

const searchChildrenCypher = `
CALL db.index.vector.queryNodes($index, $k, $vector) YIELD node, score
WHERE score >= $minScore
RETURN node.uuid AS uuid, node.text AS text, score
ORDER BY score DESC`

// Pages are scored by their best child and by their own embedding.
const searchPagesCypher = `
CALL {
  CALL db.index.vector.queryNodes($childIndex, $fetch, $vector) YIELD node, score
  MATCH (p:Page)-[:HAS_CHILD]->(node)
  RETURN p, score
  UNION ALL
  CALL db.index.vector.queryNodes($pageIndex, $k, $vector) YIELD node, score
  RETURN node AS p, score
}
WITH p, max(score) AS score
WHERE score >= $minScore
RETURN p.uuid AS uuid, p.text AS text, score
ORDER BY score DESC
LIMIT $k`

func (c *Client) SearchChildren(ctx context.Context, vector []float32, k int, minScore float64) ([]models.Match, error) {
	recs, err := c.readRecords(ctx, searchChildrenCypher, map[string]any{
		"index":    c.childIndex,
		"k":        int64(k),
		"vector":   toFloat64s(vector),
		"minScore": minScore,
	})
	if err != nil {
		return nil, fmt.Errorf("search children: %w", err)
	}
	return decodeMatches(recs), nil
}

func (c *Client) SearchPages(ctx context.Context, vector []float32, k int, minScore float64) ([]models.Match, error) {
	recs, err := c.readRecords(ctx, searchPagesCypher, map[string]any{
		"childIndex": c.childIndex,
		"pageIndex":  c.pageIndex,
		"k":          int64(k),
		"fetch":      int64(k * 4),
		"vector":     toFloat64s(vector),
		"minScore":   minScore,
	})
	if err != nil {
		return nil, fmt.Errorf("search pages: %w", err)
	}
	return decodeMatches(recs), nil
}

const documentsForNodesCypher = `
UNWIND $ids AS id
CALL {
  WITH id
  MATCH (d:Document)-[:HAS_PAGE]->(:Page {uuid: id})
  RETURN d.uuid AS doc
  UNION
  WITH id
  MATCH (d:Document)-[:HAS_PAGE]->(:Page)-[:HAS_CHILD|HAS_QUESTION|HAS_SUMMARY]->({uuid: id})
  RETURN d.uuid AS doc
}
RETURN id, doc`

func (c *Client) DocumentsForNodes(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	recs, err := c.readRecords(ctx, documentsForNodesCypher, map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("resolve documents: %w", err)
	}
	for _, rec := range recs {
		if id, doc := recordString(rec, "id"), recordString(rec, "doc"); id != "" && doc != "" {
			out[id] = doc
		}
	}
	return out, nil
}

const documentHierarchyCypher = `
MATCH (d:Document {uuid: $documentId})
OPTIONAL MATCH (d)-[:HAS_PAGE]->(p:Page)
CALL {
  WITH p
  OPTIONAL MATCH (p)-[:HAS_SUMMARY]->(s:Summary)
  RETURN collect(s {.uuid, .name, .text}) AS summaries
}
CALL {
  WITH p
  OPTIONAL MATCH (p)-[:HAS_QUESTION]->(q:Question)
  RETURN collect(q {.uuid, .name, .text}) AS questions
}
CALL {
  WITH p
  OPTIONAL MATCH (p)-[:HAS_CHILD]->(c:Child)
  RETURN collect(c {.uuid, .name, .text}) AS children
}
WITH d, p, summaries, questions, children
ORDER BY toInteger(replace(p.name, 'Page ', ''))
RETURN d {.uuid, .name, .addeddate, .imageurl, .publisher, .thumbnail, .url, .wordcount} AS document,
       collect(CASE WHEN p IS NULL THEN NULL ELSE
         {uuid: p.uuid, name: p.name, summaries: summaries, questions: questions, children: children}
       END) AS pages`

// DocumentHierarchy returns the document with its pages ordered by index and
// each page's summaries, questions and children.
func (c *Client) DocumentHierarchy(ctx context.Context, documentID string) (*models.DocumentHierarchy, error) {
	recs, err := c.readRecords(ctx, documentHierarchyCypher, map[string]any{"documentId": documentID})
	if err != nil {
		return nil, fmt.Errorf("document hierarchy: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("document %s: %w", documentID, models.ErrNotFound)
	}
	pages, _ := recordValue(recs[0], "pages").([]any)
	return decodeHierarchy(recordMap(recs[0], "document"), pages), nil
}
