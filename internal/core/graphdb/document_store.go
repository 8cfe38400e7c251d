package graphdb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/markdave123-py/contexta-graph/internal/models"
)

const createDocumentCypher = `
CREATE (d:Document $props)
RETURN d.uuid AS uuid`

// The user action records who added the document and when.
const createDocumentWithActionCypher = `
MATCH (u:User {username: $username})
CREATE (d:Document $props)
CREATE (u)-[:HAS_ACTION {dateadded: $props.addeddate}]->(a:UserAction {uuid: $actionId, action: 'ADDED', datecreated: datetime()})-[:ADDED]->(d)
RETURN d.uuid AS uuid`

func documentProps(doc *models.Document) map[string]any {
	return map[string]any{
		"uuid":      doc.UUID,
		"name":      doc.Name,
		"url":       doc.URL,
		"text":      doc.Text,
		"note":      doc.Note,
		"imageurl":  doc.ImageURL,
		"publisher": doc.Publisher,
		"addeddate": doc.AddedDate,
		"thumbnail": doc.Thumbnail,
		"wordcount": int64(doc.WordCount),
		"process":   doc.ProcessFlag,
	}
}

// CreateDocument stores doc. With a username the document is linked to the
// user through an ADDED action; an unknown username is an error.
func (c *Client) CreateDocument(ctx context.Context, doc *models.Document, username string) error {
	if doc == nil || doc.UUID == "" {
		return fmt.Errorf("%w: document uuid required", models.ErrInvalidInput)
	}
	cypher := createDocumentCypher
	params := map[string]any{"props": documentProps(doc)}
	if username != "" {
		cypher = createDocumentWithActionCypher
		params["username"] = username
		params["actionId"] = uuid.NewString()
	}

	_, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		recs, err := collect(ctx, tx, cypher, params)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, fmt.Errorf("user %s: %w", username, models.ErrNotFound)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	recs, err := c.readRecords(ctx, `MATCH (d:Document {uuid: $uuid}) RETURN d {.*} AS doc`, map[string]any{"uuid": id})
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	doc := decodeDocument(recordMap(recs[0], "doc"))
	return &doc, nil
}

const listDocumentsCypher = `
MATCH (d:Document)
RETURN d {.uuid, .name, .url, .note, .imageurl, .publisher, .addeddate, .thumbnail, .wordcount, .process} AS doc
ORDER BY d.addeddate DESC
LIMIT $limit`

func (c *Client) ListDocuments(ctx context.Context, limit int) ([]models.Document, error) {
	return c.documents(ctx, listDocumentsCypher, limit)
}

const pendingDocumentsCypher = `
MATCH (d:Document)
WHERE NOT (d)-[:HAS_PAGE]->(:Page) AND d.text IS NOT NULL AND d.text <> '' AND d.process = true
RETURN d {.*} AS doc
ORDER BY d.addeddate
LIMIT $limit`

func (c *Client) PendingDocuments(ctx context.Context, limit int) ([]models.Document, error) {
	return c.documents(ctx, pendingDocumentsCypher, limit)
}

func (c *Client) documents(ctx context.Context, cypher string, limit int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	recs, err := c.readRecords(ctx, cypher, map[string]any{"limit": int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]models.Document, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeDocument(recordMap(rec, "doc")))
	}
	return out, nil
}
