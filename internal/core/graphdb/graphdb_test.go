package graphdb

import (
	"strings"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-graph/internal/models"
)

func TestSchemaStatements(t *testing.T) {
	stmts := schemaStatements("typical_rag", "parent_document", 768)
	require.Len(t, stmts, len(uuidLabels)+3)

	assert.Contains(t, stmts[0], "document_uuid_unique")
	assert.Contains(t, stmts[6], "user_action_uuid_unique")
	assert.Contains(t, stmts[6], "(n:UserAction)")

	child := stmts[len(stmts)-2]
	assert.True(t, strings.HasPrefix(child, "CREATE VECTOR INDEX typical_rag IF NOT EXISTS FOR (n:Child)"))
	assert.Contains(t, child, "`vector.dimensions`: 768")
	assert.Contains(t, child, "'cosine'")
	assert.Contains(t, stmts[len(stmts)-1], "parent_document IF NOT EXISTS FOR (n:Page)")
}

func TestIndexNamePattern(t *testing.T) {
	assert.True(t, indexName.MatchString("typical_rag"))
	assert.False(t, indexName.MatchString("bad-name"))
	assert.False(t, indexName.MatchString("x) DETACH DELETE n //"))
	assert.False(t, indexName.MatchString(""))
}

func TestChildRows(t *testing.T) {
	rows := childRows([]models.Child{{UUID: "c1", Name: "1-1", Text: "t", Embedding: []float32{0.5, 1}}})
	require.Len(t, rows, 1)
	assert.Equal(t, "c1", rows[0]["uuid"])
	assert.Equal(t, []float64{0.5, 1}, rows[0]["embedding"])
}

func TestDocumentPropsRoundTrip(t *testing.T) {
	doc := &models.Document{
		UUID: "d1", Name: "Doc", URL: "https://example.com", Text: "body",
		ImageURL: "img", Publisher: "example.com", AddedDate: "2024-01-01T00:00:00Z",
		Thumbnail: "thumb", WordCount: 12, ProcessFlag: true,
	}
	assert.Equal(t, *doc, decodeDocument(documentProps(doc)))
}

func TestDecodeUser(t *testing.T) {
	u := decodeUser(map[string]any{
		"uuid": "u1", "username": "admin", "password": "hash",
		"admin": true, "disabled": false, "datecreated": "2024-05-01T10:00:00Z",
	})
	assert.Equal(t, "admin", u.Username)
	assert.Equal(t, "hash", u.PasswordHash)
	assert.True(t, u.Admin)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), u.DateCreated)
}

func TestDecodeHierarchyOrdersPagesAndNodes(t *testing.T) {
	page := func(id, name string, children ...string) map[string]any {
		var cs []any
		for _, c := range children {
			cs = append(cs, map[string]any{"uuid": "c-" + c, "name": c, "text": "x"})
		}
		return map[string]any{
			"uuid": id, "name": name,
			"summaries": []any{map[string]any{"uuid": "s-" + id, "name": name, "text": "sum"}},
			"questions": []any{},
			"children":  cs,
		}
	}
	h := decodeHierarchy(
		map[string]any{"uuid": "d1", "name": "Doc", "wordcount": int64(40)},
		[]any{
			page("p10", "Page 10", "10-1"),
			page("p2", "Page 2", "2-10", "2-2"),
			nil,
			page("p1", "Page 1", "1-1"),
		},
	)

	assert.Equal(t, "d1", h.Document.UUID)
	assert.Equal(t, 40, h.Document.WordCount)
	require.Len(t, h.Pages, 3)
	assert.Equal(t, []string{"Page 1", "Page 2", "Page 10"},
		[]string{h.Pages[0].Name, h.Pages[1].Name, h.Pages[2].Name})
	require.Len(t, h.Pages[1].Children, 2)
	assert.Equal(t, "2-2", h.Pages[1].Children[0].Name)
	assert.Equal(t, "2-10", h.Pages[1].Children[1].Name)
	assert.Len(t, h.Pages[0].Summaries, 1)
	assert.Empty(t, h.Pages[0].Questions)
}

func TestDecodeMatches(t *testing.T) {
	recs := []*neo4j.Record{
		{Keys: []string{"uuid", "text", "score"}, Values: []any{"a", "alpha", 0.91}},
		{Keys: []string{"uuid", "text", "score"}, Values: []any{nil, "orphan", 0.8}},
		{Keys: []string{"uuid", "text", "score"}, Values: []any{"b", "beta", 0.6}},
	}
	got := decodeMatches(recs)
	require.Len(t, got, 2)
	assert.Equal(t, models.Match{UUID: "a", Text: "alpha", Score: 0.91}, got[0])
	assert.Equal(t, "b", got[1].UUID)
}
