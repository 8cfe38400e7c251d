package graphdb

import (
	"context"
	"fmt"
)

var uuidLabels = []string{"Document", "Page", "Child", "Question", "Summary", "User", "UserAction"}

func schemaStatements(childIndex, pageIndex string, dim int) []string {
	stmts := make([]string, 0, len(uuidLabels)+3)
	for _, label := range uuidLabels {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE CONSTRAINT %s_uuid_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.uuid IS UNIQUE",
			toSnake(label), label))
	}
	stmts = append(stmts,
		"CREATE CONSTRAINT user_username_unique IF NOT EXISTS FOR (u:User) REQUIRE u.username IS UNIQUE",
		vectorIndex(childIndex, "Child", dim),
		vectorIndex(pageIndex, "Page", dim),
	)
	return stmts
}

func vectorIndex(name, label string, dim int) string {
	return fmt.Sprintf("CREATE VECTOR INDEX %s IF NOT EXISTS FOR (n:%s) ON (n.embedding) "+
		"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}",
		name, label, dim)
}

func toSnake(label string) string {
	out := make([]rune, 0, len(label)+2)
	for i, r := range label {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				out = append(out, '_')
			}
			r += 'a' - 'A'
		}
		out = append(out, r)
	}
	return string(out)
}

// EnsureSchema creates constraints and vector indexes. Failures are logged
// and skipped so a read-only replica or an older server does not block startup.
func (c *Client) EnsureSchema(ctx context.Context) {
	session := c.driver.NewSession(ctx, neo4jWriteConfig(c.database))
	defer session.Close(ctx)

	for _, q := range schemaStatements(c.childIndex, c.pageIndex, c.embedDim) {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			c.log.Warn("neo4j schema init failed (continuing)", "statement", q, "error", err)
			continue
		}
		if _, err := res.Consume(ctx); err != nil {
			c.log.Warn("neo4j schema init failed (continuing)", "statement", q, "error", err)
		}
	}
	c.log.Info("Graph schema ensured", "child_index", c.childIndex, "page_index", c.pageIndex, "dimensions", c.embedDim)
}
