package graphdb

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/markdave123-py/contexta-graph/internal/config"
	"github.com/markdave123-py/contexta-graph/internal/core"
	"github.com/markdave123-py/contexta-graph/internal/logger"
)

var (
	_ core.PageStore         = (*Client)(nil)
	_ core.DocumentStore     = (*Client)(nil)
	_ core.VectorSearcher    = (*Client)(nil)
	_ core.HierarchyResolver = (*Client)(nil)
	_ core.UserStore         = (*Client)(nil)
)

var indexName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Client is the Neo4j graph store. One instance is shared by the API and the
// worker; the driver pools its own connections.
type Client struct {
	driver     neo4j.DriverWithContext
	database   string
	childIndex string
	pageIndex  string
	embedDim   int
	log        *logger.Logger
}

// NewClient opens the driver and verifies connectivity.
func NewClient(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	for _, name := range []string{cfg.Neo4jIndexName, cfg.Neo4jParentIndexName} {
		if !indexName.MatchString(name) {
			return nil, fmt.Errorf("graphdb: invalid index name %q", name)
		}
	}
	maxPool := cfg.Neo4jMaxPool
	if maxPool <= 0 {
		maxPool = 50
	}

	auth := neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, "")
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, auth, func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = maxPool
		c.SocketConnectTimeout = 10 * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("graphdb: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graphdb: verify connectivity: %w", err)
	}

	return &Client{
		driver:     driver,
		database:   cfg.Neo4jDatabase,
		childIndex: cfg.Neo4jIndexName,
		pageIndex:  cfg.Neo4jParentIndexName,
		embedDim:   cfg.EmbedDim,
		log:        log.With("client", "Neo4jGraph"),
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.driver == nil {
		return nil
	}
	return c.driver.Close(ctx)
}

func (c *Client) write(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error) {
	session := c.driver.NewSession(ctx, neo4jWriteConfig(c.database))
	defer session.Close(ctx)
	return session.ExecuteWrite(ctx, work)
}

func neo4jWriteConfig(database string) neo4j.SessionConfig {
	return neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: database}
}

func (c *Client) read(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: c.database,
	})
	defer session.Close(ctx)
	return session.ExecuteRead(ctx, work)
}

// readRecords runs a single read query and returns every record.
func (c *Client) readRecords(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	out, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return collect(ctx, tx, cypher, params)
	})
	if err != nil {
		return nil, err
	}
	return out.([]*neo4j.Record), nil
}

func collect(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return res.Collect(ctx)
}

func exec(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) error {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}
