package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-graph/internal/config"
)

func TestBootstrapScript(t *testing.T) {
	raw, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	require.NoError(t, err)
	script := string(raw)
	for _, table := range []string{"contexta_meta", "ingest_jobs", "ingest_job_events"} {
		assert.Contains(t, script, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, script, fmt.Sprintf("VALUES (%d)", schemaVersion))
}

func TestNewJobStore_RequiresURL(t *testing.T) {
	_, err := NewJobStore(context.Background(), nil)
	assert.Error(t, err)
	_, err = NewJobStore(context.Background(), &config.Config{})
	assert.ErrorContains(t, err, "DATABASE_URL")
}
