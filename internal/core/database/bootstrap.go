package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

const schemaVersion = 1

// bootstrapLockKey is the advisory lock taken while the job tables are
// created; the API and worker processes may start at the same time.
const bootstrapLockKey int64 = 0x636f6e7478

// EnsureBootstrapped applies scripts/initdb.sql unless contexta_meta already
// records schemaVersion.
func EnsureBootstrapped(ctx context.Context, db *sql.DB) error {
	ctxBoot, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	tx, err := db.BeginTx(ctxBoot, nil)
	if err != nil {
		return fmt.Errorf("begin bootstrap tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctxBoot, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockKey); err != nil {
		return fmt.Errorf("bootstrap lock: %w", err)
	}

	current, err := appliedVersion(ctxBoot, tx)
	if err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	script, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return fmt.Errorf("read initdb.sql: %w", err)
	}
	if _, err := tx.ExecContext(ctxBoot, string(script)); err != nil {
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	return nil
}

// appliedVersion returns 0 when the meta table does not exist yet.
func appliedVersion(ctx context.Context, tx *sql.Tx) (int, error) {
	var present bool
	if err := tx.QueryRowContext(ctx, `SELECT to_regclass('contexta_meta') IS NOT NULL`).Scan(&present); err != nil {
		return 0, fmt.Errorf("meta table check: %w", err)
	}
	if !present {
		return 0, nil
	}
	var v sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT max(version) FROM contexta_meta`).Scan(&v); err != nil {
		return 0, fmt.Errorf("meta version check: %w", err)
	}
	return int(v.Int64), nil
}
