package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/contexta-graph/internal/config"
	"github.com/markdave123-py/contexta-graph/internal/core"
	"github.com/markdave123-py/contexta-graph/internal/models"
)

var _ core.JobStore = (*JobStore)(nil)

// JobStore is the Postgres result backend for ingestion jobs.
type JobStore struct {
	db *sql.DB
}

func NewJobStore(ctx context.Context, cfg *config.Config) (*JobStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &JobStore{db: db}, nil
}

func (s *JobStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *JobStore) CreateJob(ctx context.Context, job *models.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("%w: job id required", models.ErrInvalidInput)
	}
	if job.Status == "" {
		job.Status = models.StatusPending
	}
	meta, err := json.Marshal(job.Meta)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		INSERT INTO ingest_jobs (id, status, document_id, meta)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at
	`
	err = tx.QueryRowContext(ctx, q, job.ID, string(job.Status), job.DocumentID, string(meta)).Scan(&job.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: job %s already exists", models.ErrInvalidInput, job.ID)
	}
	if err != nil {
		return err
	}
	job.UpdatedAt = job.CreatedAt
	if err := insertEvent(ctx, tx, job.ID, job.Status, "queued"); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *JobStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	const q = `
		SELECT id, status, document_id, meta, error, requeues, created_at, updated_at
		FROM ingest_jobs WHERE id = $1
	`
	var (
		job    models.Job
		status string
		meta   []byte
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&job.ID, &status, &job.DocumentID, &meta, &job.Error, &job.Requeues, &job.CreatedAt, &job.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	job.Status = models.JobStatus(status)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &job.Meta); err != nil {
			return nil, fmt.Errorf("decode meta: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, note, at FROM ingest_job_events WHERE job_id = $1 ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ev models.JobEvent
		var st string
		if err := rows.Scan(&st, &ev.Note, &ev.At); err != nil {
			return nil, err
		}
		ev.Status = models.JobStatus(st)
		job.History = append(job.History, ev)
	}
	return &job, rows.Err()
}

func (s *JobStore) UpdateStatus(ctx context.Context, id string, to models.JobStatus, meta models.JobMeta, note string) error {
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return s.withLockedJob(ctx, id, to, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE ingest_jobs SET status = $2, meta = $3, updated_at = now() WHERE id = $1
		`, id, string(to), string(rawMeta))
		if err != nil {
			return err
		}
		return insertEvent(ctx, tx, id, to, note)
	})
}

func (s *JobStore) Requeue(ctx context.Context, id string, note string) (int, error) {
	var count int
	err := s.withLockedJob(ctx, id, models.StatusPending, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE ingest_jobs SET status = $2, requeues = requeues + 1, updated_at = now()
			WHERE id = $1 RETURNING requeues
		`, id, string(models.StatusPending)).Scan(&count)
		if err != nil {
			return err
		}
		return insertEvent(ctx, tx, id, models.StatusPending, note)
	})
	return count, err
}

func (s *JobStore) Finish(ctx context.Context, id string, to models.JobStatus, result *models.JobResult, detail string) error {
	if !to.IsTerminal() {
		return fmt.Errorf("%w: %s is not terminal", models.ErrInvalidTransition, to)
	}
	var resultArg any
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return err
		}
		resultArg = string(raw)
	}
	return s.withLockedJob(ctx, id, to, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE ingest_jobs SET status = $2, error = $3, result = $4, updated_at = now() WHERE id = $1
		`, id, string(to), detail, resultArg)
		if err != nil {
			return err
		}
		return insertEvent(ctx, tx, id, to, detail)
	})
}

func (s *JobStore) GetResult(ctx context.Context, id string) (*models.JobResult, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT result FROM ingest_jobs WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(raw) == 0) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var res models.JobResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &res, nil
}

// withLockedJob validates the transition under a row lock and runs apply in
// the same transaction.
func (s *JobStore) withLockedJob(ctx context.Context, id string, to models.JobStatus, apply func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM ingest_jobs WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrJobNotFound
	}
	if err != nil {
		return err
	}
	if err := models.ValidateTransition(models.JobStatus(current), to); err != nil {
		return err
	}
	if err := apply(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func insertEvent(ctx context.Context, tx *sql.Tx, id string, status models.JobStatus, note string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ingest_job_events (job_id, status, note) VALUES ($1, $2, $3)
	`, id, string(status), note)
	return err
}
