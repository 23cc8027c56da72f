package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"promptpipe/internal/pipeline"
)

const pipelineCacheSize = 256

// Postgres persists through database/sql over the pgx stdlib driver.
// Pipeline definitions are stored as one JSONB document per pipeline and
// read through an LRU cache; runs and results are row-per-entity.
type Postgres struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error

	pipelineCache *lru.Cache[string, pipeline.Pipeline]
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, pipeline.Pipeline](pipelineCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db, pipelineCache: cache}, nil
}

func (s *Postgres) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS pipelines (
    id   TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    spec JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
    id           TEXT PRIMARY KEY,
    pipeline_id  TEXT NOT NULL,
    status       TEXT NOT NULL,
    started_at   TIMESTAMPTZ NOT NULL,
    completed_at TIMESTAMPTZ,
    metadata     JSONB NOT NULL DEFAULT '{}'::jsonb
);
CREATE TABLE IF NOT EXISTS results (
    run_id     TEXT NOT NULL,
    position   INT NOT NULL,
    step_id    TEXT NOT NULL,
    step_name  TEXT NOT NULL,
    content    TEXT NOT NULL,
    metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (run_id, position)
);`)
	})
	return s.schemaErr
}

func (s *Postgres) GetPipeline(ctx context.Context, id string) (pipeline.Pipeline, error) {
	if p, ok := s.pipelineCache.Get(id); ok {
		return p, nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return pipeline.Pipeline{}, err
	}
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT spec FROM pipelines WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.Pipeline{}, ErrNotFound
	}
	if err != nil {
		return pipeline.Pipeline{}, fmt.Errorf("store: get pipeline: %w", err)
	}
	var p pipeline.Pipeline
	if err := json.Unmarshal(raw, &p); err != nil {
		return pipeline.Pipeline{}, fmt.Errorf("store: decode pipeline %s: %w", id, err)
	}
	s.pipelineCache.Add(id, p)
	return p, nil
}

func (s *Postgres) ListPipelines(ctx context.Context) ([]pipeline.Pipeline, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT spec FROM pipelines ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list pipelines: %w", err)
	}
	defer rows.Close()
	var out []pipeline.Pipeline
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var p pipeline.Pipeline
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) SavePipeline(ctx context.Context, p pipeline.Pipeline) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO pipelines (id, name, spec) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, spec = EXCLUDED.spec`,
		p.ID, p.Name, raw)
	if err != nil {
		return fmt.Errorf("store: save pipeline: %w", err)
	}
	s.pipelineCache.Remove(p.ID)
	return nil
}

func (s *Postgres) CreateRun(ctx context.Context, run pipeline.Run) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	meta, err := json.Marshal(orEmpty(run.Metadata))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO runs (id, pipeline_id, status, started_at, metadata)
VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.PipelineID, string(run.Status), run.StartedAt, meta)
	if err != nil {
		return fmt.Errorf("store: create run: %w", err)
	}
	return nil
}

func (s *Postgres) GetRun(ctx context.Context, id string) (pipeline.Run, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return pipeline.Run{}, err
	}
	var (
		run       pipeline.Run
		status    string
		completed sql.NullTime
		meta      []byte
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, pipeline_id, status, started_at, completed_at, metadata
FROM runs WHERE id = $1`, id).
		Scan(&run.ID, &run.PipelineID, &status, &run.StartedAt, &completed, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.Run{}, ErrNotFound
	}
	if err != nil {
		return pipeline.Run{}, fmt.Errorf("store: get run: %w", err)
	}
	run.Status = pipeline.RunStatus(status)
	if completed.Valid {
		t := completed.Time
		run.CompletedAt = &t
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &run.Metadata); err != nil {
			log.Printf("store: decode metadata for run %s: %v", id, err)
		}
	}
	return run, nil
}

// FinishRun performs the check-and-transition inside one transaction so a
// run can never leave running twice.
func (s *Postgres) FinishRun(ctx context.Context, id string, status pipeline.RunStatus, metadata map[string]any) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM runs WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: finish run: %w", err)
	}
	if pipeline.RunStatus(current).Terminal() {
		return ErrRunFinished
	}
	meta, err := json.Marshal(orEmpty(metadata))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE runs SET status = $2, completed_at = $3, metadata = $4 WHERE id = $1`,
		id, string(status), time.Now().UTC(), meta); err != nil {
		return fmt.Errorf("store: finish run: %w", err)
	}
	return tx.Commit()
}

// AppendResult assigns the next position inside one transaction to keep
// results in strict execution order.
func (s *Postgres) AppendResult(ctx context.Context, res pipeline.Result) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	meta, err := json.Marshal(res.Metadata)
	if err != nil {
		return err
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM results WHERE run_id = $1`, res.RunID).Scan(&next); err != nil {
		return fmt.Errorf("store: append result: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO results (run_id, position, step_id, step_name, content, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		res.RunID, next, res.StepID, res.StepName, res.Text, meta, res.CreatedAt); err != nil {
		return fmt.Errorf("store: append result: %w", err)
	}
	return tx.Commit()
}

func (s *Postgres) ListResults(ctx context.Context, runID string) ([]pipeline.Result, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, step_id, step_name, content, metadata, created_at
FROM results WHERE run_id = $1 ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: list results: %w", err)
	}
	defer rows.Close()
	var out []pipeline.Result
	for rows.Next() {
		var (
			res  pipeline.Result
			meta []byte
		)
		if err := rows.Scan(&res.RunID, &res.StepID, &res.StepName, &res.Text, &meta, &res.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &res.Metadata); err != nil {
				log.Printf("store: decode metadata for run %s result %s: %v", runID, res.StepID, err)
			}
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (s *Postgres) Close() error { return s.db.Close() }

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
