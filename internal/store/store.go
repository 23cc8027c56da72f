// Package store persists pipelines, runs, and results. The Postgres
// backend is used when a DSN is configured; the in-memory backend serves
// local development and tests.
package store

import (
	"context"
	"errors"

	"promptpipe/internal/pipeline"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrRunFinished guards the single running→terminal transition.
	ErrRunFinished = errors.New("store: run already finished")
)

type Store interface {
	GetPipeline(ctx context.Context, id string) (pipeline.Pipeline, error)
	ListPipelines(ctx context.Context) ([]pipeline.Pipeline, error)
	SavePipeline(ctx context.Context, p pipeline.Pipeline) error

	CreateRun(ctx context.Context, run pipeline.Run) error
	GetRun(ctx context.Context, id string) (pipeline.Run, error)
	// FinishRun moves a run to a terminal status exactly once, setting the
	// completion timestamp and replacing the run metadata.
	FinishRun(ctx context.Context, id string, status pipeline.RunStatus, metadata map[string]any) error

	// AppendResult adds the next result for a run; results keep strict
	// execution order.
	AppendResult(ctx context.Context, res pipeline.Result) error
	ListResults(ctx context.Context, runID string) ([]pipeline.Result, error)

	Close() error
}
