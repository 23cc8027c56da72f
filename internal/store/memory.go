package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"promptpipe/internal/pipeline"
)

// Memory is the fallback store used when no database DSN is configured,
// and the store of choice in tests.
type Memory struct {
	mu        sync.RWMutex
	pipelines map[string]pipeline.Pipeline
	runs      map[string]pipeline.Run
	results   map[string][]pipeline.Result
}

func NewMemory() *Memory {
	return &Memory{
		pipelines: make(map[string]pipeline.Pipeline),
		runs:      make(map[string]pipeline.Run),
		results:   make(map[string][]pipeline.Result),
	}
}

func (m *Memory) GetPipeline(_ context.Context, id string) (pipeline.Pipeline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pipelines[id]
	if !ok {
		return pipeline.Pipeline{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListPipelines(_ context.Context) ([]pipeline.Pipeline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]pipeline.Pipeline, 0, len(m.pipelines))
	for _, p := range m.pipelines {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SavePipeline(_ context.Context, p pipeline.Pipeline) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pipelines[p.ID] = p
	return nil
}

func (m *Memory) CreateRun(_ context.Context, run pipeline.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) GetRun(_ context.Context, id string) (pipeline.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return pipeline.Run{}, ErrNotFound
	}
	return run, nil
}

func (m *Memory) FinishRun(_ context.Context, id string, status pipeline.RunStatus, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return ErrNotFound
	}
	if run.Status.Terminal() {
		return ErrRunFinished
	}
	now := time.Now().UTC()
	run.Status = status
	run.CompletedAt = &now
	run.Metadata = metadata
	m.runs[id] = run
	return nil
}

func (m *Memory) AppendResult(_ context.Context, res pipeline.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[res.RunID]; !ok {
		return ErrNotFound
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	m.results[res.RunID] = append(m.results[res.RunID], res)
	return nil
}

func (m *Memory) ListResults(_ context.Context, runID string) ([]pipeline.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]pipeline.Result(nil), m.results[runID]...), nil
}

func (m *Memory) Close() error { return nil }
