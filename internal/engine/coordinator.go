// Package engine owns run lifecycle: it sequences a pipeline's steps,
// builds each prompt from fragments and prior outputs, calls the model
// gateway, persists results, and emits lifecycle events.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"promptpipe/internal/llm"
	"promptpipe/internal/metrics"
	"promptpipe/internal/pipeline"
	"promptpipe/internal/prompt"
	"promptpipe/internal/registry"
	"promptpipe/internal/store"
)

// ValidationError is bad input caught before any run row is written.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Invoker is the model gateway surface the coordinator needs.
type Invoker interface {
	Invoke(ctx context.Context, backend, prompt string, cfg pipeline.GenerationConfig) (llm.Result, error)
}

// Coordinator drives runs. Construct once and share; all methods are safe
// for concurrent use. Steps within one run are strictly sequential because
// later prompts may reference earlier outputs.
type Coordinator struct {
	store     store.Store
	invoker   Invoker
	backends  *registry.Registry
	broadcast Broadcaster
}

func New(st store.Store, inv Invoker, backends *registry.Registry, broadcast Broadcaster) *Coordinator {
	return &Coordinator{store: st, invoker: inv, backends: backends, broadcast: broadcast}
}

// Start validates the pipeline, creates the run row, and returns the run
// id immediately; execution proceeds on its own goroutine. A pipeline that
// does not exist or has no steps fails validation and writes nothing.
func (c *Coordinator) Start(ctx context.Context, pipelineID string) (string, error) {
	p, err := c.store.GetPipeline(ctx, pipelineID)
	if errors.Is(err, store.ErrNotFound) {
		return "", &ValidationError{Msg: fmt.Sprintf("pipeline %s not found", pipelineID)}
	}
	if err != nil {
		return "", err
	}
	if len(p.Steps) == 0 {
		return "", &ValidationError{Msg: fmt.Sprintf("pipeline %s has no steps", pipelineID)}
	}

	run := pipeline.Run{
		ID:         uuid.NewString(),
		PipelineID: p.ID,
		Status:     pipeline.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
		Metadata: map[string]any{
			"pipelineName": p.Name,
			"stepCount":    len(p.Steps),
		},
	}
	if err := c.store.CreateRun(ctx, run); err != nil {
		return "", err
	}
	metrics.RunsStarted.Inc()

	// Runs are not cancellable once started; the goroutine owns its own
	// context and always reaches a terminal status update.
	go c.execute(context.Background(), p, run.ID)

	return run.ID, nil
}

// Poll returns the run record plus its ordered results; the list is empty
// while no step has completed yet.
func (c *Coordinator) Poll(ctx context.Context, runID string) (pipeline.Run, []pipeline.Result, error) {
	run, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return pipeline.Run{}, nil, err
	}
	results, err := c.store.ListResults(ctx, runID)
	if err != nil {
		return pipeline.Run{}, nil, err
	}
	return run, results, nil
}

func (c *Coordinator) execute(ctx context.Context, p pipeline.Pipeline, runID string) {
	defer func() {
		if r := recover(); r != nil {
			c.fail(ctx, runID, fmt.Errorf("run panicked: %v", r))
		}
	}()

	rctx := prompt.NewContext()
	n := len(p.Steps)
	models := make([]string, 0, n)

	for i, step := range p.Steps {
		c.emit(progressEvent(runID, step.Name, float64(i)/float64(n)*100))

		raw := prompt.Assemble(step, rctx)
		addr, cfg := c.resolveBackend(step.Config)

		started := time.Now()
		res, err := c.invoker.Invoke(ctx, addr, raw, cfg)
		if err != nil {
			c.fail(ctx, runID, err)
			return
		}
		elapsed := time.Since(started)
		metrics.StepDuration.Observe(elapsed.Seconds())

		model := addr + "/" + string(llm.ParseDialect(cfg.Dialect))
		md := pipeline.ResultMetadata{
			Tokens:           res.Metadata.Tokens,
			PromptTokens:     res.Metadata.PromptTokens,
			CompletionTokens: res.Metadata.CompletionTokens,
			FinishReason:     res.Metadata.FinishReason,
			DurationMs:       elapsed.Milliseconds(),
			TokensPerSec:     throughput(res.Metadata.CompletionTokens, elapsed),
			Model:            model,
		}
		result := pipeline.Result{
			RunID:    runID,
			StepID:   step.ID,
			StepName: step.Name,
			Text:     res.Text,
			Metadata: md,
		}
		if err := c.store.AppendResult(ctx, result); err != nil {
			c.fail(ctx, runID, fmt.Errorf("persist result for step %s: %w", step.Name, err))
			return
		}

		rctx.Append(step.ID, step.Name, res.Text)
		models = append(models, model)
		c.emit(payloadEvent(runID, step.Name, res.Text, md))
	}

	meta := map[string]any{
		"pipelineName": p.Name,
		"stepCount":    n,
		"models":       models,
	}
	if err := c.store.FinishRun(ctx, runID, pipeline.RunStatusCompleted, meta); err != nil {
		// A run must never end up stuck in running with subscribers told
		// it completed; take the failed path instead.
		c.fail(ctx, runID, fmt.Errorf("mark run completed: %w", err))
		return
	}
	metrics.RunsCompleted.Inc()
	c.emit(completedEvent(runID))
}

// fail moves the run to its terminal failed state, preserving the cause
// message verbatim in run metadata. Already-stored results are kept.
func (c *Coordinator) fail(ctx context.Context, runID string, cause error) {
	meta := map[string]any{"error": cause.Error()}
	if run, err := c.store.GetRun(ctx, runID); err == nil {
		for k, v := range run.Metadata {
			meta[k] = v
		}
		meta["error"] = cause.Error()
	}
	if err := c.store.FinishRun(ctx, runID, pipeline.RunStatusFailed, meta); err != nil {
		log.Printf("run %s: mark failed: %v", runID, err)
	}
	metrics.RunsFailed.Inc()
	c.emit(failedEvent(runID, cause.Error()))
}

// resolveBackend maps a registry name in the step config to its address
// and default dialect; a raw address passes through untouched.
func (c *Coordinator) resolveBackend(cfg pipeline.GenerationConfig) (string, pipeline.GenerationConfig) {
	if b, ok := c.backends.Resolve(cfg.Backend); ok {
		if cfg.Dialect == "" {
			cfg.Dialect = b.Dialect
		}
		return b.Address, cfg
	}
	return cfg.Backend, cfg
}

func (c *Coordinator) emit(e Event) {
	if c.broadcast != nil {
		c.broadcast(e)
	}
}

func throughput(completionTokens int, elapsed time.Duration) float64 {
	secs := elapsed.Seconds()
	if secs <= 0 || completionTokens <= 0 {
		return 0
	}
	return float64(completionTokens) / secs
}
