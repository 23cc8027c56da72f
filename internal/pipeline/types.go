package pipeline

import (
	"strings"
	"time"
)

// Pipeline is an ordered sequence of steps executed as one unit.
type Pipeline struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// Step is a single LLM invocation template: ordered fragments plus the
// generation configuration used for the backend call. The step name is the
// key later steps use for {{name}} substitution.
type Step struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Fragments []Fragment       `json:"fragments"`
	Config    GenerationConfig `json:"config"`
}

// GenerationConfig selects the backend and shapes the request.
type GenerationConfig struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
	Backend     string  `json:"backend"`
	Dialect     string  `json:"dialect"`
}

// resultTagPrefix marks a fragment as a placeholder for a prior step's
// output; the source step id follows the prefix.
const resultTagPrefix = "result:"

// Fragment is a reusable piece of prompt text. A fragment tagged
// "result:<stepID>" stands in for that step's output; its literal text is
// the fallback when the referenced output is unavailable.
type Fragment struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Tag  string `json:"tag,omitempty"`
}

// ResultSource returns the source step id for a result-placeholder
// fragment, or false for an ordinary fragment.
func (f Fragment) ResultSource() (string, bool) {
	tag := strings.TrimSpace(f.Tag)
	if !strings.HasPrefix(tag, resultTagPrefix) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimPrefix(tag, resultTagPrefix))
	if id == "" {
		return "", false
	}
	return id, true
}

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether the status is one of the two end states.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// Run is one execution instance of a pipeline.
type Run struct {
	ID          string         `json:"id"`
	PipelineID  string         `json:"pipelineId"`
	Status      RunStatus      `json:"status"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Result is the stored output of one executed step within a run. Results
// are append-only and kept in strict execution order.
type Result struct {
	RunID     string         `json:"runId"`
	StepID    string         `json:"stepId"`
	StepName  string         `json:"stepName"`
	Text      string         `json:"text"`
	Metadata  ResultMetadata `json:"metadata"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ResultMetadata carries normalized usage plus the derived timing metrics
// computed around the gateway call.
type ResultMetadata struct {
	Tokens           int     `json:"tokens"`
	PromptTokens     int     `json:"promptTokens"`
	CompletionTokens int     `json:"completionTokens"`
	FinishReason     string  `json:"finishReason"`
	DurationMs       int64   `json:"durationMs"`
	TokensPerSec     float64 `json:"tokensPerSec"`
	Model            string  `json:"model"`
}
