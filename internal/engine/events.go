package engine

import "promptpipe/internal/pipeline"

// EventType enumerates the four lifecycle event kinds of a run.
type EventType string

const (
	// EventExecutionProgress announces the upcoming step, issued before
	// the step runs.
	EventExecutionProgress EventType = "execution_progress"
	// EventPayloadCompleted carries a finished step's text and metadata.
	EventPayloadCompleted EventType = "payload_completed"
	// EventWorkflowCompleted is terminal, issued once.
	EventWorkflowCompleted EventType = "workflow_completed"
	// EventWorkflowFailed is terminal, issued once with the error message.
	EventWorkflowFailed EventType = "workflow_failed"
)

// Event is the JSON-serializable payload handed to the broadcaster. For a
// pipeline of N steps without failure the sequence is exactly N
// progress/payload pairs in strict alternation, then one
// workflow_completed.
type Event struct {
	Type     EventType                `json:"type"`
	RunID    string                   `json:"runId"`
	Step     string                   `json:"step,omitempty"`
	Progress *float64                 `json:"progress,omitempty"`
	Text     string                   `json:"text,omitempty"`
	Metadata *pipeline.ResultMetadata `json:"metadata,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// Broadcaster delivers one JSON-serializable event per call. The core
// never owns the transport; delivery is whatever the injected function
// does.
type Broadcaster func(event Event)

func progressEvent(runID, step string, percent float64) Event {
	return Event{Type: EventExecutionProgress, RunID: runID, Step: step, Progress: &percent}
}

func payloadEvent(runID, step, text string, md pipeline.ResultMetadata) Event {
	return Event{Type: EventPayloadCompleted, RunID: runID, Step: step, Text: text, Metadata: &md}
}

func completedEvent(runID string) Event {
	return Event{Type: EventWorkflowCompleted, RunID: runID}
}

func failedEvent(runID, msg string) Event {
	return Event{Type: EventWorkflowFailed, RunID: runID, Error: msg}
}
