package llm

import (
	"encoding/json"
	"fmt"
)

// Result is the gateway's normalized output for one invocation.
type Result struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Metadata carries usage reported by the backend. Counts a backend does
// not report stay 0; a missing finish reason becomes "unknown".
type Metadata struct {
	Tokens           int    `json:"tokens"`
	PromptTokens     int    `json:"promptTokens"`
	CompletionTokens int    `json:"completionTokens"`
	FinishReason     string `json:"finishReason"`
}

// responseShape tags one recognized backend response layout. Dispatch over
// shapes is exhaustive; anything unmatched is a hard error, never default
// text.
type responseShape int

const (
	shapeUnknown responseShape = iota
	shapeResults               // {"results":[{"text":...,"tokens":...}]}
	shapeGenerations           // {"generations":[{"text":...}],"meta":{"billed_units":...}}
	shapeChatChoices           // {"choices":[{"message":{"content":...}}]}
	shapeTextChoices           // {"choices":[{"text":...}]}
	shapeFlatResponse          // {"response":"..."}
)

type usageBlock struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type rawResponse struct {
	Results []struct {
		Text         string `json:"text"`
		Tokens       int    `json:"tokens"`
		PromptTokens int    `json:"prompt_tokens"`
		FinishReason string `json:"finish_reason"`
	} `json:"results"`

	Generations []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"generations"`
	Meta struct {
		BilledUnits struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"billed_units"`
	} `json:"meta"`

	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage usageBlock `json:"usage"`

	Response        *string `json:"response"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
	DoneReason      string  `json:"done_reason"`
}

func detectShape(r *rawResponse, raw []byte) responseShape {
	switch {
	case len(r.Results) > 0:
		return shapeResults
	case len(r.Generations) > 0:
		return shapeGenerations
	case len(r.Choices) > 0:
		// A choice with a message object is the chat layout; one with a
		// text field is the completion layout. A choice carrying neither
		// (streaming delta chunks, for one) is not a recognized shape.
		if r.Choices[0].Message.Content != "" || hasChoiceKey(raw, "message") {
			return shapeChatChoices
		}
		if r.Choices[0].Text != "" || hasChoiceKey(raw, "text") {
			return shapeTextChoices
		}
		return shapeUnknown
	case r.Response != nil:
		return shapeFlatResponse
	default:
		return shapeUnknown
	}
}

// hasChoiceKey reports whether the first choice object carries the given
// key, distinguishing an empty chat message or empty completion text from
// a choice of some other layout.
func hasChoiceKey(raw []byte, key string) bool {
	var probe struct {
		Choices []map[string]json.RawMessage `json:"choices"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || len(probe.Choices) == 0 {
		return false
	}
	_, ok := probe.Choices[0][key]
	return ok
}

// Normalize maps one of the five recognized backend response shapes onto
// Result. An unrecognized shape is an error.
func Normalize(raw []byte) (Result, error) {
	var r rawResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return Result{}, fmt.Errorf("llm: decode response: %w", err)
	}

	var out Result
	switch detectShape(&r, raw) {
	case shapeResults:
		first := r.Results[0]
		out.Text = first.Text
		out.Metadata.CompletionTokens = first.Tokens
		out.Metadata.PromptTokens = first.PromptTokens
		out.Metadata.Tokens = first.Tokens + first.PromptTokens
		out.Metadata.FinishReason = first.FinishReason
	case shapeGenerations:
		out.Text = r.Generations[0].Text
		out.Metadata.PromptTokens = r.Meta.BilledUnits.InputTokens
		out.Metadata.CompletionTokens = r.Meta.BilledUnits.OutputTokens
		out.Metadata.Tokens = r.Meta.BilledUnits.InputTokens + r.Meta.BilledUnits.OutputTokens
		out.Metadata.FinishReason = r.Generations[0].FinishReason
	case shapeChatChoices:
		out.Text = r.Choices[0].Message.Content
		fillUsage(&out.Metadata, r.Usage)
		out.Metadata.FinishReason = r.Choices[0].FinishReason
	case shapeTextChoices:
		out.Text = r.Choices[0].Text
		fillUsage(&out.Metadata, r.Usage)
		out.Metadata.FinishReason = r.Choices[0].FinishReason
	case shapeFlatResponse:
		out.Text = *r.Response
		out.Metadata.PromptTokens = r.PromptEvalCount
		out.Metadata.CompletionTokens = r.EvalCount
		out.Metadata.Tokens = r.PromptEvalCount + r.EvalCount
		out.Metadata.FinishReason = r.DoneReason
	default:
		return Result{}, ErrUnknownShape
	}

	if out.Metadata.FinishReason == "" {
		out.Metadata.FinishReason = "unknown"
	}
	return out, nil
}

func fillUsage(m *Metadata, u usageBlock) {
	m.PromptTokens = u.PromptTokens
	m.CompletionTokens = u.CompletionTokens
	m.Tokens = u.TotalTokens
	if m.Tokens == 0 {
		m.Tokens = u.PromptTokens + u.CompletionTokens
	}
}
