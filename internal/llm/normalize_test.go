package llm

import (
	"errors"
	"testing"
)

func TestNormalizeResultsShape(t *testing.T) {
	raw := []byte(`{"results":[{"text":"alpha","tokens":7,"prompt_tokens":3,"finish_reason":"length"}]}`)
	res, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if res.Text != "alpha" {
		t.Fatalf("text: got %q", res.Text)
	}
	if res.Metadata.CompletionTokens != 7 || res.Metadata.PromptTokens != 3 || res.Metadata.Tokens != 10 {
		t.Fatalf("tokens: got %+v", res.Metadata)
	}
	if res.Metadata.FinishReason != "length" {
		t.Fatalf("finish reason: got %q", res.Metadata.FinishReason)
	}
}

func TestNormalizeGenerationsShape(t *testing.T) {
	raw := []byte(`{"generations":[{"text":"beta"}],"meta":{"billed_units":{"input_tokens":5,"output_tokens":9}}}`)
	res, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if res.Text != "beta" {
		t.Fatalf("text: got %q", res.Text)
	}
	if res.Metadata.PromptTokens != 5 || res.Metadata.CompletionTokens != 9 || res.Metadata.Tokens != 14 {
		t.Fatalf("tokens: got %+v", res.Metadata)
	}
	if res.Metadata.FinishReason != "unknown" {
		t.Fatalf("finish reason: got %q", res.Metadata.FinishReason)
	}
}

func TestNormalizeChatChoicesShape(t *testing.T) {
	raw := []byte(`{"choices":[{"message":{"content":"gamma"},"finish_reason":"stop"}],"usage":{"prompt_tokens":2,"completion_tokens":4,"total_tokens":6}}`)
	res, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if res.Text != "gamma" {
		t.Fatalf("text: got %q", res.Text)
	}
	if res.Metadata.Tokens != 6 || res.Metadata.PromptTokens != 2 || res.Metadata.CompletionTokens != 4 {
		t.Fatalf("tokens: got %+v", res.Metadata)
	}
	if res.Metadata.FinishReason != "stop" {
		t.Fatalf("finish reason: got %q", res.Metadata.FinishReason)
	}
}

func TestNormalizeChatChoicesEmptyContentStillChat(t *testing.T) {
	raw := []byte(`{"choices":[{"message":{"content":""},"finish_reason":"stop"}]}`)
	res, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if res.Text != "" || res.Metadata.FinishReason != "stop" {
		t.Fatalf("got %+v", res)
	}
	if res.Metadata.Tokens != 0 {
		t.Fatalf("missing usage should default to 0, got %d", res.Metadata.Tokens)
	}
}

func TestNormalizeTextChoicesShape(t *testing.T) {
	raw := []byte(`{"choices":[{"text":"delta","finish_reason":"length"}],"usage":{"prompt_tokens":1,"completion_tokens":2}}`)
	res, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if res.Text != "delta" {
		t.Fatalf("text: got %q", res.Text)
	}
	// total_tokens absent: derived from the parts.
	if res.Metadata.Tokens != 3 {
		t.Fatalf("tokens: got %d", res.Metadata.Tokens)
	}
}

func TestNormalizeTextChoicesEmptyTextIsRecognized(t *testing.T) {
	res, err := Normalize([]byte(`{"choices":[{"text":"","finish_reason":"stop"}]}`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if res.Text != "" || res.Metadata.FinishReason != "stop" {
		t.Fatalf("got %+v", res)
	}
}

func TestNormalizeChoiceWithoutMessageOrTextIsError(t *testing.T) {
	// A streaming delta chunk has choices, but neither a message object
	// nor a text field; it must not pass as an empty completion.
	_, err := Normalize([]byte(`{"choices":[{"delta":{"content":"x"},"index":0}]}`))
	if !errors.Is(err, ErrUnknownShape) {
		t.Fatalf("expected ErrUnknownShape, got %v", err)
	}
}

func TestNormalizeFlatResponseShape(t *testing.T) {
	raw := []byte(`{"response":"epsilon","prompt_eval_count":11,"eval_count":13,"done_reason":"stop"}`)
	res, err := Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if res.Text != "epsilon" {
		t.Fatalf("text: got %q", res.Text)
	}
	if res.Metadata.PromptTokens != 11 || res.Metadata.CompletionTokens != 13 || res.Metadata.Tokens != 24 {
		t.Fatalf("tokens: got %+v", res.Metadata)
	}
}

func TestNormalizeFlatResponseEmptyStringIsRecognized(t *testing.T) {
	res, err := Normalize([]byte(`{"response":""}`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if res.Text != "" || res.Metadata.FinishReason != "unknown" {
		t.Fatalf("got %+v", res)
	}
}

func TestNormalizeUnknownShapeIsError(t *testing.T) {
	_, err := Normalize([]byte(`{"output":{"text":"zeta"}}`))
	if !errors.Is(err, ErrUnknownShape) {
		t.Fatalf("expected ErrUnknownShape, got %v", err)
	}
}

func TestNormalizeInvalidJSONIsError(t *testing.T) {
	if _, err := Normalize([]byte(`not json`)); err == nil {
		t.Fatal("expected error for invalid json")
	}
}
