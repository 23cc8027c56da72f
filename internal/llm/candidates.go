package llm

import "promptpipe/internal/pipeline"

// timeoutClass selects which of the gateway's HTTP clients serves a call.
// Generation endpoints run on a minutes-scale timeout; metadata and health
// endpoints run on a seconds-scale one.
type timeoutClass int

const (
	classGenerate timeoutClass = iota
	classProbe
)

// candidate is one entry of a fallback chain: an endpoint path, its
// timeout class, and the payload builder for that endpoint's request shape.
// Keeping the policy as data keeps it testable apart from transport.
type candidate struct {
	path  string
	class timeoutClass
	build func(prompt string, cfg pipeline.GenerationConfig) any
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func buildChat(prompt string, cfg pipeline.GenerationConfig) any {
	return map[string]any{
		"messages": []chatMessage{{Role: "user", Content: prompt}},
		"stream":   false,
		"options": map[string]any{
			"temperature": cfg.Temperature,
			"num_predict": cfg.MaxTokens,
		},
	}
}

func buildGenerate(prompt string, cfg pipeline.GenerationConfig) any {
	return map[string]any{
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": cfg.Temperature,
			"num_predict": cfg.MaxTokens,
		},
	}
}

func buildCompletions(prompt string, cfg pipeline.GenerationConfig) any {
	return map[string]any{
		"prompt":      prompt,
		"temperature": cfg.Temperature,
		"max_tokens":  cfg.MaxTokens,
	}
}

func buildKobold(prompt string, cfg pipeline.GenerationConfig) any {
	return map[string]any{
		"prompt":      prompt,
		"temperature": cfg.Temperature,
		"max_length":  cfg.MaxTokens,
	}
}

func buildBarePrompt(prompt string, _ pipeline.GenerationConfig) any {
	return map[string]any{"prompt": prompt}
}

// defaultChain is the chain every dialect ends on: the primary generation
// endpoint, then the OpenAI-compatible completion endpoint.
func defaultChain() []candidate {
	return []candidate{
		{path: "/api/generate", class: classGenerate, build: buildGenerate},
		{path: "/v1/completions", class: classGenerate, build: buildCompletions},
	}
}

// chainFor returns the ordered fallback chain for a dialect. The first
// successful candidate short-circuits the rest.
func chainFor(d Dialect) []candidate {
	switch d {
	case DialectChat:
		return append([]candidate{
			{path: "/api/chat", class: classGenerate, build: buildChat},
		}, defaultChain()...)
	case DialectKobold:
		return []candidate{
			{path: "/api/v1/generate", class: classGenerate, build: buildKobold},
			{path: "/api/extra/generate/sync", class: classGenerate, build: buildKobold},
			{path: "/generate", class: classGenerate, build: buildBarePrompt},
		}
	default:
		return defaultChain()
	}
}
