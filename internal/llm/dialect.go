package llm

import "strings"

// Dialect is a backend-specific request/response convention. It controls
// prompt pre-formatting and which endpoint chain the gateway walks.
type Dialect string

const (
	// DialectPlain passes the prompt through unchanged and uses the
	// default generate/completions chain.
	DialectPlain Dialect = "plain"
	// DialectChat builds a structured message list and tries the chat
	// completion endpoint before falling back to the default chain.
	DialectChat Dialect = "chat"
	// DialectInstruct wraps the prompt in instruction marker tokens.
	DialectInstruct Dialect = "instruct"
	// DialectKobold targets the multi-endpoint structured-generation
	// backend family.
	DialectKobold Dialect = "kobold"
)

// ParseDialect maps a stored dialect string to a known dialect. Unknown or
// empty values degrade to plain.
func ParseDialect(s string) Dialect {
	switch Dialect(strings.ToLower(strings.TrimSpace(s))) {
	case DialectChat:
		return DialectChat
	case DialectInstruct:
		return DialectInstruct
	case DialectKobold:
		return DialectKobold
	default:
		return DialectPlain
	}
}

// FormatPrompt applies the dialect's text pre-formatting. Chat bypasses
// text formatting entirely (the chat candidate builds a message list from
// the raw prompt instead), so it passes through here like plain.
func FormatPrompt(d Dialect, prompt string) string {
	if d == DialectInstruct {
		return "[INST] " + prompt + " [/INST]"
	}
	return prompt
}
