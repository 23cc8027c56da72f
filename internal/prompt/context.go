package prompt

import (
	"regexp"
	"strings"
)

// fallbackSeparator labels the implicit append of the most recent output
// when a template contains no matched substitution.
const fallbackSeparator = "\n\nPrevious response:\n"

var varPattern = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// Entry is one accumulated step output.
type Entry struct {
	StepID   string
	StepName string
	Text     string
}

// Context holds the ordered outputs of prior steps for one run. It is not
// safe for concurrent use; a run is processed by a single flow of control.
type Context struct {
	entries []Entry
}

func NewContext() *Context {
	return &Context{}
}

// Append records a completed step's output. Call order must follow
// execution order.
func (c *Context) Append(stepID, stepName, text string) {
	c.entries = append(c.entries, Entry{StepID: stepID, StepName: stepName, Text: text})
}

// Len returns the number of accumulated outputs.
func (c *Context) Len() int { return len(c.entries) }

// ByName returns the most recent entry with the given step name.
func (c *Context) ByName(name string) (Entry, bool) {
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].StepName == name {
			return c.entries[i], true
		}
	}
	return Entry{}, false
}

// ByStepID returns the most recent entry produced by the given step.
func (c *Context) ByStepID(id string) (Entry, bool) {
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].StepID == id {
			return c.entries[i], true
		}
	}
	return Entry{}, false
}

// Substitute replaces every {{name}} token whose name matches an
// accumulated step name with that step's text. Unmatched tokens are left
// untouched. If nothing matched and at least one output has accumulated,
// the most recent output is appended under a labeled separator so a
// template with no explicit reference still sees the prior response.
func (c *Context) Substitute(template string) string {
	out := varPattern.ReplaceAllStringFunc(template, func(token string) string {
		name := strings.TrimSpace(strings.Trim(token, "{}"))
		if e, ok := c.ByName(name); ok {
			return e.Text
		}
		return token
	})
	if out == template && len(c.entries) > 0 {
		out = template + fallbackSeparator + c.entries[len(c.entries)-1].Text
	}
	return out
}
