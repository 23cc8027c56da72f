package prompt

import (
	"strings"

	"promptpipe/internal/pipeline"
)

// Assemble builds the raw prompt for a step. Fragments are resolved in
// declared order: ordinary fragments contribute their literal text; a
// result-placeholder fragment contributes the referenced step's output from
// this run's context, falling back to its own literal text when the
// referenced step has not produced anything (not yet executed, or the
// reference is malformed). The effective texts are joined with a blank
// line, then passed through Substitute.
func Assemble(step pipeline.Step, ctx *Context) string {
	parts := make([]string, 0, len(step.Fragments))
	for _, f := range step.Fragments {
		text := f.Text
		if src, ok := f.ResultSource(); ok {
			if e, found := ctx.ByStepID(src); found {
				text = e.Text
			}
		}
		parts = append(parts, text)
	}
	return ctx.Substitute(strings.Join(parts, "\n\n"))
}
