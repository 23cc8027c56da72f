package prompt

import "testing"

func TestSubstituteReplacesKnownName(t *testing.T) {
	ctx := NewContext()
	ctx.Append("step-1", "s1", "X")

	got := ctx.Substitute("Analyze: {{s1}}")
	if got != "Analyze: X" {
		t.Fatalf("substitute: got %q", got)
	}
}

func TestSubstituteLeavesUnknownTokenUntouched(t *testing.T) {
	ctx := NewContext()
	ctx.Append("step-1", "s1", "X")

	got := ctx.Substitute("Analyze: {{unknown}} and {{s1}}")
	if got != "Analyze: {{unknown}} and X" {
		t.Fatalf("substitute: got %q", got)
	}
}

func TestSubstituteUnknownOnlyPreservesBraces(t *testing.T) {
	ctx := NewContext()

	got := ctx.Substitute("{{unknown}}")
	if got != "{{unknown}}" {
		t.Fatalf("substitute: got %q", got)
	}
}

func TestSubstituteFallbackAppendsMostRecent(t *testing.T) {
	ctx := NewContext()
	ctx.Append("step-1", "s1", "World")

	got := ctx.Substitute("Hello")
	want := "Hello\n\nPrevious response:\nWorld"
	if got != want {
		t.Fatalf("substitute: got %q want %q", got, want)
	}
}

func TestSubstituteNoFallbackWithEmptyContext(t *testing.T) {
	ctx := NewContext()

	if got := ctx.Substitute("Hello"); got != "Hello" {
		t.Fatalf("substitute: got %q", got)
	}
}

func TestSubstituteUsesMostRecentEntryForDuplicateNames(t *testing.T) {
	ctx := NewContext()
	ctx.Append("step-1", "s1", "old")
	ctx.Append("step-3", "s1", "new")

	if got := ctx.Substitute("{{s1}}"); got != "new" {
		t.Fatalf("substitute: got %q", got)
	}
}

func TestSubstituteToleratesPaddedToken(t *testing.T) {
	ctx := NewContext()
	ctx.Append("step-1", "s1", "X")

	if got := ctx.Substitute("{{ s1 }}"); got != "X" {
		t.Fatalf("substitute: got %q", got)
	}
}
