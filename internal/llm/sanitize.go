package llm

import (
	"strings"
	"unicode"
)

// corruptionMarkers are token artifacts some backends leak into generated
// text when decoding goes wrong.
var corruptionMarkers = []string{"<|endoftext|>", "�"}

// SentinelText replaces output that is unusable even after cleaning.
const SentinelText = "[gateway: model returned unusable output]"

// nonPrintableLimit is the fraction of non-printable runes above which
// text is treated as corrupted.
const nonPrintableLimit = 0.10

// looksCorrupted reports whether text carries a known corruption marker or
// an excessive share of non-printable runes.
func looksCorrupted(s string) bool {
	for _, m := range corruptionMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	if s == "" {
		return false
	}
	total, bad := 0, 0
	for _, r := range s {
		total++
		if !printable(r) {
			bad++
		}
	}
	return float64(bad)/float64(total) > nonPrintableLimit
}

func printable(r rune) bool {
	return unicode.IsPrint(r) || r == '\n' || r == '\t' || r == '\r'
}

// clean strips marker tokens and non-printable runes, then collapses runs
// of whitespace to a single space.
func clean(s string) string {
	for _, m := range corruptionMarkers {
		s = strings.ReplaceAll(s, m, "")
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if printable(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Sanitize returns text unchanged when it looks healthy. Corrupted text is
// cleaned; if too little survives cleaning, the sentinel string is returned
// instead of garbage.
func Sanitize(s string) string {
	if !looksCorrupted(s) {
		return s
	}
	c := clean(s)
	if len([]rune(c)) < 2 {
		return SentinelText
	}
	return c
}
