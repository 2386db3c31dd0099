package chunk

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// numberedHeading matches outline-style prefixes: "3 Scope", "2.1 Results",
// "4) Findings".
var numberedHeading = regexp.MustCompile(`^\d+(\.\d+)*[.)]?\s+\S`)

// IsHeader reports whether a unit of text looks like a section heading.
// Without font metadata the call is heuristic: short lines that carry an
// outline number or are fully uppercase. maxChars bounds the length in
// runes; longer lines are body text no matter their shape.
func IsHeader(text string, maxChars int) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxChars {
		return false
	}
	if numberedHeading.MatchString(trimmed) {
		return true
	}
	return isAllCaps(trimmed)
}

// isAllCaps requires at least three letters and tolerates digits and
// punctuation. A single lowercase letter disqualifies the line.
func isAllCaps(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 3
}
