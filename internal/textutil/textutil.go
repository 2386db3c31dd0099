// Package textutil holds the text normalization and similarity primitives
// shared by seam deduplication and coverage analysis.
package textutil

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/unicode/norm"
)

// maxCompareRunes caps edit-distance inputs; OCR fragments beyond this are
// compared by their prefix.
const maxCompareRunes = 200

// Fold canonicalizes text for comparison: NFKC fold, lowercase, every
// non-alphanumeric run collapsed to a single space.
func Fold(s string) string {
	s = norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
		default:
			space = true
		}
	}
	return b.String()
}

// Ratio returns a similarity in [0,1] between two strings: one minus the
// normalized Levenshtein distance. Empty-vs-empty is 1.
func Ratio(a, b string) float64 {
	ar, br := truncateRunes(a), truncateRunes(b)
	maxLen := max(len([]rune(ar)), len([]rune(br)))
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(ar, br)
	return 1 - float64(dist)/float64(maxLen)
}

// PartialRatio returns the best Ratio between needle and any needle-sized
// window of hay. It answers "does hay contain something close to needle".
// A coarse scan locates the best region, then a rune-by-rune pass around it
// settles the alignment.
func PartialRatio(needle, hay string) float64 {
	nr := []rune(truncateRunes(needle))
	hr := []rune(hay)
	if len(nr) == 0 {
		return 1
	}
	if len(hr) <= len(nr) {
		return Ratio(string(nr), string(hr))
	}

	step := len(nr) / 4
	if step < 1 {
		step = 1
	}
	best, bestStart := 0.0, 0
	window := func(start int) float64 {
		return Ratio(string(nr), string(hr[start:start+len(nr)]))
	}
	for start := 0; start+len(nr) <= len(hr); start += step {
		if r := window(start); r > best {
			best, bestStart = r, start
			if best == 1 {
				return 1
			}
		}
	}
	// Tail window, so a trailing match is not stepped over.
	if r := window(len(hr) - len(nr)); r > best {
		best, bestStart = r, len(hr)-len(nr)
	}

	// Refine around the coarse winner.
	for start := bestStart - step + 1; start < bestStart+step; start++ {
		if start < 0 || start+len(nr) > len(hr) || start == bestStart {
			continue
		}
		if r := window(start); r > best {
			best = r
			if best == 1 {
				return 1
			}
		}
	}
	return best
}

// stopWords are excluded from word-coverage scoring.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {},
}

// ContentWords returns the folded words of s with stop words removed.
func ContentWords(s string) []string {
	fields := strings.Fields(Fold(s))
	out := fields[:0]
	for _, w := range fields {
		if _, skip := stopWords[w]; !skip {
			out = append(out, w)
		}
	}
	return out
}

// WordCoverage returns the fraction of needle's content words present in
// hay's content words. Returns 0 when needle has no content words.
func WordCoverage(needle, hay string) float64 {
	nw := ContentWords(needle)
	if len(nw) == 0 {
		return 0
	}
	hw := make(map[string]struct{}, 64)
	for _, w := range ContentWords(hay) {
		hw[w] = struct{}{}
	}
	found := 0
	for _, w := range nw {
		if _, ok := hw[w]; ok {
			found++
		}
	}
	return float64(found) / float64(len(nw))
}

// NGramOverlap returns the fraction of needle's character n-grams (over
// folded text) that occur in hay. Returns 0 when needle is shorter than n.
func NGramOverlap(needle, hay string, n int) float64 {
	ng := nGrams(Fold(needle), n)
	if len(ng) == 0 {
		return 0
	}
	hg := nGrams(Fold(hay), n)
	found := 0
	for g := range ng {
		if _, ok := hg[g]; ok {
			found++
		}
	}
	return float64(found) / float64(len(ng))
}

func nGrams(s string, n int) map[string]struct{} {
	runes := []rune(s)
	if n <= 0 || len(runes) < n {
		return nil
	}
	grams := make(map[string]struct{}, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		grams[string(runes[i:i+n])] = struct{}{}
	}
	return grams
}

func truncateRunes(s string) string {
	runes := []rune(s)
	if len(runes) > maxCompareRunes {
		return string(runes[:maxCompareRunes])
	}
	return s
}
