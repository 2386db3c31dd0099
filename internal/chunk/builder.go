// Package chunk assembles reading-ordered text boxes into retrieval-sized
// chunks. Units are indivisible: a chunk boundary can only fall between
// boxes, never inside one, so an oversized unit becomes an oversized chunk
// rather than being split.
package chunk

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jackzampolin/reflow/internal/geometry"
	"github.com/jackzampolin/reflow/internal/reflow"
)

// unitJoiner separates units inside a chunk. Joining all chunk texts with
// the same separator reproduces the page's linearized text exactly.
const unitJoiner = "\n"

const joinerLen = len(unitJoiner)

// Config bounds chunk assembly.
type Config struct {
	// CharBudget is the soft chunk size in runes. A chunk may exceed it
	// only when a single unit does, or when splitting would orphan a
	// header from its body.
	CharBudget int
	// HeaderMaxChars caps how long a line can be and still be considered
	// a heading.
	HeaderMaxChars int
}

// Chunk is one output unit of retrieval-ready text.
type Chunk struct {
	ID         string       `json:"chunk_id"`
	Text       string       `json:"text"`
	CharCount  int          `json:"char_count"`
	WordCount  int          `json:"word_count"`
	BucketIDs  []int        `json:"bucket_ids"`
	Box        geometry.Box `json:"bbox"`
	OverBudget bool         `json:"over_budget,omitempty"`
}

// Build folds reading-ordered boxes into chunks. The builder accumulates
// units until the budget would be exceeded, then flushes. A header starts a
// new chunk unless the buffer is empty, and a chunk holding only a header
// absorbs the next unit even past the budget so the header keeps the body
// it titles.
//
// Chunk IDs are <pageID>_chunk_<n> with a three digit 1-based n.
func Build(pageID string, boxes []reflow.NormalizedBox, cfg Config) []Chunk {
	var (
		chunks   []Chunk
		buf      []reflow.NormalizedBox
		bufRunes int
	)

	flush := func() {
		if len(buf) == 0 {
			return
		}
		chunks = append(chunks, assemble(pageID, len(chunks)+1, buf, cfg))
		buf = buf[:0]
		bufRunes = 0
	}

	push := func(b reflow.NormalizedBox, runes int) {
		if len(buf) > 0 {
			bufRunes += joinerLen
		}
		buf = append(buf, b)
		bufRunes += runes
	}

	for _, b := range boxes {
		runes := utf8.RuneCountInString(b.Text)
		if IsHeader(b.Text, cfg.HeaderMaxChars) && len(buf) > 0 {
			flush()
		} else if len(buf) > 0 && bufRunes+joinerLen+runes > cfg.CharBudget {
			// A buffer holding only a header keeps accumulating: an
			// over-budget chunk beats an orphaned header. A header can
			// only sit first in the buffer since arriving headers flush.
			loneHeader := len(buf) == 1 && IsHeader(buf[0].Text, cfg.HeaderMaxChars)
			if !loneHeader {
				flush()
			}
		}
		push(b, runes)
	}
	flush()
	return chunks
}

func assemble(pageID string, n int, units []reflow.NormalizedBox, cfg Config) Chunk {
	texts := make([]string, len(units))
	seen := map[int]bool{}
	var bucketIDs []int
	var box geometry.Box
	for i, u := range units {
		texts[i] = u.Text
		box = box.Union(u.Box)
		if !seen[u.BucketID] {
			seen[u.BucketID] = true
			bucketIDs = append(bucketIDs, u.BucketID)
		}
	}
	sort.Ints(bucketIDs)

	text := strings.Join(texts, unitJoiner)
	count := utf8.RuneCountInString(text)
	return Chunk{
		ID:         fmt.Sprintf("%s_chunk_%03d", pageID, n),
		Text:       text,
		CharCount:  count,
		WordCount:  len(strings.Fields(text)),
		BucketIDs:  bucketIDs,
		Box:        box,
		OverBudget: count > cfg.CharBudget,
	}
}
