// Package stats computes document counts by streaming every logical line
// once.
//
// Counting runs as a background task: it takes a context and checks it
// between lines, so a superseded computation stops quickly and its partial
// result is discarded by the caller, never published.
package stats

import (
	"context"
	"unicode"
)

// Counts holds the aggregate metrics of one document walk. Characters
// are runes, and every line break counts as one of them.
type Counts struct {
	// Chars is the total number of characters, line breaks included.
	Chars int

	// NonWhitespace is the number of characters that are not whitespace.
	NonWhitespace int

	// Words is the number of whitespace-delimited words. A word starts
	// at a transition from whitespace or line start to non-whitespace.
	Words int

	// Lines is the number of document lines. An empty document has zero.
	Lines int
}

// LineSource streams logical lines in document order. *chunk.LineIter
// satisfies it.
type LineSource interface {
	Next() bool
	Line() string
	Err() error
}

// Count streams every line from src and aggregates counts in a single
// pass. The trailing flag tells whether the document ends with a line
// break, which adds one character and decides line counting for
// degenerate documents: a document that is one empty line with no
// trailing break holds no content at all and reports zero lines.
func Count(ctx context.Context, src LineSource, trailing bool) (Counts, error) {
	var c Counts
	for src.Next() {
		if err := ctx.Err(); err != nil {
			return Counts{}, err
		}

		inWord := false
		for _, r := range src.Line() {
			c.Chars++
			if unicode.IsSpace(r) {
				inWord = false
				continue
			}
			c.NonWhitespace++
			if !inWord {
				c.Words++
				inWord = true
			}
		}
		c.Lines++
	}
	if err := src.Err(); err != nil {
		return Counts{}, err
	}

	// Line breaks are characters: one between adjacent lines, one more
	// when the document ends with a break.
	if c.Lines > 0 {
		c.Chars += c.Lines - 1
		if trailing {
			c.Chars++
		}
	}

	if c.Chars == 0 && c.Lines <= 1 && !trailing {
		c.Lines = 0
	}
	return c, nil
}
