package chunk

import (
	"github.com/dshills/blockdoc/internal/engine/block"
)

// Kind discriminates the two chunk variants.
type Kind uint8

const (
	// KindBlockRef marks a chunk referencing an immutable stored block.
	KindBlockRef Kind = iota

	// KindInserted marks a chunk owning in-memory inserted or edited lines.
	KindInserted
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBlockRef:
		return "block"
	case KindInserted:
		return "inserted"
	default:
		return "unknown"
	}
}

// Resolver recovers the decoded lines of a stored block, normally through
// the block cache.
type Resolver interface {
	BlockLines(id block.ID) ([]string, error)
}

// Chunk is one segment of the logical document. Use the constructors; the
// zero value is a reference to block 0 with an unknown size.
type Chunk struct {
	kind  Kind
	block block.ID
	count int      // line count for block refs; negative until resolved
	lines []string // owned buffer for inserted chunks
}

// BlockRef returns a chunk referencing a stored block with a known line
// count.
func BlockRef(id block.ID, lines int) Chunk {
	return Chunk{kind: KindBlockRef, block: id, count: lines}
}

// BlockRefUnsized returns a chunk referencing a stored block whose line
// count will be resolved on first use.
func BlockRefUnsized(id block.ID) Chunk {
	return Chunk{kind: KindBlockRef, block: id, count: -1}
}

// FromDesc returns a block reference chunk for a store descriptor.
func FromDesc(d block.Desc) Chunk {
	return BlockRef(d.ID, d.Lines)
}

// Inserted returns a chunk owning lines. The slice is retained; callers
// must not reuse it.
func Inserted(lines []string) Chunk {
	return Chunk{kind: KindInserted, lines: lines}
}

// InsertedLine returns a single-line inserted chunk.
func InsertedLine(text string) Chunk {
	return Chunk{kind: KindInserted, lines: []string{text}}
}

// Kind returns the chunk variant.
func (c *Chunk) Kind() Kind {
	return c.kind
}

// IsBlock reports whether the chunk references a stored block.
func (c *Chunk) IsBlock() bool {
	return c.kind == KindBlockRef
}

// IsInserted reports whether the chunk owns in-memory lines.
func (c *Chunk) IsInserted() bool {
	return c.kind == KindInserted
}

// BlockID returns the referenced block identifier; zero for inserted
// chunks.
func (c *Chunk) BlockID() block.ID {
	return c.block
}

// Lines returns the owned buffer of an inserted chunk, or nil for block
// references. The returned slice is a read-only view.
func (c *Chunk) Lines() []string {
	return c.lines
}

// Size returns the chunk's line count. Inserted chunks answer from their
// buffer; block references answer from the memoized count, resolving it
// through r once if it is not yet known.
func (c *Chunk) Size(r Resolver) (int, error) {
	if c.kind == KindInserted {
		return len(c.lines), nil
	}
	if c.count < 0 {
		lines, err := r.BlockLines(c.block)
		if err != nil {
			return 0, err
		}
		c.count = len(lines)
	}
	return c.count, nil
}

// Resolve returns the chunk's lines: the owned buffer for inserted chunks,
// the cached block contents otherwise. The result is a read-only view; for
// block chunks it aliases the cache entry.
//
// Unsized references memoize their count here, so they must not be
// resolved from multiple goroutines; sized chunks are safe to share.
func (c *Chunk) Resolve(r Resolver) ([]string, error) {
	if c.kind == KindInserted {
		return c.lines, nil
	}
	lines, err := r.BlockLines(c.block)
	if err != nil {
		return nil, err
	}
	if c.count < 0 {
		c.count = len(lines)
	}
	return lines, nil
}

// SetLine overwrites one line of an inserted chunk. The chunk must be
// inserted and local in range.
func (c *Chunk) SetLine(local int, text string) {
	c.lines[local] = text
}

// InsertLine grows an inserted chunk's buffer at local, which may equal the
// current length to append. The chunk must be inserted.
func (c *Chunk) InsertLine(local int, text string) {
	c.lines = append(c.lines, "")
	copy(c.lines[local+1:], c.lines[local:])
	c.lines[local] = text
}

// RemoveLine deletes and returns one line of an inserted chunk. The chunk
// must be inserted and local in range; the caller removes the chunk from
// the list if it becomes empty.
func (c *Chunk) RemoveLine(local int) string {
	removed := c.lines[local]
	c.lines = append(c.lines[:local], c.lines[local+1:]...)
	return removed
}

// clone returns a deep copy: inserted buffers are duplicated so later edits
// to one copy never leak into the other.
func (c *Chunk) clone() Chunk {
	out := *c
	if c.kind == KindInserted {
		out.lines = make([]string, len(c.lines))
		copy(out.lines, c.lines)
	}
	return out
}
