package history

import (
	"time"

	"github.com/dshills/blockdoc/internal/engine/chunk"
)

// OpKind discriminates the edit operation variants.
type OpKind uint8

const (
	// OpReplaceLine records one line replaced in place.
	OpReplaceLine OpKind = iota

	// OpInsertLine records one line inserted at a position.
	OpInsertLine

	// OpDeleteLine records one line removed from a position.
	OpDeleteLine

	// OpSnapshot records a whole-chunk-list change, used for bulk edits
	// such as replace-all.
	OpSnapshot
)

// String returns the operation kind name.
func (k OpKind) String() string {
	switch k {
	case OpReplaceLine:
		return "replace-line"
	case OpInsertLine:
		return "insert-line"
	case OpDeleteLine:
		return "delete-line"
	case OpSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Op captures one undoable edit. Line operations carry the position and the
// old/new values needed to apply the inverse; snapshots carry deep copies of
// the chunk list before and after the bulk change.
type Op struct {
	Kind OpKind

	// Line operation payload.
	Pos int    // global logical line position
	Old string // replaced or removed value, applied on undo
	New string // new or inserted value, applied on redo

	// Snapshot payload.
	Before *chunk.List
	After  *chunk.List

	Timestamp time.Time
}

// ReplaceLine records the replacement of the line at pos.
func ReplaceLine(pos int, oldLine, newLine string) Op {
	return Op{
		Kind:      OpReplaceLine,
		Pos:       pos,
		Old:       oldLine,
		New:       newLine,
		Timestamp: time.Now(),
	}
}

// InsertLine records the insertion of content at pos.
func InsertLine(pos int, content string) Op {
	return Op{
		Kind:      OpInsertLine,
		Pos:       pos,
		New:       content,
		Timestamp: time.Now(),
	}
}

// DeleteLine records the removal of the line at pos.
func DeleteLine(pos int, oldLine string) Op {
	return Op{
		Kind:      OpDeleteLine,
		Pos:       pos,
		Old:       oldLine,
		Timestamp: time.Now(),
	}
}

// Snapshot records a bulk change as deep copies of the chunk list before and
// after it, so undo and redo are both direct restores.
func Snapshot(before, after *chunk.List) Op {
	return Op{
		Kind:      OpSnapshot,
		Before:    before.Clone(),
		After:     after.Clone(),
		Timestamp: time.Now(),
	}
}

// IsSnapshot reports whether the operation is a whole-list snapshot.
func (op Op) IsSnapshot() bool {
	return op.Kind == OpSnapshot
}
