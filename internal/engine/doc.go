// Package engine implements a chunked document storage engine for editing
// files far larger than comfortably fit in memory.
//
// Opening a file streams it into immutable, disk-backed blocks; the logical
// document is an ordered list of chunks, each either a reference to a block
// or an in-memory group of inserted lines. Edits never rewrite a large
// block: replacing one line splits its block copy-on-write into at most two
// new, smaller blocks around a one-line in-memory chunk, bounding the I/O
// cost of an edit regardless of file size.
//
// # Components
//
//   - block: append-only store of numbered block files in a per-session
//     directory
//   - cache: bounded LRU of decoded block contents shared by all readers
//   - chunk: the chunk list and the global-line-position mapper
//   - history: bounded linear undo/redo log with a cursor
//   - search: streaming literal case-insensitive matching
//   - stats: streaming character/word/line counts
//
// # Basic usage
//
//	doc, err := engine.Open("/path/to/big.txt")
//	if err != nil {
//		return err
//	}
//	defer doc.Close()
//
//	line, _ := doc.Line(1500)
//	_ = doc.ReplaceLine(1500, "edited")
//	_ = doc.Undo()
//
//	matches, _ := doc.FindAll(ctx, "needle")
//	_ = doc.Save()
//
// # Concurrency
//
// There is a single logical writer: edit operations serialize on the write
// lock. Reads run concurrently, and long-running search and stats walks
// stream over a deep-copied chunk list so edits never move lines under
// them. The block cache carries the only lock shared with background
// readers, held for bookkeeping but never across disk I/O.
package engine
