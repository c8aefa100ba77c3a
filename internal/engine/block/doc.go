// Package block persists immutable groups of document lines as numbered
// files inside a per-session directory.
//
// A block is the unit of disk storage for an open document: opening a file
// streams its lines into blocks of a bounded size, and every later edit that
// touches original content writes new (smaller) blocks instead of rewriting
// existing ones. Blocks are append-only; identifiers are assigned
// sequentially and never reused within a session.
//
// # Layout
//
// Each session owns one directory under the base directory, named with a
// fresh UUID so concurrent editor instances never collide:
//
//	<base>/blockdoc-<uuid>/
//	    manifest.json
//	    000000.blk
//	    000001.blk
//	    ...
//
// A block file contains the block's lines joined with "\n" and nothing else.
// The manifest records the session's origin and creation time so abandoned
// directories from crashed sessions can be swept later.
//
// # Lifecycle
//
//	store, err := block.NewStore()
//	defer store.Cleanup()
//
//	descs, trailing, err := store.Open("/path/to/file.txt")
//	lines, err := store.ReadBlock(descs[0].ID)
//
// Cleanup removes the whole session directory and is safe to call more than
// once. After Cleanup the store rejects further reads and writes.
package block
