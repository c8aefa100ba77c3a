// Package chunk models the logical document as an ordered sequence of
// chunks and maps global line positions onto them.
//
// A chunk is a tagged union with two variants:
//   - a block reference, pointing at an immutable block in the block store
//     without owning its lines
//   - an inserted group, owning mutable in-memory lines created by edits
//
// Concatenating chunk contents in list order yields the full document. The
// edit engine is the only writer of the list; everything else (rendering,
// search, stats, save) reads through the position mapper or the line
// iterator.
//
// # Position mapping
//
// Locate walks the chunk sequence accumulating sizes until the global
// position falls inside a chunk, returning (chunk index, local index).
// TotalLines sums all chunk sizes and is O(number of chunks); callers must
// not assume O(1). Both take a Resolver so block reference sizes can be
// recovered through the cache when they are not already known.
//
// Chunk pointers returned by At are valid only until the next mutation of
// the list; callers recompute positions rather than caching pointers.
//
// # Streaming
//
//	it := list.Lines(resolver)
//	for it.Next() {
//		process(it.Line())
//	}
//	if err := it.Err(); err != nil {
//		// a block failed to load; the walk stopped there
//	}
package chunk
