// Package task provides the background execution primitives used around
// the document engine: debouncing for burst coalescing and a
// cancel-and-supersede runner for offline computations.
//
// # Debouncing
//
// Debouncer delays a callback until a quiet period has passed, collapsing
// a burst of triggers into one invocation. The workspace uses it to hold
// back stats recomputation while edits are streaming in.
//
// # Background runs
//
// Runner executes one computation per kind at a time. Submitting new work
// for a kind cancels the previous computation through its context; its
// result is discarded even when it finishes before the cancellation lands.
// Completion closures are applied serially on a single drain goroutine, so
// the newest result is the only one ever published:
//
//	runner := task.NewRunner()
//	runner.Submit("stats", func(ctx context.Context) func() {
//		counts, err := doc.Stats(ctx)
//		if err != nil {
//			return nil
//		}
//		return func() { view.SetCounts(counts) }
//	})
//
// Both primitives are safe for concurrent use.
package task
