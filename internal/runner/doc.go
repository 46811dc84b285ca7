// Package runner assembles one pipeline run: it takes the data-root lock,
// opens a ledger per stage, wraps each stage operation with admission and
// integrity checks, runs the queue graph, and finalizes published units.
//
// Per-unit failures are recorded and summarized; they never make Run return
// an error. Run errors are reserved for problems that prevent the run from
// starting at all.
package runner
