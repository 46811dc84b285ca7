package stage

import (
	"context"
	"errors"
	"strings"
)

// Stage names in pipeline order. They double as ledger file prefixes.
const (
	Fetch     = "fetch"
	Unpack    = "unpack"
	Transform = "transform"
	Publish   = "publish"
)

// Names returns the stage names in pipeline order.
func Names() []string {
	return []string{Fetch, Unpack, Transform, Publish}
}

// Valid reports whether name is a known stage.
func Valid(name string) bool {
	for _, candidate := range Names() {
		if candidate == name {
			return true
		}
	}
	return false
}

// GenericFailure is recorded when an operation fails without an error.
const GenericFailure = "stage operation reported failure"

// Counts is a collaborator's self-reported completeness.
type Counts struct {
	Expected int
	Actual   int
}

// Complete reports whether every expected item was produced.
func (c Counts) Complete() bool { return c.Expected == c.Actual }

// Result is the outcome of one Operation invocation.
type Result struct {
	OK bool
	// Err explains a failure. It may be nil even when OK is false.
	Err error
	// Counts is set when the operation reports expected/actual totals.
	Counts *Counts
	// Skipped is set by the executor when the ledger already held SUCCESS.
	Skipped bool
}

// Message returns the failure text recorded in the ledger.
func (r Result) Message() string {
	if r.OK {
		return ""
	}
	if r.Err != nil {
		if msg := strings.TrimSpace(r.Err.Error()); msg != "" {
			return msg
		}
	}
	return GenericFailure
}

// Error returns Err, or a generic error for a failure without one.
func (r Result) Error() error {
	if r.OK {
		return nil
	}
	if r.Err != nil {
		return r.Err
	}
	return errors.New(GenericFailure)
}

// Success returns a successful Result.
func Success() Result { return Result{OK: true} }

// Failure returns a failed Result carrying err.
func Failure(err error) Result { return Result{Err: err} }

// Counted returns a Result that carries completeness counts.
func Counted(ok bool, expected, actual int, err error) Result {
	return Result{OK: ok, Err: err, Counts: &Counts{Expected: expected, Actual: actual}}
}

// Operation performs one stage's work for a unit. Implementations must be
// idempotent for units not yet recorded as SUCCESS.
type Operation func(ctx context.Context, key string) Result

// FromError adapts a function that signals failure through its error.
func FromError(fn func(ctx context.Context, key string) error) Operation {
	return func(ctx context.Context, key string) Result {
		if err := fn(ctx, key); err != nil {
			return Failure(err)
		}
		return Success()
	}
}

// FromCounts adapts a function that reports expected/actual totals. The raw
// outcome is success iff err is nil; count comparison is left to the
// integrity verifier.
func FromCounts(fn func(ctx context.Context, key string) (Counts, error)) Operation {
	return func(ctx context.Context, key string) Result {
		counts, err := fn(ctx, key)
		return Counted(err == nil, counts.Expected, counts.Actual, err)
	}
}
