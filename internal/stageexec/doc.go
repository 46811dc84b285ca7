// Package stageexec runs stage operations against a unit status ledger.
//
// Executor.Run skips units the ledger already records as SUCCESS, invokes
// the operation otherwise, and records the outcome. It never returns an
// error: failures and recovered panics are recorded FAILED and reported in
// the returned Result so the calling worker keeps going.
//
// VerifyIntegrity wraps an operation that reports expected/actual counts and
// downgrades a raw success to a failure when the counts disagree.
package stageexec
