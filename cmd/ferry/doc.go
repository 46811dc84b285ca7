// Command ferry runs the staged dataset pipeline and inspects its state.
//
// "ferry run" processes the configured units; "ferry status", "ferry ledger",
// and "ferry staging" report on and repair the per-stage ledgers and the
// staging area between runs.
package main
