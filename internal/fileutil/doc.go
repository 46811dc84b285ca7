// Package fileutil holds small filesystem helpers shared by the ledger and
// stage collaborators: atomic writes, verified copies, and directory sizing.
package fileutil
