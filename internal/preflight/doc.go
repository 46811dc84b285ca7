// Package preflight provides readiness checks for the filesystem paths and
// external programs a pipeline run depends on.
//
// The runner calls RunAll before admitting any unit and refuses to start when
// a required check fails. The CLI "ferry preflight" command renders the same
// results as a table.
package preflight
