// Package stage defines the contract between the pipeline core and the
// collaborators that do the actual work for one unit.
//
// An Operation receives a unit key and returns a Result: a success flag, an
// optional error carrying its failure kind, and optional expected/actual
// counts when the collaborator can report how complete its output is. The
// adapters FromError and FromCounts turn ordinary Go functions into
// Operations.
package stage
