// Package services defines shared utilities consumed by the pipeline stages
// and their external collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp unit keys, stage names, and run correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that tag failures with the
//     pipeline's failure taxonomy (external tool, integrity, resource
//     exhaustion, format, filesystem).
//
// Use these helpers when wiring new stage logic so failure classification and
// observability stay uniform across the pipeline.
package services
