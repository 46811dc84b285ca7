// Package fetch materializes a unit's archive in its staging fetch directory,
// either by running the configured download command or by copying a local
// artifact.
package fetch
