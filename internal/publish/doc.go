// Package publish delivers a unit's transformed files to the configured sink.
//
// Directory mode copies each file under <publish_dir>/<prefix>/<unit>/ and
// verifies size and SHA-256. Command mode runs an upload command once per
// file. Delivery is at-least-once: a rerun after a partial publish sends
// every file again.
package publish
