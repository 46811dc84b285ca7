// Package notifications delivers pipeline events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers always hold a usable Service. Run start/finish and unit failure
// events can be silenced independently through the [notifications] section.
package notifications
