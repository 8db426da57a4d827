// Package logging assembles the slog loggers used by the VidSnatch daemon and
// CLI.
//
// It owns the console and JSON handlers, level and output plumbing, the
// standard field keys (component, job_id, correlation_id and friends) and
// context helpers that tag log lines with the job or request being served.
// A no-op logger is provided for tests and wiring code that cannot fail.
package logging
