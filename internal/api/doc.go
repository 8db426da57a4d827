// Package api defines the HTTP wire types of the VidSnatch server and the
// client the CLI uses to talk to it.
//
// # Key Types
//
// DownloadRequest/DownloadResponse: submission of a new download.
//
// ProgressResponse: the polling view the browser extension renders.
//
// Download/JobsResponse: full job listing for the CLI and TUI.
//
// EventsResponse: long-poll batches of job change events.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for the browser extension, except retry_count
// which existing extension builds already read. Job statuses are exposed as
// lowercase strings. Timestamps use RFC3339 with milliseconds.
//
// Client maps non-2xx replies to *StatusError so callers can branch on the
// HTTP status; IsUnavailable reports a server that is not listening.
package api
