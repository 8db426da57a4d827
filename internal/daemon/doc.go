// Package daemon coordinates the long-running VidSnatch server process.
//
// It wraps the job service in a single lifecycle with flock-based locking to
// prevent multiple instances, serves the HTTP API the browser extension and
// CLI talk to, and runs the stuck-job and eviction monitor. A client may ask
// the server to stop over the API; the owner of the Daemon watches
// StopRequested and performs the shutdown.
//
// Keep orchestration logic here: job semantics live in internal/jobs while
// the daemon focuses on startup, shutdown, routing, and status mapping.
package daemon
