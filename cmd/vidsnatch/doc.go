// Package main hosts the VidSnatch CLI entrypoint and command graph.
//
// The Cobra command tree runs the HTTP server (`serve`), manages its process
// (`start`, `stop`, `status`) and translates the remaining subcommands into
// calls against the local API: submitting and watching downloads, controlling
// individual jobs, reading the download history and choosing the destination
// folder. Configuration resolution and server address discovery live in the
// shared command context so subcommands only deal with presentation.
//
// Keep this package lean: behavior belongs in the internal packages and is
// surfaced here through dedicated commands or flags.
package main
