// Package engine defines the extraction engine boundary and its yt-dlp
// implementation.
//
// An Engine turns a page URL plus an output template into a running execution
// that reports progress, completion or failure through callbacks. The yt-dlp
// engine runs the binary as a subprocess, merges its stdout and stderr into one
// line stream and parses progress, destination and error lines from it.
package engine
