// Package preflight provides readiness checks for the filesystem paths and
// external programs VidSnatch depends on.
//
// These checks run in three contexts:
//   - The daemon calls RunAll before serving; a failed required check is fatal.
//   - The job service calls DirectoryError when a request overrides the
//     destination directory.
//   - The CLI "vidsnatch status" command renders the same results.
package preflight
