// Package history persists the download ledger in SQLite.
//
// Every submitted URL gets one row tracking its attempts, last error, status
// and completed output path. The ledger survives restarts: downloads that were
// in flight when the process stopped are marked failed on the next start, and
// completed rows are pruned after the configured retention. A second table
// maps finished filenames back to the URL and title they came from.
package history
