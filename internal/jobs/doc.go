// Package jobs owns the download-job lifecycle.
//
// A Store holds every known job behind one mutex. The Runner drives one
// engine execution per job, translating engine callbacks into store updates
// and enforcing the state machine:
//
//	queued -> preparing -> downloading -> processing -> completed
//	preparing|downloading|processing -> error | cancelled
//	error|cancelled -> queued (retry)
//
// Each execution carries a token stored on the job. Callbacks whose token no
// longer matches (after cancel, retry or delete) are dropped inside the store
// lock, so a superseded execution can never overwrite newer state.
//
// Service is the control surface used by the HTTP layer: submit, progress,
// cancel, retry, delete and clear, plus destination management, partial-file
// lookups and the periodic sweep that fails stuck jobs and evicts finished
// ones. EventHub buffers store changes for long-polling clients.
package jobs
