package preflight

import (
	"context"

	"vidsnatch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Required failures stop the daemon from starting.
	Required bool
}

// minFreeBytes is the free space below which the download directory check
// warns.
const minFreeBytes = 1 << 30

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	download := CheckDirectoryAccess("Download directory", cfg.Paths.DownloadDir)
	download.Required = true
	results := []Result{download}
	if download.Passed {
		results = append(results, CheckFreeSpace("Free space", cfg.Paths.DownloadDir, minFreeBytes))
	}

	for _, status := range CheckSystemDeps(ctx, cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Required: !status.Optional}
		switch {
		case !status.Available:
			result.Detail = status.Detail
		case status.Version != "":
			result.Detail = status.Path + " (" + status.Version + ")"
		default:
			result.Detail = status.Path
		}
		results = append(results, result)
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Required && !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
