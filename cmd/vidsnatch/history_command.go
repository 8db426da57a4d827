package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"vidsnatch/internal/history"
)

const defaultHistoryLimit = 20

type historyRow struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"lastError,omitempty"`
	OutputPath  string     `json:"outputPath,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		failed bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the download history ledger",
		Long:  "Show submitted URLs with their attempt counts and outcomes. Reads the history database directly, so the server does not need to be running.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !cfg.History.Enabled {
				fmt.Fprintln(out, "Download history is disabled (history.enabled = false)")
				return nil
			}
			if _, err := os.Stat(cfg.HistoryPath()); os.IsNotExist(err) {
				fmt.Fprintln(out, "No download history yet")
				return nil
			}

			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			var entries []history.Entry
			if failed {
				entries, err = store.Failed(cmd.Context())
			} else {
				entries, err = store.List(cmd.Context(), limit)
			}
			if err != nil {
				return fmt.Errorf("read history: %w", err)
			}

			rows := make([]historyRow, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, historyRow{
					URL:         e.URL,
					Title:       e.Title,
					Status:      string(e.Status),
					Attempts:    e.Attempts,
					LastError:   e.LastError,
					OutputPath:  e.OutputPath,
					UpdatedAt:   e.UpdatedAt,
					CompletedAt: e.CompletedAt,
				})
			}
			return writeOutput(cmd, asJSON, rows, func() string {
				if len(rows) == 0 {
					return "No matching history entries\n"
				}
				return renderHistoryTable(rows)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "Maximum entries to show")
	cmd.Flags().BoolVar(&failed, "failed", false, "Only show failed downloads")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderHistoryTable(rows []historyRow) string {
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		outcome := r.LastError
		if r.Status == string(history.StatusCompleted) && r.OutputPath != "" {
			outcome = r.OutputPath
		}
		data = append(data, []string{
			r.Title,
			statusLabel(r.Status),
			fmt.Sprintf("%d", r.Attempts),
			r.URL,
			outcome,
			humanizeTime(r.UpdatedAt),
		})
	}
	spec := tableSpec{
		headers:  []string{"Title", "Status", "Attempts", "URL", "Outcome", "Updated"},
		aligns:   []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
		maxWidth: map[int]int{0: titleColumnWidth, 3: titleColumnWidth, 4: titleColumnWidth},
	}
	return spec.render(data)
}
