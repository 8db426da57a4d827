package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vidsnatch/internal/api"
	"vidsnatch/internal/jobs"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var (
		since  uint64
		limit  int
		follow bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print job change events",
		Long:  "Print job change events from the server. With --follow the command long-polls and prints events as they happen until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := cmd.Context()
			if follow {
				var stop context.CancelFunc
				runCtx, stop = signal.NotifyContext(runCtx, os.Interrupt, syscall.SIGTERM)
				defer stop()
			}
			return ctx.withClient(func(client *api.Client) error {
				err := streamEvents(runCtx, client, api.EventQuery{Since: since, Limit: limit, Follow: follow}, cmd.OutOrStdout(), asJSON)
				if follow && runCtx.Err() != nil {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().Uint64Var(&since, "since", 0, "Only show events after this sequence number")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum events per batch")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep waiting for new events")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON object per event")
	return cmd
}

// streamEvents prints one batch, or every batch until ctx ends when q.Follow
// is set. Each batch resumes from the cursor the previous one returned.
func streamEvents(ctx context.Context, client *api.Client, q api.EventQuery, out io.Writer, asJSON bool) error {
	enc := json.NewEncoder(out)
	for {
		resp, err := client.Events(ctx, q)
		if err != nil {
			return err
		}
		for _, ev := range resp.Events {
			if asJSON {
				if err := enc.Encode(ev); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintln(out, formatEvent(ev))
		}
		if !q.Follow {
			return nil
		}
		q.Since = resp.Next
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func formatEvent(ev jobs.Event) string {
	line := fmt.Sprintf("#%d %s %-7s %s %-11s %s",
		ev.Sequence,
		ev.Timestamp.Local().Format(time.TimeOnly),
		ev.Type,
		shortID(ev.JobID),
		statusLabel(string(ev.Status)),
		formatPercent(ev.Percent),
	)
	if ev.Title != "" {
		line += " " + ev.Title
	}
	if ev.Error != "" {
		line += ": " + ev.Error
	}
	return line
}
