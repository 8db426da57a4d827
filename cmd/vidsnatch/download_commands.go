package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"vidsnatch/internal/api"
	"vidsnatch/internal/jobs"
)

const waitPollInterval = 500 * time.Millisecond

func newDownloadCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newDownloadCommand(ctx),
		newProgressCommand(ctx),
		newJobsCommand(ctx),
		newCancelCommand(ctx),
		newRetryCommand(ctx),
		newDeleteCommand(ctx),
		newClearCommand(ctx),
	}
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var req api.DownloadRequest
	var wait bool

	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Queue a video URL for download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.URL = strings.TrimSpace(args[0])
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Submit(cmd.Context(), req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued %s (%s)\n", resp.Title, resp.DownloadID)
				if resp.PreviousAttempts > 0 {
					fmt.Fprintf(out, "Note: this URL failed %d time(s) before\n", resp.PreviousAttempts)
				}
				if !wait {
					return nil
				}
				return waitForDownload(cmd.Context(), client, resp.DownloadID, resp.Title, out)
			})
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "Title used for the output filename")
	cmd.Flags().BoolVar(&req.OpenFolder, "open-folder", false, "Open the destination folder when the download completes")
	cmd.Flags().StringVar(&req.Destination, "dest", "", "Download into this directory instead of the configured one")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the download to finish, showing a progress bar")
	return cmd
}

// waitForDownload polls a job until it reaches a terminal status.
func waitForDownload(ctx context.Context, client *api.Client, id, title string, out io.Writer) error {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(title),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionThrottle(100*time.Millisecond),
	)

	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()
	for {
		p, err := client.Progress(ctx, id)
		if err != nil {
			return err
		}
		bar.Describe(waitDescription(title, p))
		_ = bar.Set(int(p.Percent))

		switch jobs.Status(p.Status) {
		case jobs.StatusCompleted:
			_ = bar.Finish()
			fmt.Fprintf(out, "\nDownload complete: %s\n", p.Title)
			return nil
		case jobs.StatusError:
			fmt.Fprintln(out)
			return fmt.Errorf("download failed: %s", p.Error)
		case jobs.StatusCancelled:
			fmt.Fprintln(out)
			return fmt.Errorf("download cancelled")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func waitDescription(title string, p api.ProgressResponse) string {
	desc := fmt.Sprintf("%s [%s]", title, statusLabel(p.Status))
	if p.Speed != "" {
		desc += " " + p.Speed
	}
	return desc
}

func newProgressCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "progress <id>",
		Short: "Show the progress of one download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				p, err := client.Progress(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeOutput(cmd, asJSON, p, func() string {
					colorize := shouldColorize(cmd.OutOrStdout())
					message := statusLabel(p.Status)
					if detail := progressDetail(p); detail != "" {
						message += " " + detail
					}
					if p.Error != "" {
						message += ": " + p.Error
					}
					return renderStatusLine(p.Title, jobStatusKind(p.Status), message, colorize) + "\n"
				})
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"list", "ls"},
		Short:   "List downloads known to the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				list, err := client.Jobs(cmd.Context())
				if err != nil {
					return err
				}
				return writeOutput(cmd, asJSON, list, func() string {
					if len(list) == 0 {
						return "No downloads\n"
					}
					return renderJobsTable(list)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderJobsTable(list []api.Download) string {
	rows := make([][]string, 0, len(list))
	for _, d := range list {
		detail := progressDetail(d.ProgressResponse)
		if d.Error != "" {
			detail = d.Error
		}
		rows = append(rows, []string{
			shortID(d.DownloadID),
			statusLabel(d.Status),
			formatPercent(d.Percent),
			d.Title,
			fmt.Sprintf("%d", d.RetryCount),
			detail,
			relativeTime(d.UpdatedAt),
		})
	}
	spec := tableSpec{
		headers:  []string{"ID", "Status", "Progress", "Title", "Retries", "Detail", "Updated"},
		aligns:   []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
		maxWidth: map[int]int{3: titleColumnWidth, 5: titleColumnWidth},
	}
	return spec.render(rows)
}

// resolveJobID expands a unique id prefix, as printed by `jobs`, into the
// full download id.
func resolveJobID(ctx context.Context, client *api.Client, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("download id is required")
	}
	list, err := client.Jobs(ctx)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, d := range list {
		if d.DownloadID == ref {
			return ref, nil
		}
		if strings.HasPrefix(d.DownloadID, ref) {
			matches = append(matches, d.DownloadID)
		}
	}
	switch len(matches) {
	case 0:
		return ref, nil
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("download id prefix %q is ambiguous (%d matches)", ref, len(matches))
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "cancel [id...]",
		Short: "Cancel downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("specify download ids or --all")
			}
			return ctx.withClient(func(client *api.Client) error {
				ids := args
				if all {
					list, err := client.Jobs(cmd.Context())
					if err != nil {
						return err
					}
					ids = nil
					for _, d := range list {
						if !jobs.Status(d.Status).Terminal() {
							ids = append(ids, d.DownloadID)
						}
					}
					if len(ids) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "No active downloads")
						return nil
					}
				}
				for _, ref := range ids {
					id, err := resolveJobID(cmd.Context(), client, ref)
					if err != nil {
						return err
					}
					if err := client.Cancel(cmd.Context(), id); err != nil {
						return fmt.Errorf("cancel %s: %w", ref, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s\n", id)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Cancel every active download")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Restart a failed or cancelled download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				id, err := resolveJobID(cmd.Context(), client, args[0])
				if err != nil {
					return err
				}
				count, err := client.Retry(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retrying %s (attempt %d)\n", id, count+1)
				return nil
			})
		},
	}
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Cancel a download and remove its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				id, err := resolveJobID(cmd.Context(), client, args[0])
				if err != nil {
					return err
				}
				resp, err := client.Delete(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Deleted %s\n", id)
				for _, path := range resp.RemovedFiles {
					fmt.Fprintf(out, "  removed %s\n", path)
				}
				if resp.Warning != "" {
					fmt.Fprintf(out, "Warning: %s\n", resp.Warning)
				}
				return nil
			})
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	var completed bool
	cmd := &cobra.Command{
		Use:   "clear [id...]",
		Short: "Remove completed downloads from the list, keeping their files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !completed && len(args) == 0 {
				return fmt.Errorf("specify download ids or --completed")
			}
			return ctx.withClient(func(client *api.Client) error {
				ids := args
				if completed {
					list, err := client.Jobs(cmd.Context())
					if err != nil {
						return err
					}
					ids = nil
					for _, d := range list {
						if jobs.Status(d.Status) == jobs.StatusCompleted {
							ids = append(ids, d.DownloadID)
						}
					}
				}
				for _, ref := range ids {
					id, err := resolveJobID(cmd.Context(), client, ref)
					if err != nil {
						return err
					}
					if err := client.Clear(cmd.Context(), id); err != nil {
						return fmt.Errorf("clear %s: %w", ref, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", id)
				}
				if len(ids) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No completed downloads")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&completed, "completed", false, "Clear every completed download")
	return cmd
}

func newPartialCommand(ctx *commandContext) *cobra.Command {
	partialCmd := &cobra.Command{
		Use:   "partial",
		Short: "Inspect leftover partial files",
	}

	partialCmd.AddCommand(&cobra.Command{
		Use:   "find <filename>",
		Short: "Find the failed download a partial file belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.FindFailed(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !resp.Found {
					fmt.Fprintln(out, "No failed download matches this file")
					return nil
				}
				fmt.Fprintf(out, "Download: %s\n", resp.DownloadID)
				fmt.Fprintf(out, "Title:    %s\n", resp.Title)
				fmt.Fprintf(out, "URL:      %s\n", resp.URL)
				fmt.Fprintf(out, "Match:    %.0f%%\n", resp.Similarity*100)
				return nil
			})
		},
	})

	partialCmd.AddCommand(&cobra.Command{
		Use:   "delete <filename>",
		Short: "Delete a partial file from the download directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				removed, err := client.DeletePartial(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", removed)
				return nil
			})
		},
	})

	return partialCmd
}
