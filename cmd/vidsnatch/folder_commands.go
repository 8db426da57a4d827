package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"vidsnatch/internal/api"
	"vidsnatch/internal/config"
)

func newFolderCommand(ctx *commandContext) *cobra.Command {
	folderCmd := &cobra.Command{
		Use:   "folder",
		Short: "Show or change the download destination",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.CurrentFolder(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Path)
				return nil
			})
		},
	}

	folderCmd.AddCommand(&cobra.Command{
		Use:   "set <path>",
		Short: "Use a directory as the download destination",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			return ctx.withClient(func(client *api.Client) error {
				return selectFolder(cmd, client, path)
			})
		},
	})

	folderCmd.AddCommand(&cobra.Command{
		Use:   "pick",
		Short: "Choose the download destination with the desktop folder dialog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				return selectFolder(cmd, client, "")
			})
		},
	})

	folderCmd.AddCommand(&cobra.Command{
		Use:   "open",
		Short: "Open the download destination in the file manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.OpenFolder(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Opened download folder")
				return nil
			})
		},
	})

	return folderCmd
}

func selectFolder(cmd *cobra.Command, client *api.Client, path string) error {
	resp, err := client.SelectFolder(cmd.Context(), path)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if resp.Cancelled {
		fmt.Fprintln(out, "Folder selection cancelled")
		return nil
	}
	fmt.Fprintf(out, "Download folder set to %s\n", resp.Path)
	return nil
}
