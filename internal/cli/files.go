package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/config"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/workspace"
)

func newFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage the tracked-file workspace",
	}

	cmd.AddCommand(newFilesListCmd())
	cmd.AddCommand(newFilesTrackCmd())
	cmd.AddCommand(newFilesUntrackCmd())
	cmd.AddCommand(newFilesSyncCmd())

	return cmd
}

func openWorkspace() (*workspace.Manager, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return nil, err
	}
	return workspace.NewManager(paths.Workspace, paths.Mappings, cfg.Workspace, nil, log)
}

func newFilesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace()
			if err != nil {
				return err
			}

			mappings := ws.List()
			if len(mappings) == 0 {
				fmt.Println("no files tracked")
				return nil
			}

			for _, m := range mappings {
				fmt.Printf("  %-10s %8dB  %s -> %s\n", m.Kind, m.SizeBytes, m.OriginalPath, m.TempPath)
			}
			return nil
		},
	}
}

func newFilesTrackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "track <path>",
		Short: "Copy a file into the workspace and track it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			m, err := ws.Track(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Tracking %s as %s\n", m.OriginalPath, m.TempPath)
			return nil
		},
	}
}

func newFilesUntrackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "untrack <path>",
		Short: "Stop tracking a file and remove its workspace copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := ws.Untrack(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Untracked %s\n", args[0])
			return nil
		},
	}
}

func newFilesSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Refresh stale copies and prune mappings for deleted originals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			report, err := ws.Sync(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Synced: %d tracked, %d refreshed, %d pruned, %d deduped\n",
				report.Tracked, report.Refreshed, report.Pruned, report.Deduped)
			return nil
		},
	}
}
