package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"memgraph/backend/internal/graph"
	"memgraph/backend/internal/snapshot"
)

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage graph snapshots",
	}
	cmd.AddCommand(
		newSnapshotCreateCmd(a),
		newSnapshotListCmd(a),
		newSnapshotRestoreCmd(a),
		newSnapshotExportCmd(a),
		newSnapshotPruneCmd(a),
	)
	return cmd
}

func newSnapshotCreateCmd(a *app) *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Capture the whole graph as a new snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(c *graph.Client) error {
				meta, err := snapshot.NewManager(c).Create(cmd.Context(), label)
				if err != nil {
					return err
				}
				return a.output(cmd.OutOrStdout(), meta)
			})
		},
	}
	cmd.Flags().StringVarP(&label, "label", "l", "", "snapshot label")
	return cmd
}

func newSnapshotListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(c *graph.Client) error {
				metas, err := snapshot.NewManager(c).List(cmd.Context())
				if err != nil {
					return err
				}
				if a.asJSON {
					return a.output(cmd.OutOrStdout(), metas)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tLABEL\tCREATED\tSTATUS\tENTITIES\tEDGES\tCHAPTERS\tSIZE")
				for _, m := range metas {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
						m.SnapshotID, m.Label, m.CreatedAt.Format(time.RFC3339), m.Status,
						m.EntityCount, m.DirectEdgeCount, m.RelayEdgeCount, m.SizeBytes)
				}
				return tw.Flush()
			})
		},
	}
}

func newSnapshotRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Replace the live graph with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(c *graph.Client) error {
				m := snapshot.NewManager(c)
				if err := m.Restore(cmd.Context(), args[0]); err != nil {
					return err
				}
				meta, err := m.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.output(cmd.OutOrStdout(), meta)
			})
		},
	}
}

func newSnapshotExportCmd(a *app) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a snapshot payload to a file",
		Long: `Write a stored snapshot to a file. Files ending in .json hold the
payload as JSON; anything else gets the msgpack encoding stored in the
database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				return fmt.Errorf("output file is required, use -o flag")
			}
			return a.withClient(cmd.Context(), func(c *graph.Client) error {
				p, err := snapshot.NewManager(c).Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if isJSONPath(path) {
					f, err := os.Create(path)
					if err != nil {
						return fmt.Errorf("failed to create output file: %w", err)
					}
					defer f.Close()
					prev := a.asJSON
					a.asJSON = true
					defer func() { a.asJSON = prev }()
					return a.output(f, p)
				}
				data, err := snapshot.Encode(p)
				if err != nil {
					return err
				}
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes to %s\n", len(data), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&path, "output", "o", "", "output file")
	return cmd
}

func newSnapshotPruneCmd(a *app) *cobra.Command {
	var (
		keep   int
		maxAge time.Duration
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old snapshots",
		Long: `Delete snapshots outside the newest --keep or older than --max-age.
Defaults come from SNAPSHOT_KEEP_LAST and SNAPSHOT_MAX_AGE_HOURS. The newest
snapshot is never deleted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := snapshot.RetentionPolicy{KeepLast: a.cfg.SnapshotKeepLast, MaxAge: a.cfg.SnapshotMaxAge}
			if cmd.Flags().Changed("keep") {
				policy.KeepLast = keep
			}
			if cmd.Flags().Changed("max-age") {
				policy.MaxAge = maxAge
			}

			return a.withClient(cmd.Context(), func(c *graph.Client) error {
				n, err := snapshot.NewManager(c).Prune(cmd.Context(), policy)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d snapshot(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "number of newest snapshots to keep (0 disables)")
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "delete snapshots older than this (0 disables)")
	return cmd
}

func isJSONPath(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".json"
}
