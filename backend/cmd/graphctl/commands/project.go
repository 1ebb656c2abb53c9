package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"memgraph/backend/internal/graph"
	"memgraph/backend/internal/projection"
	"memgraph/backend/internal/snapshot"
)

func newProjectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Write the graph into a read model",
	}
	cmd.AddCommand(newProjectNeo4jCmd(a))
	return cmd
}

func newProjectNeo4jCmd(a *app) *cobra.Command {
	var (
		snapshotID string
		batchSize  int
	)

	cmd := &cobra.Command{
		Use:   "neo4j",
		Short: "Replace the Neo4j read model with the current graph",
		Long: `Replace everything in the configured Neo4j database with the graph.

The live graph is captured in one consistent read. With --snapshot the
stored snapshot is projected instead. Requires NEO4J_URI and NEO4J_PASSWORD.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.ProjectionEnabled() {
				return fmt.Errorf("NEO4J_URI is not set")
			}
			ctx := cmd.Context()

			var payload *snapshot.Payload
			err := a.withClient(ctx, func(c *graph.Client) error {
				m := snapshot.NewManager(c)
				var err error
				if snapshotID != "" {
					payload, err = m.Load(ctx, snapshotID)
				} else {
					payload, err = m.Capture(ctx)
				}
				return err
			})
			if err != nil {
				return err
			}

			proj, err := projection.Connect(ctx, a.cfg.Neo4jURI, a.cfg.Neo4jUser, a.cfg.Neo4jPassword)
			if err != nil {
				return err
			}
			defer proj.Close(ctx)
			if batchSize > 0 {
				proj.WithBatchSize(batchSize)
			}

			res, err := proj.Project(ctx, payload)
			if err != nil {
				return err
			}
			return a.output(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&snapshotID, "snapshot", "", "project a stored snapshot instead of the live graph")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per UNWIND batch (default 500)")
	return cmd
}
