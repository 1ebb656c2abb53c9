package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"memgraph/backend/internal/graph"
	"memgraph/backend/internal/seed"
	"memgraph/backend/internal/storage"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := storage.Open(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s)\n", st.Driver())
			return nil
		},
	}
}

func newSeedCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo graph",
		Long: `Insert the demo graph: two characters, a SERVES relation with one
chapter, and a location belonging to the agent.

Without --force seeding is skipped when the graph already holds entities.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(c *graph.Client) error {
				if !force {
					seeded, err := seed.SeedIfEmpty(cmd.Context(), c)
					if err != nil {
						return err
					}
					if !seeded {
						fmt.Fprintln(cmd.OutOrStdout(), "Graph not empty, nothing seeded (use --force to insert anyway)")
						return nil
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Demo data inserted")
					return nil
				}
				sum, err := seed.InsertDemoData(cmd.Context(), c)
				if err != nil {
					return err
				}
				return a.output(cmd.OutOrStdout(), sum)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "insert even if the graph is not empty")
	return cmd
}

func newResetCmd(a *app) *cobra.Command {
	var (
		yes      bool
		withSeed bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every entity and edge",
		Long: `Delete every entity, direct edge and chapter. Snapshots are kept and
can be restored afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				fmt.Fprintln(cmd.ErrOrStderr(), "WARNING: this deletes all graph data.")
				fmt.Fprint(cmd.ErrOrStderr(), "Are you sure you want to continue? (yes/no): ")
				response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				response = strings.TrimSpace(response)
				if response != "yes" && response != "y" {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			return a.withClient(cmd.Context(), func(c *graph.Client) error {
				res, err := c.Reset(cmd.Context())
				if err != nil {
					return err
				}
				if err := a.output(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				if withSeed {
					if _, err := seed.InsertDemoData(cmd.Context(), c); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Demo data inserted")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().BoolVar(&withSeed, "seed", false, "insert the demo graph after resetting")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(c *graph.Client) error {
				stats, err := c.Stats(cmd.Context())
				if err != nil {
					return err
				}
				return a.output(cmd.OutOrStdout(), stats)
			})
		},
	}
}
