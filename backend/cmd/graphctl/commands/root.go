package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"memgraph/backend/internal/graph"
	"memgraph/backend/internal/storage"
	"memgraph/backend/pkg/config"
	"memgraph/backend/pkg/logger"
)

// app carries what every subcommand shares. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	cfg     *config.Config
	asJSON  bool
	verbose bool
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "graphctl",
		Short: "Admin CLI for the memory graph",
		Long: `graphctl - administer the memory graph store.

Configuration is read from the environment (and .env if present):
  DB_DRIVER      sqlite or postgres
  SQLITE_PATH    database file for the sqlite driver
  POSTGRES_URL   connection string for the postgres driver
  NEO4J_URI      projection target for 'graphctl project neo4j'

Examples:
  graphctl migrate
  graphctl seed
  graphctl snapshot create -l before-import
  graphctl snapshot restore snap_0192...
  graphctl project neo4j`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if level == "" && !a.verbose {
				level = "warn"
			}
			if err := logger.Init(cfg.Env, level); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print results as JSON instead of YAML")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		newMigrateCmd(a),
		newSeedCmd(a),
		newResetCmd(a),
		newStatsCmd(a),
		newSnapshotCmd(a),
		newProjectCmd(a),
	)
	return root
}

// withClient opens the configured store, binds a client to it and closes
// both when fn returns.
func (a *app) withClient(ctx context.Context, fn func(c *graph.Client) error) error {
	st, err := storage.Open(ctx, a.cfg)
	if err != nil {
		return err
	}
	c, err := graph.Open(ctx, st, graph.Options{
		LockTimeout:     a.cfg.LockTimeout,
		ConflictRetries: a.cfg.ConflictRetries,
		Logger:          logger.Named("graph"),
	})
	if err != nil {
		st.Close()
		return err
	}
	defer c.Close()
	return fn(c)
}

// output writes result to w as YAML, or JSON when --json is set
func (a *app) output(w io.Writer, result any) error {
	if a.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}
