// Command trackr queries the cyber.trackr.live compliance catalog: it lists
// STIGs and SRGs, assembles complete documents with every requirement
// detail, maps RMF controls to CCIs and exports documents in batches.
//
// Usage:
//
//	trackr list [--type srg|stig] [--search keyword] [--scap]
//	trackr fetch TITLE [VERSION RELEASE] [--out file] [--tui] [--save]
//	trackr export [TITLE:VERSION:RELEASE ...] [--file keys.yaml]
//	trackr ccis CONTROL [--revision 5]
//	trackr serve [--addr 127.0.0.1:8080]
//
// Configuration comes from --config (YAML), TRACKR_* environment variables
// and .env files, in increasing order of precedence.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cyber-trackr/cyber-trackr/internal/config"
	"github.com/cyber-trackr/cyber-trackr/internal/logging"
	"github.com/cyber-trackr/cyber-trackr/pkg/buildinfo"
	"github.com/cyber-trackr/cyber-trackr/internal/store"
	"github.com/cyber-trackr/cyber-trackr/pkg/trackr"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app holds what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *logrus.Logger
	client *trackr.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "trackr",
		Short:             "Query and export the cyber.trackr.live compliance catalog",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (overrides config)")

	root.AddCommand(
		newListCmd(a),
		newLatestCmd(a),
		newFetchCmd(a),
		newSummaryCmd(a),
		newControlsCmd(a),
		newRequirementCmd(a),
		newCCIsCmd(a),
		newCCICmd(a),
		newRMFCmd(a),
		newExportCmd(a),
		newVerifyCmd(),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	config.LoadDotEnv()

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.NewWithOutput(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.client = trackr.NewClient(append(cfg.ClientOptions(), trackr.WithLogger(logger))...)
	return nil
}

// openStore opens the configured SQLite store, creating its directory.
func (a *app) openStore() (*store.SQLiteStore, error) {
	if dir := filepath.Dir(a.cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return store.NewSQLiteStore(a.cfg.Store.Path)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// The version needs no config; skip the root setup.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}
