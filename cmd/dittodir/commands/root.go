// Package commands implements the dittodir CLI.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/pkg/config"
	"github.com/marmos91/dittodir/pkg/server"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "dittodir",
	Short: "Replicated file directory over pluggable storage backends",
	Long: `dittodir runs the services of a replicated file directory:

  directory  places files on Files backends and tracks owners and shares
  files      stores file content in memory, on disk, in S3 or in BadgerDB
  users      holds accounts and authenticates requests
  cluster    runs all of them in one process`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == initCmd.Name() {
			return nil
		}
		return loadConfig()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/dittodir/config.yaml)")
}

func loadConfig() error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger.SetLevel(loaded.Logging.Level)
	logger.SetFormat(loaded.Logging.Format)
	if err := logger.SetOutput(loaded.Logging.Output); err != nil {
		return fmt.Errorf("failed to open log output: %w", err)
	}

	cfg = loaded
	return nil
}

// run serves srv until SIGINT or SIGTERM.
func run(srv *server.Server) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Press Ctrl+C to stop")
	err := srv.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
