// Package cli implements the learnengine command line.
package cli

import (
	"fmt"

	"github.com/example/learnengine/internal/config"
	"github.com/example/learnengine/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand returns the learnengine command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "learnengine",
		Short:         "Adaptive learning engine",
		Long:          "learnengine schedules spaced-repetition reviews, derives learner profiles from history and ranks learning paths.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.verbose {
				cfg.Logging.Level = "debug"
			}
			logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.cfg = cfg
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to the YAML config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCommand(opts),
		newImportCommand(opts),
		newRebuildCommand(opts),
		newDueCommand(opts),
		newStatsCommand(opts),
		newRankCommand(opts),
	)
	return root
}

// withApp builds the application for one command and closes it afterwards.
func (o *rootOptions) withApp(fn func(app *App) error) error {
	app, err := Build(o.cfg, o.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			o.logger.Warn("close store", zap.Error(err))
		}
	}()
	return fn(app)
}
