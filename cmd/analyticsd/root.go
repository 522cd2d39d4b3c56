package main

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/krisalay/analytics-cache/config"
	"github.com/krisalay/analytics-cache/logger"
)

// globals holds what PersistentPreRunE prepares for the subcommands.
type globals struct {
	configPath string
	cfg        *config.Config
	log        *zap.Logger
	logCloser  io.Closer
}

func newRootCommand() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "analyticsd",
		Short:         "Cache and aggregate school analytics",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			log, closer, err := logger.New(cfg.Logging)
			if err != nil {
				return err
			}
			g.cfg, g.log, g.logCloser = cfg, log, closer
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if g.log != nil {
				_ = g.log.Sync()
			}
			if g.logCloser != nil {
				_ = g.logCloser.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "path to a YAML config file")

	root.AddCommand(newRunCommand(g), newBenchCommand(g))
	return root
}
