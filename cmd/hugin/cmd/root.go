// Package cmd provides the hugin CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/logger"
)

// app carries what every subcommand needs after flag parsing.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

// Execute runs the root command with SIGINT/SIGTERM cancelling its context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "error:", err)
		return err
	}
	return nil
}

// NewRootCmd builds the hugin command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "hugin",
		Short: "Desktop keyword indexer and search engine",
		Long: `hugin crawls directories, extracts the text of the files it finds and
keeps an exact-match inverted index of it, partitioned by namespace.

Run 'hugin index' to index the configured roots and 'hugin serve' to expose
the index to the desktop search shell.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(newIndexCmd(a))
	cmd.AddCommand(newBulkCmd(a))
	cmd.AddCommand(newIngestCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newServeCmd(a))
	return cmd
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	a.cfg = cfg
	return nil
}
