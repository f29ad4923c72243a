package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/verag/internal/config"
)

// cli carries state shared by all subcommands once config is loaded.
type cli struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "verag",
		Short: "Ingest project documents and answer questions from them",
		Long: `verag indexes value-engineering project documents into PostgreSQL/pgvector
and answers questions with citations back to the retrieved chunks.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.load,
	}

	root.AddCommand(
		newServeCmd(c),
		newMigrateCmd(c),
		newProjectCmd(c),
		newIngestCmd(c),
		newAskCmd(c),
		newVersionCmd(),
	)
	return root
}

// load reads configuration and installs the default logger.
func (c *cli) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = config.NewLogger(os.Stderr, cfg.Log)
	slog.SetDefault(c.logger)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		// no config needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "verag version %s\n", version)
		},
	}
}
