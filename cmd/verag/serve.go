package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/verag/internal/adapters/driven/auth"
	httpadapter "github.com/custodia-labs/verag/internal/adapters/driving/http"
	"github.com/custodia-labs/verag/internal/config"
	"github.com/custodia-labs/verag/internal/worker"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [api|worker|all]",
		Short: "Run the HTTP API, the ingestion worker, or both",
		Long: `Runs the HTTP API, the background ingestion worker, or both in one process.
The mode defaults to RUN_MODE.`,
		ValidArgs: []string{config.ModeAPI, config.ModeWorker, config.ModeAll},
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := c.cfg.Server.RunMode
			if len(args) == 1 {
				mode = args[0]
			}
			return c.serve(cmd.Context(), mode)
		},
	}
}

func (c *cli) serve(parent context.Context, mode string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("Starting verag %s (mode: %s)", version, mode)

	a, err := newApp(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	switch mode {
	case config.ModeAPI:
		return c.runAPI(ctx, a)
	case config.ModeWorker:
		return c.runWorker(ctx, a)
	case config.ModeAll:
		errCh := make(chan error, 1)
		go func() { errCh <- c.runWorker(ctx, a) }()
		apiErr := c.runAPI(ctx, a)
		stop()
		if werr := <-errCh; apiErr == nil {
			apiErr = werr
		}
		return apiErr
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func (c *cli) runAPI(ctx context.Context, a *app) error {
	deps := httpadapter.Deps{
		Answers:   a.answers,
		Ingest:    a.ingest,
		Documents: a.docs,
		Services:  a.runtime,
		TaskQueue: a.taskQueue,
		DB:        a.db,
		Logger:    c.logger,
	}
	if a.redis != nil {
		deps.Redis = redisPinger{client: a.redis}
	}
	if c.cfg.Server.JWTSecret != "" {
		deps.Verifier = auth.NewVerifier(c.cfg.Server.JWTSecret)
	} else {
		log.Printf("Warning: JWT_SECRET not set, API requests are not authenticated")
	}

	server := httpadapter.NewServer(httpadapter.Config{
		Host:        "0.0.0.0",
		Port:        c.cfg.Server.Port,
		Version:     version,
		CORSOrigins: c.cfg.Server.CORSOrigins,
	}, deps)
	return server.Run(ctx)
}

func (c *cli) runWorker(ctx context.Context, a *app) error {
	w := worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      a.taskQueue,
		Ingest:         a.ingest,
		Logger:         c.logger,
		Concurrency:    c.cfg.Worker.Concurrency,
		DequeueTimeout: c.cfg.Worker.DequeueTimeoutSec,
	})
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	log.Printf("Worker started (concurrency: %d)", c.cfg.Worker.Concurrency)

	<-ctx.Done()
	log.Printf("Stopping worker...")
	w.Stop()
	return nil
}

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Long: `Creates the projects, documents, chunks and ingest_tasks tables and their
indexes. The chunk vector size is taken from EMBEDDING_DIMENSIONS and cannot
change once the table exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			dims, err := a.db.ColumnDimensions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema ready (chunks.embedding: vector(%d))\n", dims)
			return nil
		},
	}
}
