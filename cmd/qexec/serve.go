package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seantiz/qexec/internal/api"
	"github.com/seantiz/qexec/internal/config"
	"github.com/seantiz/qexec/internal/engine"
	"github.com/seantiz/qexec/internal/pool"
	"github.com/seantiz/qexec/internal/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and execution pool",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := config.NewLogger(os.Stdout, cfg.Level())

	logger.Info("qexec: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"pool_workers", cfg.PoolWorkers,
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Jobs left unfinished by a previous process will never complete.
	n, err := db.AbandonUnfinished(cmd.Context(), "abandoned: server restarted")
	if err != nil {
		return fmt.Errorf("abandon unfinished jobs: %w", err)
	}
	if n > 0 {
		logger.Warn("marked unfinished jobs as failed", "count", n)
	}

	p := pool.New(cfg.PoolWorkers, logger)
	reg, err := newRegistry(p, cfg.DummyTimeAlive, logger)
	if err != nil {
		return err
	}
	eng := engine.NewEngine(db, reg, logger)

	srv := api.NewServer(api.Options{
		Addr:            cfg.ListenAddr,
		SubmitRate:      cfg.SubmitRate,
		SubmitBurst:     cfg.SubmitBurst,
		MaxResultWait:   cfg.MaxResultWait,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, db, reg, eng, p, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := p.Shutdown(shutdownCtx)
		// Watchers journal every outcome, including jobs stopped by the drain
		// deadline.
		eng.Wait()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("qexec: stopped")
	return nil
}
