package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/finextract/internal/api"
	"github.com/dgallion1/finextract/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the extraction HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireAPIKey(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		Workers:   cfg.Server.Workers,
		QueueSize: cfg.Server.QueueSize,
		JobTTL:    cfg.Server.JobTTL,
	}, c.pipeline, logger)
	orch.Start(context.WithoutCancel(ctx))

	srv := api.NewServer(orch, c.stats, c.model, logger, cfg.Server)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting finextract", "port", cfg.Server.Port, "model", c.model, "store", cfg.Store.Driver)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		orch.Stop()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	orch.Stop()
	return nil
}
