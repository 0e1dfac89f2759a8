package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-site/pkg/sitecontent/api"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, components, logger, err := buildComponents(ctx)
		if err != nil {
			return err
		}
		defer components.Close()

		server := api.NewServer(components.Service, api.Options{
			Production:         cfg.IsProduction(),
			MaxUploadBytes:     cfg.MaxUploadBytes,
			RateLimitWindow:    cfg.RateLimitWindow,
			RateLimitMax:       cfg.RateLimitMax,
			UploadRateLimitMax: cfg.UploadRateLimitMax,
			RequestTimeout:     cfg.RequestTimeout,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
			TrustProxy:         cfg.TrustProxy,
			Logger:             logger.Logger,
			RequestLogger:      logger,
		})

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           server.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("HTTP server listening",
				"port", cfg.Port,
				"environment", cfg.Environment,
				"database", cfg.DatabaseType,
				"storage", cfg.Storage.Type)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				logger.Error("Server error", "err", err)
				return err
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", "err", err)
			return err
		}
		return nil
	},
}
