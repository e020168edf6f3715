package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	serverhttp "github.com/garmage/API-CTC-finetuned/internal/http"
	"github.com/garmage/API-CTC-finetuned/internal/observability"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Run the HTTP server.

Endpoints:
  POST /transcribe   multipart upload, field "file"
  GET  /healthz      liveness
  GET  /readyz       capability availability

The server stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shutdownTelemetry, err := observability.Init(ctx, observability.Config{
			ServiceName: cfg.OTelServiceName,
			Endpoint:    cfg.OTelEndpoint,
			Insecure:    cfg.OTelInsecure,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				log.Warn().Err(err).Msg("telemetry shutdown failed")
			}
		}()
		metrics, err := observability.NewMetrics(nil)
		if err != nil {
			return err
		}

		p, closePipeline, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := closePipeline(); err != nil {
				log.Warn().Err(err).Msg("closing capabilities failed")
			}
		}()

		srv := &http.Server{
			Addr:         cfg.Addr(),
			Handler:      serverhttp.NewRouter(serverhttp.NewHandler(p, metrics), cfg.MaxUploadBytes),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", cfg.Addr()).Msg("transcription server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				log.Error().Err(err).Msg("server failed")
			}
			return err
		case <-ctx.Done():
		}

		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	},
}
