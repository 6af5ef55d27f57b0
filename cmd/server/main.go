package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"dabbathon/internal/config"
	"dabbathon/internal/constants"
	fxmodules "dabbathon/internal/fx"
	"dabbathon/internal/livesync"
	"dabbathon/internal/middleware"
	"dabbathon/internal/remote"
	"dabbathon/internal/server"
	"dabbathon/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	dashboard *server.DashboardServer,
	adapter *livesync.Adapter,
	ops *service.Operations,
	pusher *remote.Pusher,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	mux := http.NewServeMux()

	if cfg.AdminPasskey == "" {
		logger.Warn().Msg("ADMIN_PASSKEY is empty, admin procedures will reject every call")
	}

	path, handler := dashboard.Handler()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-ID", "Grpc-Status", "Grpc-Message", "Connect-Protocol-Version"},
		AllowCredentials: true,
	})

	requestIDMiddleware := middleware.RequestID(logger)

	mux.Handle(path, requestIDMiddleware(c.Handler(handler)))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !adapter.Started() {
			http.Error(w, "live sync not attached", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           mux,
		ReadHeaderTimeout: constants.RequestTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := adapter.Init(ctx); err != nil {
				return err
			}
			if _, err := ops.SeedDefaults(ctx); err != nil {
				logger.Warn().Err(err).Msg("failed to seed default config")
			}

			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}

			if err := adapter.Stop(); err != nil {
				logger.Warn().Err(err).Msg("live sync stopped with error")
			}
			pusher.Wait()

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
