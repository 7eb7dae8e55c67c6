package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/fitness/libs/go/logging"
	httptransport "example.com/fitness/libs/go/transport/http"
	"example.com/fitness/services/user-service/internal/api"
	"example.com/fitness/services/user-service/internal/config"
	"example.com/fitness/services/user-service/internal/domain"
	"example.com/fitness/services/user-service/internal/persistence/memory"
	"example.com/fitness/services/user-service/internal/persistence/postgres"
)

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Config{Service: "user-service", Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repo domain.Repository
	if cfg.PostgresURL == "" {
		logger.Warn().Msg("POSTGRES_URL not set, using in-memory user repository")
		repo = memory.NewRepository()
	} else {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		defer pool.Close()

		pgRepo := postgres.NewRepository(pool)
		schemaCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		err = pgRepo.EnsureSchema(schemaCtx)
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to apply schema")
		}
		repo = pgRepo
	}

	service := domain.NewService(repo, domain.WithBcryptCost(cfg.BcryptCost))

	mux := http.NewServeMux()
	api.NewHandler(service, logger).RegisterRoutes(mux)
	mux.HandleFunc("/healthz", httptransport.Healthz)
	mux.Handle("/metrics", promhttp.Handler())

	serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress)
	server := httptransport.NewServer(serverCfg, logging.RequestLogger(logger)(mux))

	if err := httptransport.Serve(ctx, server, serverCfg.ShutdownTimeout, logger); err != nil {
		logger.Error().Err(err).Msg("user-service stopped with error")
	}
}
