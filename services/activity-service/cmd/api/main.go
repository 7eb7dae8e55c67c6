package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/fitness/libs/go/auth"
	"example.com/fitness/libs/go/directory"
	"example.com/fitness/libs/go/logging"
	httptransport "example.com/fitness/libs/go/transport/http"
	"example.com/fitness/services/activity-service/internal/api"
	"example.com/fitness/services/activity-service/internal/config"
	"example.com/fitness/services/activity-service/internal/domain"
	"example.com/fitness/services/activity-service/internal/persistence/mongodb"
	"example.com/fitness/services/activity-service/internal/publisher"
)

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Config{Service: "activity-service", Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	repo := mongodb.NewRepository(client.Database(cfg.MongoDatabase))
	indexCtx, cancel := context.WithTimeout(ctx, cfg.MongoTimeout)
	err = repo.EnsureIndexes(indexCtx)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create indexes")
	}

	kafkaPublisher := publisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.PublishTimeout)
	defer kafkaPublisher.Close()

	owners := directory.NewClient(directory.Config{BaseURL: cfg.UserServiceURL, Timeout: cfg.DirectoryTimeout})

	service := domain.NewService(owners, repo, kafkaPublisher,
		domain.WithTopic(cfg.ActivityTopic),
		domain.WithLogger(logger),
	)

	mux := http.NewServeMux()
	api.NewHandler(service, logger).RegisterRoutes(mux)
	mux.HandleFunc("/healthz", httptransport.Healthz)
	mux.Handle("/metrics", promhttp.Handler())

	identity := auth.NewMiddleware(auth.SkipPaths("/healthz", "/metrics"))

	serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress)
	server := httptransport.NewServer(serverCfg, logging.RequestLogger(logger)(identity.Wrap(mux)))

	if err := httptransport.Serve(ctx, server, serverCfg.ShutdownTimeout, logger); err != nil {
		logger.Error().Err(err).Msg("activity-service stopped with error")
	}
}
