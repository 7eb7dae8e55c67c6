package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"example.com/fitness/libs/go/auth"
	"example.com/fitness/libs/go/logging"
	httptransport "example.com/fitness/libs/go/transport/http"
	"example.com/fitness/services/recommendation-service/internal/api"
	"example.com/fitness/services/recommendation-service/internal/config"
	"example.com/fitness/services/recommendation-service/internal/consumer"
	"example.com/fitness/services/recommendation-service/internal/queue"
)

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Config{Service: "recommendation-service", Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	pending := queue.NewPendingQueue(rdb, cfg.PendingQueueCap, cfg.PendingQueueTTL)
	handler := consumer.NewIngestHandler(pending)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", httptransport.Healthz)
	api.NewHandler(pending, logger).RegisterRoutes(mux)

	identity := auth.NewMiddleware(auth.SkipPaths("/healthz", "/metrics"))
	serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress)
	server := httptransport.NewServer(serverCfg, logging.RequestLogger(logger)(identity.Wrap(mux)))
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		if err := httptransport.Serve(ctx, server, serverCfg.ShutdownTimeout, logger); err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		GroupID:        cfg.ConsumerGroup,
		Topic:          cfg.ActivityTopic,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	logger.Info().Str("topic", cfg.ActivityTopic).Str("group", cfg.ConsumerGroup).Msg("recommendation consumer started")
	proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(logger))
	if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped with error")
	}

	stop()
	<-serverDone
	logger.Info().Msg("recommendation service shut down")
}
