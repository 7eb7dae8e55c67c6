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
	"example.com/fitness/services/api-gateway/internal/config"
	"example.com/fitness/services/api-gateway/internal/proxy"
	"example.com/fitness/services/api-gateway/internal/reconcile"
)

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Config{Service: "api-gateway", Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router, err := proxy.NewRouter([]proxy.Route{
		{Prefix: "/api/v1/users", Target: cfg.UserServiceURL},
		{Prefix: "/api/v1/activity", Target: cfg.ActivityServiceURL},
		{Prefix: "/api/v1/recommendation", Target: cfg.RecommendationServiceURL},
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid route table")
	}

	dir := directory.NewClient(directory.Config{BaseURL: cfg.UserServiceURL, Timeout: cfg.DirectoryTimeout})

	opts := []reconcile.Option{
		reconcile.WithLogger(logger),
		reconcile.WithExtractor(auth.NewExtractor(auth.WithHMACVerification(auth.Config{
			Secret: cfg.JWTSecret,
			Issuer: cfg.JWTIssuer,
		}))),
	}
	if cfg.IdentityCacheTTL > 0 {
		cache := reconcile.NewTTLCache(cfg.IdentityCacheTTL, uint64(cfg.IdentityCacheSize))
		defer cache.Stop()
		opts = append(opts, reconcile.WithCache(cache))
	}
	filter := reconcile.NewFilter(dir, opts...)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httptransport.Healthz)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", filter.Wrap(router))

	serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress)
	server := httptransport.NewServer(serverCfg, logging.RequestLogger(logger)(mux))

	if err := httptransport.Serve(ctx, server, serverCfg.ShutdownTimeout, logger); err != nil {
		logger.Error().Err(err).Msg("api-gateway stopped with error")
	}
}
