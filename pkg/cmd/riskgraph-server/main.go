// Command riskgraph-server exposes risk analyses over a REST API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/gilchrisn/procurement-risk-graph/pkg/api"
	"github.com/gilchrisn/procurement-risk-graph/pkg/config"
	"github.com/gilchrisn/procurement-risk-graph/pkg/metrics"
	"github.com/gilchrisn/procurement-risk-graph/pkg/service"
)

func main() {
	configFile := flag.String("config", "", "optional YAML/JSON/TOML config file")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := config.LoadEnv(); err != nil {
		log.Debug().Msg("No .env file found, using system environment variables")
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := cfg.CreateLogger()
	log.Logger = logger

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.Debug().Msgf(format, args...)
	})); err != nil {
		logger.Warn().Err(err).Msg("Failed to set GOMAXPROCS")
	}

	logger.Info().
		Str("address", cfg.Server.Address).
		Int("workers", cfg.Jobs.Workers).
		Int("max_jobs", cfg.Jobs.MaxJobs).
		Dur("job_timeout", cfg.Jobs.Timeout).
		Msg("Configuration loaded")

	registry := metrics.DefaultRegistry()
	analyses := service.NewAnalysisService(cfg, logger, registry)
	defer analyses.Close()

	handlers := api.NewHandlers(analyses, logger)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.NewRouter(handlers, registry, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("address", cfg.Server.Address).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server shutdown complete")
}
