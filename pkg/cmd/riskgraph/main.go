// Command riskgraph runs the procurement risk analysis over a contract CSV
// and writes every produced table to an output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/gilchrisn/procurement-risk-graph/pkg/config"
	"github.com/gilchrisn/procurement-risk-graph/pkg/output"
	"github.com/gilchrisn/procurement-risk-graph/pkg/parser"
	"github.com/gilchrisn/procurement-risk-graph/pkg/pipeline"
	"github.com/gilchrisn/procurement-risk-graph/pkg/validation"
)

func main() {
	var (
		input      = flag.String("input", "", "contract CSV file (plain or gzip)")
		configFile = flag.String("config", "", "optional YAML/JSON/TOML config file")
		envFile    = flag.String("env", "", "optional .env file")
		outputDir  = flag.String("output", "", "output directory (overrides output.dir)")
		resolution = flag.Float64("resolution", 1.0, "modularity resolution")
		seed       = flag.Int64("seed", 42, "base random seed")
		runs       = flag.Int("runs", 12, "number of seeded Louvain runs")
		runTimeout = flag.Duration("run-timeout", 0, "per-run timeout, 0 disables")
		logLevel   = flag.String("log-level", "", "trace, debug, info, warn or error")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s -input contracts.csv [flags]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	if *envFile != "" {
		if err := config.LoadEnv(*envFile); err != nil {
			log.Fatal().Err(err).Str("path", *envFile).Msg("Failed to load env file")
		}
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// explicitly passed flags win over file and environment
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output":
			cfg.Output.Dir = *outputDir
		case "resolution":
			cfg.Analysis.Resolution = *resolution
		case "seed":
			cfg.Analysis.Seed = *seed
		case "runs":
			cfg.Analysis.Runs = *runs
		case "run-timeout":
			cfg.Analysis.RunTimeout = *runTimeout
		case "log-level":
			cfg.Logging.Level = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := cfg.CreateLogger()
	log.Logger = logger

	if err := validation.ValidateInputFile(*input); err != nil {
		logger.Fatal().Err(err).Msg("Invalid input")
	}
	if err := validation.ValidateOutputDirectory(cfg.Output.Dir); err != nil {
		logger.Fatal().Err(err).Msg("Invalid output directory")
	}

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.Debug().Msgf(format, args...)
	})); err != nil {
		logger.Warn().Err(err).Msg("Failed to set GOMAXPROCS")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("input", *input).
		Float64("resolution", cfg.Analysis.Resolution).
		Int64("seed", cfg.Analysis.Seed).
		Int("runs", cfg.Analysis.Runs).
		Str("output", cfg.Output.Dir).
		Msg("Starting analysis")

	p := pipeline.New(pipeline.OptionsFromConfig(cfg), logger, nil)
	result, err := p.RunFile(ctx, *input, parser.DefaultColumnMapping())
	if err != nil {
		logger.Fatal().Err(err).Msg("Analysis failed")
	}

	paths, err := output.NewFileWriter().WriteAll(result, cfg.Output.Dir)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to write outputs")
	}
	for _, path := range paths {
		logger.Info().Str("path", path).Msg("Wrote")
	}

	m := result.Metrics
	fmt.Printf("projection_nodes %d\n", m.ProjectionNodes)
	fmt.Printf("projection_edges %d\n", m.ProjectionEdges)
	fmt.Printf("communities_count %d\n", m.CommunitiesCount)
	fmt.Printf("modularity %.6f\n", m.Modularity)
	fmt.Printf("best_seed %d\n", m.BestSeed)
	fmt.Printf("modularity_mean %.6f\n", m.ModularityMean)
	fmt.Printf("risk_p95_threshold %.6f\n", m.RiskThreshold)
	fmt.Printf("global_high_risk_share %.6f\n", m.GlobalHighRiskShare)
}
