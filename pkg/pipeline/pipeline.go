// Package pipeline chains aggregation, scoring, projection, community
// detection and summarization into one in-memory batch run.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/procurement-risk-graph/pkg/aggregation"
	"github.com/gilchrisn/procurement-risk-graph/pkg/clustering"
	"github.com/gilchrisn/procurement-risk-graph/pkg/config"
	"github.com/gilchrisn/procurement-risk-graph/pkg/materialization"
	"github.com/gilchrisn/procurement-risk-graph/pkg/metrics"
	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
	"github.com/gilchrisn/procurement-risk-graph/pkg/parser"
	"github.com/gilchrisn/procurement-risk-graph/pkg/risk"
	"github.com/gilchrisn/procurement-risk-graph/pkg/summary"
	"github.com/gilchrisn/procurement-risk-graph/pkg/validation"
)

// Stage names, also used as metric labels
const (
	StageAggregate = "aggregate"
	StageScore     = "score"
	StageProject   = "project"
	StageDetect    = "detect"
	StageSummarize = "summarize"
)

// ProgressFunc receives the stage about to start and overall completion
type ProgressFunc func(stage string, percentage int)

// Options configures a pipeline
type Options struct {
	Detection         clustering.Options
	Percentile        float64
	TopK              int
	MinCommunityEdges int
	CaseStudies       int // highest-risk edges and actors to keep
	TopSuppliers      int // suppliers kept in the PageRank ranking
	Progress          ProgressFunc
}

// DefaultOptions mirrors the default configuration
func DefaultOptions() Options {
	return Options{
		Detection:         clustering.DefaultOptions(),
		Percentile:        summary.DefaultPercentile,
		TopK:              12,
		MinCommunityEdges: 20,
		CaseStudies:       20,
		TopSuppliers:      10,
	}
}

// OptionsFromConfig maps application settings onto pipeline options
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.Detection.Resolution = cfg.Analysis.Resolution
	opts.Detection.Seed = cfg.Analysis.Seed
	opts.Detection.Runs = cfg.Analysis.Runs
	opts.Detection.RunTimeout = cfg.Analysis.RunTimeout
	opts.Detection.Parallelism = cfg.Analysis.Parallelism
	opts.Detection.MaxLevels = cfg.Louvain.MaxLevels
	opts.Detection.MaxIterations = cfg.Louvain.MaxIterations
	opts.Detection.Threshold = cfg.Louvain.Threshold
	opts.TopK = cfg.Output.TopK
	opts.MinCommunityEdges = cfg.Output.MinCommunityEdges
	return opts
}

// Result contains every table produced by a pipeline run
type Result struct {
	Rows            []models.ContractRow
	Stats           aggregation.Stats
	Edges           []models.Edge
	Scored          []models.ScoredEdge
	Projection      *materialization.SupplierProjection
	ProjectionStats materialization.ProjectionStats
	Detection       *clustering.Detection
	Summary         *summary.Summary
	TopLarge        []models.CommunitySummary
	Suppliers       []models.SupplierCommunity
	Metrics         models.GlobalMetrics

	TopRisk           []models.ScoredEdge
	BuyersHighRisk    []models.ActorRisk
	SuppliersHighRisk []models.ActorRisk
	RiskQuantiles     []models.QuantilePoint
	Centrality        []models.SupplierRank

	RuntimeMS int64
}

// Pipeline runs the five analysis stages in order
type Pipeline struct {
	opts    Options
	logger  zerolog.Logger
	metrics *metrics.Registry
}

// New creates a pipeline. A nil registry disables instrumentation.
func New(opts Options, logger zerolog.Logger, registry *metrics.Registry) *Pipeline {
	opts.Detection.Logger = logger.With().Str("component", "clustering").Logger()
	return &Pipeline{
		opts:    opts,
		logger:  logger.With().Str("component", "pipeline").Logger(),
		metrics: registry,
	}
}

// RunFile loads a contract CSV with the given mapping and runs the pipeline
func (p *Pipeline) RunFile(ctx context.Context, path string, mapping parser.ColumnMapping) (*Result, error) {
	rows, schema, err := parser.ReadContractsFile(path, mapping)
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("path", path).
		Int("rows", len(rows)).
		Int("columns", len(schema.Header)).
		Msg("Contracts loaded")

	return p.Run(ctx, rows)
}

// Run executes every stage over the given contract rows
func (p *Pipeline) Run(ctx context.Context, rows []models.ContractRow) (*Result, error) {
	result, err := p.run(ctx, rows)
	if p.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		p.metrics.RecordPipelineRun(status)
	}
	return result, err
}

func (p *Pipeline) run(ctx context.Context, rows []models.ContractRow) (*Result, error) {
	start := time.Now()
	result := &Result{Rows: rows}

	// Stage 1: buyer-supplier edges
	p.stage(StageAggregate, 0)
	stageStart := time.Now()
	result.Edges = aggregation.Aggregate(rows)
	result.Stats = aggregation.ComputeStats(rows, result.Edges)
	if err := validation.ValidateEdges(result.Edges); err != nil {
		return nil, fmt.Errorf("aggregated edge table is inconsistent: %w", err)
	}
	p.observe(StageAggregate, stageStart)

	p.logger.Info().
		Int("rows", result.Stats.Rows).
		Int("buyers", result.Stats.Buyers).
		Int("suppliers", result.Stats.Suppliers).
		Int("edges", result.Stats.Edges).
		Msg("Edges aggregated")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 2: risk features
	p.stage(StageScore, 20)
	stageStart = time.Now()
	result.Scored = risk.Score(result.Edges)
	p.observe(StageScore, stageStart)

	lo, hi := risk.Range(result.Scored)
	p.logger.Info().
		Int("edges", len(result.Scored)).
		Float64("risk_min", lo).
		Float64("risk_max", hi).
		Msg("Edges scored")

	// Stage 3: supplier projection
	p.stage(StageProject, 40)
	stageStart = time.Now()
	bipartite := materialization.BuildBipartite(result.Edges)
	result.Projection = bipartite.ProjectSuppliers()
	result.ProjectionStats = result.Projection.Stats(bipartite)
	p.observe(StageProject, stageStart)

	p.logger.Info().
		Int("suppliers", result.ProjectionStats.Suppliers).
		Int("projection_edges", result.ProjectionStats.ProjectionEdges).
		Int("isolated", result.ProjectionStats.IsolatedSuppliers).
		Msg("Supplier projection built")

	// Stage 4: best-of-N communities
	p.stage(StageDetect, 60)
	stageStart = time.Now()
	detection, err := clustering.Detect(ctx, result.Projection, p.opts.Detection)
	if err != nil {
		return nil, fmt.Errorf("community detection failed: %w", err)
	}
	result.Detection = detection
	p.observe(StageDetect, stageStart)
	if p.metrics != nil {
		p.metrics.RecordRuns(detection.Runs)
	}

	// Stage 5: per-community risk
	p.stage(StageSummarize, 90)
	stageStart = time.Now()
	result.Summary, err = summary.Summarize(result.Scored, detection.Assignment, summary.Options{Percentile: p.opts.Percentile})
	if err != nil {
		return nil, fmt.Errorf("community summary failed: %w", err)
	}
	result.TopLarge = summary.TopLarge(result.Summary.Communities, p.opts.MinCommunityEdges, p.opts.TopK)
	result.Suppliers = summary.SupplierCommunities(detection.Partition, result.Projection)
	result.Metrics = summary.Global(result.Projection, detection, result.Summary)

	result.TopRisk = summary.TopRiskEdges(result.Scored, p.opts.CaseStudies)
	result.BuyersHighRisk = result.Summary.HighRiskBuyers(result.Scored, p.opts.CaseStudies)
	result.SuppliersHighRisk = result.Summary.HighRiskSuppliers(result.Scored, p.opts.CaseStudies)
	result.RiskQuantiles = summary.RiskQuantiles(result.Scored)
	result.Centrality = result.Projection.TopSuppliers(p.opts.TopSuppliers)
	p.observe(StageSummarize, stageStart)

	result.RuntimeMS = time.Since(start).Milliseconds()
	if p.metrics != nil {
		p.metrics.UpdateResult(len(rows), len(result.Edges), result.Metrics)
	}
	p.stage("done", 100)

	p.logger.Info().
		Int("communities", result.Metrics.CommunitiesCount).
		Int("largest_community", result.Metrics.LargestCommunitySuppliers).
		Float64("modularity", result.Metrics.Modularity).
		Int64("best_seed", result.Metrics.BestSeed).
		Float64("risk_threshold", result.Metrics.RiskThreshold).
		Float64("global_high_risk_share", result.Metrics.GlobalHighRiskShare).
		Int64("runtime_ms", result.RuntimeMS).
		Msg("Pipeline completed")

	return result, nil
}

func (p *Pipeline) stage(name string, percentage int) {
	if p.opts.Progress != nil {
		p.opts.Progress(name, percentage)
	}
}

func (p *Pipeline) observe(name string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordStage(name, time.Since(start))
	}
}
