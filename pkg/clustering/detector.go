// Package clustering partitions the supplier projection into communities by
// running several independently seeded Louvain searches concurrently and
// keeping the best partition.
package clustering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/procurement-risk-graph/pkg/louvain"
	"github.com/gilchrisn/procurement-risk-graph/pkg/materialization"
	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
)

// ErrNoCompletedRuns is returned when every run was excluded by its timeout
var ErrNoCompletedRuns = errors.New("no community detection run completed")

// runs optimize at the configured resolution; selection and reporting use
// standard modularity
const scoringResolution = 1.0

// Options configures a best-of-N detection
type Options struct {
	Resolution    float64
	Seed          int64
	Runs          int
	RunTimeout    time.Duration // 0 disables the per-run timeout
	Parallelism   int           // 0 runs every seed at once
	MaxLevels     int
	MaxIterations int // local-move sweeps per level, 0 keeps the louvain default
	Threshold     float64
	Logger        zerolog.Logger
}

// DefaultOptions returns resolution 1.0, seed 42 and 12 runs
func DefaultOptions() Options {
	return Options{
		Resolution: 1.0,
		Seed:       42,
		Runs:       12,
		MaxLevels:  32,
		Threshold:  1e-7,
		Logger:     zerolog.Nop(),
	}
}

// Partition assigns every supplier of a projection to exactly one community
type Partition struct {
	Communities [][]string     `json:"communities"` // community id -> suppliers
	Assignment  map[string]int `json:"assignment"`  // supplier -> community id
}

// Sizes returns the number of suppliers in each community
func (p Partition) Sizes() []int {
	sizes := make([]int, len(p.Communities))
	for i, c := range p.Communities {
		sizes[i] = len(c)
	}
	return sizes
}

// Largest returns the size of the largest community
func (p Partition) Largest() int {
	largest := 0
	for _, c := range p.Communities {
		if len(c) > largest {
			largest = len(c)
		}
	}
	return largest
}

// Detection is the selected partition plus per-run diagnostics
type Detection struct {
	Partition
	Modularity float64                `json:"modularity"`
	BestSeed   int64                  `json:"best_seed"`
	SeedStart  int64                  `json:"seed_start"`
	Runs       []models.RunDiagnostic `json:"runs"`
	Result     *louvain.Result        `json:"-"`
}

// Completed returns the modularity of every run that was not excluded
func (d *Detection) Completed() []float64 {
	values := make([]float64, 0, len(d.Runs))
	for _, r := range d.Runs {
		if !r.Excluded {
			values = append(values, r.Modularity)
		}
	}
	return values
}

// ModularityStats returns mean, population standard deviation, min and max
// of completed runs' modularity
func (d *Detection) ModularityStats() (mean, std, min, max float64) {
	values := d.Completed()
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	mean, std = stat.PopMeanStdDev(values, nil)
	return mean, std, floats.Min(values), floats.Max(values)
}

type runOutcome struct {
	result     *louvain.Result
	diagnostic models.RunDiagnostic
}

// Detect runs opts.Runs seeded Louvain searches over the projection and
// selects the partition with the highest modularity, preferring the lowest
// seed on ties. Runs share the projection read-only.
func Detect(ctx context.Context, proj *materialization.SupplierProjection, opts Options) (*Detection, error) {
	if opts.Runs <= 0 {
		return nil, fmt.Errorf("run count must be positive, got %d", opts.Runs)
	}

	graph, err := proj.ToLouvainGraph()
	if err != nil {
		return nil, fmt.Errorf("failed to build clustering graph: %w", err)
	}

	logger := opts.Logger
	logger.Info().
		Int("nodes", graph.NumNodes).
		Int("edges", proj.NumEdges()).
		Int("runs", opts.Runs).
		Int64("seed_start", opts.Seed).
		Float64("resolution", opts.Resolution).
		Msg("Starting community detection")

	outcomes := make([]runOutcome, opts.Runs)

	g, gctx := errgroup.WithContext(ctx)
	if opts.Parallelism > 0 {
		g.SetLimit(opts.Parallelism)
	}

	for i := 0; i < opts.Runs; i++ {
		i := i
		seed := opts.Seed + int64(i)
		g.Go(func() error {
			outcome, err := runOnce(gctx, graph, seed, opts)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := -1
	for i, o := range outcomes {
		if o.diagnostic.Excluded {
			logger.Warn().
				Int64("seed", o.diagnostic.Seed).
				Str("reason", o.diagnostic.Error).
				Msg("Run excluded from selection")
			continue
		}
		if best < 0 || better(o.diagnostic, outcomes[best].diagnostic) {
			best = i
		}
	}
	if best < 0 {
		return nil, ErrNoCompletedRuns
	}

	selected := outcomes[best]
	detection := &Detection{
		Partition:  toPartition(selected.result, proj.Suppliers()),
		Modularity: selected.diagnostic.Modularity,
		BestSeed:   selected.diagnostic.Seed,
		SeedStart:  opts.Seed,
		Runs:       make([]models.RunDiagnostic, len(outcomes)),
		Result:     selected.result,
	}
	for i, o := range outcomes {
		detection.Runs[i] = o.diagnostic
	}

	logger.Info().
		Int64("best_seed", detection.BestSeed).
		Float64("modularity", detection.Modularity).
		Int("communities", len(detection.Communities)).
		Msg("Community detection completed")

	return detection, nil
}

// better reports whether a beats b: strictly higher modularity, then lower seed
func better(a, b models.RunDiagnostic) bool {
	if a.Modularity != b.Modularity {
		return a.Modularity > b.Modularity
	}
	return a.Seed < b.Seed
}

func runOnce(ctx context.Context, graph *louvain.Graph, seed int64, opts Options) (runOutcome, error) {
	start := time.Now()
	diagnostic := models.RunDiagnostic{Seed: seed}

	runCtx := ctx
	if opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.RunTimeout)
		defer cancel()
	}

	config := louvain.NewConfig()
	config.Set("algorithm.random_seed", seed)
	config.Set("algorithm.resolution", opts.Resolution)
	if opts.MaxLevels > 0 {
		config.Set("algorithm.max_levels", opts.MaxLevels)
	}
	if opts.MaxIterations > 0 {
		config.Set("algorithm.max_iterations", opts.MaxIterations)
	}
	if opts.Threshold > 0 {
		config.Set("algorithm.threshold", opts.Threshold)
	}
	config.SetLogger(opts.Logger.With().Int64("seed", seed).Logger())

	result, err := louvain.Run(runCtx, graph, config)
	diagnostic.RuntimeMS = time.Since(start).Milliseconds()
	if err != nil {
		// a run that outlives its own deadline is dropped, not fatal
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			diagnostic.Excluded = true
			diagnostic.Error = err.Error()
			return runOutcome{diagnostic: diagnostic}, nil
		}
		return runOutcome{}, fmt.Errorf("run with seed %d failed: %w", seed, err)
	}

	diagnostic.Modularity = louvain.Modularity(graph, result.Membership, scoringResolution)
	diagnostic.CommunitiesCount = len(result.Communities)
	diagnostic.Levels = result.NumLevels

	return runOutcome{result: result, diagnostic: diagnostic}, nil
}

func toPartition(result *louvain.Result, suppliers []string) Partition {
	partition := Partition{
		Communities: make([][]string, len(result.Communities)),
		Assignment:  make(map[string]int, len(suppliers)),
	}
	for c, members := range result.Communities {
		partition.Communities[c] = make([]string, len(members))
		for i, node := range members {
			partition.Communities[c][i] = suppliers[node]
			partition.Assignment[suppliers[node]] = c
		}
	}
	return partition
}
