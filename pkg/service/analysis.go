// Package service runs risk analyses as background jobs and keeps their
// results in memory.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gilchrisn/procurement-risk-graph/pkg/aggregation"
	"github.com/gilchrisn/procurement-risk-graph/pkg/config"
	"github.com/gilchrisn/procurement-risk-graph/pkg/metrics"
	"github.com/gilchrisn/procurement-risk-graph/pkg/models"
	"github.com/gilchrisn/procurement-risk-graph/pkg/parser"
	"github.com/gilchrisn/procurement-risk-graph/pkg/pipeline"
)

var (
	ErrNotFound  = errors.New("analysis not found")
	ErrNotReady  = errors.New("analysis has no result yet")
	ErrCapacity  = errors.New("analysis capacity reached")
	ErrBadParams = errors.New("invalid analysis parameters")
)

var validate = validator.New()

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Finished reports whether the status is terminal
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Parameters are the per-analysis detection settings
type Parameters struct {
	Resolution float64 `json:"resolution" validate:"gt=0"`
	Seed       int64   `json:"seed"`
	Runs       int     `json:"runs" validate:"min=1,max=1000"`
}

type Progress struct {
	Percentage int    `json:"percentage"`
	Stage      string `json:"stage"`
}

// Analysis is the externally visible state of one job
type Analysis struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Status      Status                `json:"status"`
	Parameters  Parameters            `json:"parameters"`
	Progress    Progress              `json:"progress"`
	Rows        int                   `json:"rows"`
	Stats       *aggregation.Stats    `json:"stats,omitempty"`
	Metrics     *models.GlobalMetrics `json:"metrics,omitempty"`
	Error       string                `json:"error,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

type job struct {
	analysis Analysis
	rows     []models.ContractRow
	result   *pipeline.Result
	cancel   context.CancelFunc
	done     chan struct{}
}

// AnalysisService handles background analysis processing
type AnalysisService struct {
	mu      sync.RWMutex
	jobs    map[string]*job
	workers chan struct{}
	maxJobs int
	timeout time.Duration
	base    pipeline.Options
	mapping parser.ColumnMapping
	logger  zerolog.Logger
	metrics *metrics.Registry
}

// NewAnalysisService creates a service from the application configuration.
// A nil registry disables instrumentation.
func NewAnalysisService(cfg *config.Config, logger zerolog.Logger, registry *metrics.Registry) *AnalysisService {
	return &AnalysisService{
		jobs:    make(map[string]*job),
		workers: make(chan struct{}, cfg.Jobs.Workers),
		maxJobs: cfg.Jobs.MaxJobs,
		timeout: cfg.Jobs.Timeout,
		base:    pipeline.OptionsFromConfig(cfg),
		mapping: parser.DefaultColumnMapping(),
		logger:  logger.With().Str("component", "service").Logger(),
		metrics: registry,
	}
}

// DefaultParameters returns the configured detection settings
func (s *AnalysisService) DefaultParameters() Parameters {
	return Parameters{
		Resolution: s.base.Detection.Resolution,
		Seed:       s.base.Detection.Seed,
		Runs:       s.base.Detection.Runs,
	}
}

// Submit parses the contract table synchronously, so column errors surface
// immediately, then runs the pipeline in the background
func (s *AnalysisService) Submit(name string, r io.Reader, params Parameters) (Analysis, error) {
	if err := validate.Struct(params); err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", ErrBadParams, err)
	}

	rows, _, err := parser.ReadContracts(r, s.mapping)
	if err != nil {
		return Analysis{}, err
	}

	s.mu.Lock()
	if err := s.makeRoomLocked(); err != nil {
		s.mu.Unlock()
		return Analysis{}, err
	}

	now := time.Now()
	j := &job{
		analysis: Analysis{
			ID:         uuid.New().String(),
			Name:       name,
			Status:     StatusPending,
			Parameters: params,
			Progress:   Progress{Stage: "queued"},
			Rows:       len(rows),
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		rows: rows,
		done: make(chan struct{}),
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), s.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	j.cancel = cancel
	s.jobs[j.analysis.ID] = j
	snapshot := j.analysis
	s.publishLocked()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.AnalysesSubmittedTotal.Inc()
	}

	s.logger.Info().
		Str("analysis_id", snapshot.ID).
		Str("name", name).
		Int("rows", len(rows)).
		Float64("resolution", params.Resolution).
		Int64("seed", params.Seed).
		Int("runs", params.Runs).
		Msg("Analysis submitted")

	go s.process(ctx, j)

	return snapshot, nil
}

// makeRoomLocked evicts the oldest finished analysis when at capacity
func (s *AnalysisService) makeRoomLocked() error {
	if len(s.jobs) < s.maxJobs {
		return nil
	}

	var oldest *job
	for _, j := range s.jobs {
		if !j.analysis.Status.Finished() {
			continue
		}
		if oldest == nil || j.analysis.CreatedAt.Before(oldest.analysis.CreatedAt) {
			oldest = j
		}
	}
	if oldest == nil {
		return ErrCapacity
	}

	delete(s.jobs, oldest.analysis.ID)
	s.logger.Debug().Str("analysis_id", oldest.analysis.ID).Msg("Analysis evicted")
	return nil
}

func (s *AnalysisService) process(ctx context.Context, j *job) {
	defer close(j.done)
	defer j.cancel()

	// Acquire worker slot
	select {
	case s.workers <- struct{}{}:
		defer func() { <-s.workers }()
	case <-ctx.Done():
		s.finish(j, nil, ctx.Err())
		return
	}

	started := time.Now()
	s.update(j, func(a *Analysis) {
		a.Status = StatusRunning
		a.StartedAt = &started
	})

	opts := s.base
	opts.Detection.Resolution = j.analysis.Parameters.Resolution
	opts.Detection.Seed = j.analysis.Parameters.Seed
	opts.Detection.Runs = j.analysis.Parameters.Runs
	opts.Progress = func(stage string, percentage int) {
		s.update(j, func(a *Analysis) {
			a.Progress = Progress{Percentage: percentage, Stage: stage}
		})
	}

	logger := s.logger.With().Str("analysis_id", j.analysis.ID).Logger()
	result, err := pipeline.New(opts, logger, s.metrics).Run(ctx, j.rows)
	s.finish(j, result, err)
}

func (s *AnalysisService) update(j *job, mutate func(*Analysis)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mutate(&j.analysis)
	j.analysis.UpdatedAt = time.Now()
	s.publishLocked()
}

func (s *AnalysisService) finish(j *job, result *pipeline.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	a := &j.analysis
	a.CompletedAt = &now
	a.UpdatedAt = now
	j.rows = nil

	switch {
	case err == nil:
		a.Status = StatusCompleted
		a.Progress = Progress{Percentage: 100, Stage: "done"}
		a.Stats = &result.Stats
		a.Metrics = &result.Metrics
		j.result = result

		s.logger.Info().
			Str("analysis_id", a.ID).
			Int("communities", result.Metrics.CommunitiesCount).
			Float64("modularity", result.Metrics.Modularity).
			Int64("runtime_ms", result.RuntimeMS).
			Msg("Analysis completed")
	case errors.Is(err, context.Canceled):
		a.Status = StatusCancelled
		a.Error = err.Error()
		s.logger.Info().Str("analysis_id", a.ID).Msg("Analysis cancelled")
	default:
		a.Status = StatusFailed
		a.Error = err.Error()
		s.logger.Error().Str("analysis_id", a.ID).Err(err).Msg("Analysis failed")
	}

	s.publishLocked()
}

func (s *AnalysisService) publishLocked() {
	if s.metrics == nil {
		return
	}
	counts := make(map[string]int)
	for _, j := range s.jobs {
		counts[string(j.analysis.Status)]++
	}
	s.metrics.SetAnalyses(counts)
}

// Get retrieves an analysis by id
func (s *AnalysisService) Get(id string) (Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return Analysis{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return j.analysis, nil
}

// Result returns the pipeline result of a completed analysis
func (s *AnalysisService) Result(id string) (*pipeline.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if j.result == nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotReady, id, j.analysis.Status)
	}
	return j.result, nil
}

// List returns every analysis, oldest first
func (s *AnalysisService) List() []Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()

	analyses := make([]Analysis, 0, len(s.jobs))
	for _, j := range s.jobs {
		analyses = append(analyses, j.analysis)
	}
	sort.Slice(analyses, func(i, k int) bool {
		return analyses[i].CreatedAt.Before(analyses[k].CreatedAt)
	})
	return analyses
}

// Wait blocks until the analysis finishes or ctx is done
func (s *AnalysisService) Wait(ctx context.Context, id string) (Analysis, error) {
	s.mu.RLock()
	j, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return Analysis{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	select {
	case <-j.done:
	case <-ctx.Done():
		return Analysis{}, ctx.Err()
	}
	return s.Get(id)
}

// Delete cancels the analysis if it is still running and forgets it
func (s *AnalysisService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	j.cancel()
	delete(s.jobs, id)
	s.publishLocked()

	s.logger.Info().Str("analysis_id", id).Msg("Analysis deleted")
	return nil
}

// Close cancels every unfinished analysis
func (s *AnalysisService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		if !j.analysis.Status.Finished() {
			j.cancel()
		}
	}
}
