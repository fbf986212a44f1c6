// Package warmer pre-populates the interpretation cache for the most popular
// card combinations. A single warming run is active at a time; combinations
// are generated in fixed-size batches with a pacing delay between batches to
// stay inside upstream provider rate limits.
package warmer

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/errgroup"

	"github.com/mystica-ai/mystica/plugin/tarot/strategy"
	"github.com/mystica-ai/mystica/store"
)

// Generator is the external generate-and-cache collaborator.
type Generator interface {
	GenerateAndCache(ctx context.Context, combination []store.CardPlacement, spreadID *int32) error
}

// Config tunes warming behavior.
type Config struct {
	BatchSize  int           // combinations generated concurrently per batch (default: 10)
	BatchDelay time.Duration // pacing delay between batches (default: 5s)
}

// DefaultConfig returns the default warming configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:  10,
		BatchDelay: 5 * time.Second,
	}
}

// estimatedSecondsPerItem is the planning figure for one generation call,
// used only for the up-front duration estimate reported by Start.
const estimatedSecondsPerItem = 2

// Service runs warming in the background.
type Service struct {
	strategy  *strategy.Engine
	generator Generator

	batchSize  int
	batchDelay time.Duration

	mu        sync.Mutex
	running   bool
	runID     string
	startedAt time.Time
	total     int
	processed int
	success   int
	failed    int
}

// NewService creates a cache warmer.
func NewService(engine *strategy.Engine, generator Generator, cfg Config) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = 5 * time.Second
	}

	return &Service{
		strategy:   engine,
		generator:  generator,
		batchSize:  cfg.BatchSize,
		batchDelay: cfg.BatchDelay,
	}
}

// StartResult reports whether a warming run was launched.
type StartResult struct {
	Started           bool    `json:"started"`
	TotalCombinations int     `json:"totalCombinations,omitempty"`
	EstimatedMinutes  float64 `json:"estimatedMinutes,omitempty"`
	Message           string  `json:"message,omitempty"`
}

// Start launches a warming run over the topN most popular combinations and
// returns immediately with an estimate. A second Start while a run is active
// returns started=false and leaves the in-flight run untouched.
func (s *Service) Start(ctx context.Context, topN int) (*StartResult, error) {
	if topN <= 0 {
		topN = 100
	}

	combinations, err := s.strategy.TopCombinations(ctx, topN)
	if err != nil {
		return nil, err
	}
	if len(combinations) == 0 {
		return &StartResult{Started: false, Message: "no combinations to warm"}, nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return &StartResult{Started: false, Message: "warming already in progress"}, nil
	}
	s.running = true
	s.runID = shortuuid.New()
	s.startedAt = time.Now()
	s.total = len(combinations)
	s.processed = 0
	s.success = 0
	s.failed = 0
	runID := s.runID
	s.mu.Unlock()

	slog.Info("cache warming started", "run_id", runID, "combinations", len(combinations))

	// Detached from the caller: the run outlives the initiating request.
	go s.run(context.Background(), runID, combinations)

	return &StartResult{
		Started:           true,
		TotalCombinations: len(combinations),
		EstimatedMinutes:  s.estimateMinutes(len(combinations)),
	}, nil
}

func (s *Service) estimateMinutes(total int) float64 {
	batches := (total + s.batchSize - 1) / s.batchSize
	seconds := float64(total)*estimatedSecondsPerItem + float64(batches-1)*s.batchDelay.Seconds()
	return math.Ceil(seconds / 60)
}

func (s *Service) run(ctx context.Context, runID string, combinations []*strategy.TopCombination) {
	for start := 0; start < len(combinations); start += s.batchSize {
		// The first batch runs immediately; each later batch waits the full
		// delay after the previous one settles.
		if start > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.batchDelay):
			}
		}

		if !s.isRunning() {
			slog.Info("cache warming stopped early", "run_id", runID, "processed", s.Status().Processed)
			return
		}

		end := start + s.batchSize
		if end > len(combinations) {
			end = len(combinations)
		}
		s.processBatch(ctx, runID, combinations[start:end])
	}

	s.mu.Lock()
	s.running = false
	success, failed := s.success, s.failed
	s.mu.Unlock()

	slog.Info("cache warming finished", "run_id", runID, "success", success, "errors", failed)
}

// processBatch generates every member concurrently and waits for all of them
// to settle. Per-item failures are counted and logged, never fatal.
func (s *Service) processBatch(ctx context.Context, runID string, batch []*strategy.TopCombination) {
	var g errgroup.Group
	for _, combination := range batch {
		combination := combination
		g.Go(func() error {
			err := s.generator.GenerateAndCache(ctx, combination.CardCombination, combination.SpreadID)

			s.mu.Lock()
			s.processed++
			if err != nil {
				s.failed++
			} else {
				s.success++
			}
			s.mu.Unlock()

			if err != nil {
				slog.Warn("cache warming item failed",
					"run_id", runID,
					"combination", combination.CardCombination,
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Status is a point-in-time view of the warming run.
type Status struct {
	IsRunning                 bool    `json:"isRunning"`
	ProgressPercent           float64 `json:"progressPercent"`
	Total                     int     `json:"total"`
	Processed                 int     `json:"processed"`
	SuccessCount              int     `json:"successCount"`
	ErrorCount                int     `json:"errorCount"`
	EstimatedRemainingMinutes float64 `json:"estimatedRemainingMinutes"`
}

// Status reports progress of the current (or last) run.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		IsRunning:    s.running,
		Total:        s.total,
		Processed:    s.processed,
		SuccessCount: s.success,
		ErrorCount:   s.failed,
	}
	if s.total > 0 {
		status.ProgressPercent = float64(s.processed) / float64(s.total) * 100
	}
	if s.running && s.processed > 0 {
		perItem := time.Since(s.startedAt) / time.Duration(s.processed)
		remaining := perItem * time.Duration(s.total-s.processed)
		status.EstimatedRemainingMinutes = math.Round(remaining.Minutes()*10) / 10
	}
	return status
}

// Stop requests cooperative cancellation. The in-flight batch completes;
// only subsequent batches are skipped.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.running = false
		slog.Info("cache warming stop requested", "run_id", s.runID)
	}
}

func (s *Service) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
