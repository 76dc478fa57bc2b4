// Package learner orchestrates one analysis run: read the observation
// log, run the pattern detectors, and fold detected patterns into the
// instinct repository.
package learner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/instinctd/internal/confidence"
	"github.com/fyrsmithlabs/instinctd/internal/config"
	"github.com/fyrsmithlabs/instinctd/internal/instinct"
	"github.com/fyrsmithlabs/instinctd/internal/observation"
	"github.com/fyrsmithlabs/instinctd/internal/patterns"
)

// repoSizeWarning is where the instinct count starts degrading the
// value of generated artifacts; the run still completes.
const repoSizeWarning = 100

// Report summarizes one analysis run for the CLI and the status server.
type Report struct {
	// RunID correlates log lines from one analysis run.
	RunID                 string    `json:"run_id"`
	SkippedReason         string    `json:"skipped_reason,omitempty"`
	ObservationsAnalyzed  int       `json:"observations_analyzed"`
	MalformedLinesSkipped int       `json:"malformed_lines_skipped"`
	PatternsDetected      int       `json:"patterns_detected"`
	InstinctsCreated      int       `json:"instincts_created"`
	InstinctsUpdated      int       `json:"instincts_updated"`
	Warnings              []string  `json:"warnings,omitempty"`
	FinishedAt            time.Time `json:"finished_at"`
}

// Options controls a single Run.
type Options struct {
	// Force skips the auto-learn gate (observation threshold and
	// cooldown) and analyzes unconditionally.
	Force bool

	// DryRun detects patterns but writes nothing to the repository.
	DryRun bool
}

// Learner wires the observation log, detectors, confidence engine, and
// repository into a single analysis entry point.
type Learner struct {
	cfg       *config.Config
	log       *observation.Log
	repo      instinct.Repository
	engine    *confidence.Engine
	detectors []patterns.Detector
	state     *StateStore
	metrics   *Metrics
	logger    *zap.Logger
}

// New creates a learner over the given storage components.
func New(cfg *config.Config, log *observation.Log, repo instinct.Repository, engine *confidence.Engine, metrics *Metrics, logger *zap.Logger) (*Learner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if log == nil {
		return nil, fmt.Errorf("observation log cannot be nil")
	}
	if repo == nil {
		return nil, fmt.Errorf("repository cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("confidence engine cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	state, err := NewStateStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Learner{
		cfg:       cfg,
		log:       log,
		repo:      repo,
		engine:    engine,
		detectors: patterns.NewDetectors(cfg.Detection),
		state:     state,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// Run performs one analysis pass.
//
// Unless forced, the run is gated by the auto-learn state: enough new
// observations must have accumulated and the cooldown must have
// elapsed. A gated run returns a Report with SkippedReason set, not an
// error.
func (l *Learner) Run(ctx context.Context, opts Options) (*Report, error) {
	runID := uuid.NewString()
	count := l.log.Count()
	if !opts.Force {
		if reason := l.state.gateReason(count); reason != "" {
			l.logger.Debug("analysis skipped",
				zap.String("run_id", runID),
				zap.String("reason", reason))
			report := &Report{RunID: runID, SkippedReason: reason, FinishedAt: time.Now().UTC()}
			l.metrics.observeRun(report, 0)
			return report, nil
		}
	}

	// Best-effort exclusion of concurrent runs. Losing the race is
	// harmless: evidence de-duplication makes a double analysis a
	// no-op, so a stale lock never blocks anything either.
	release, locked := l.tryLock()
	if locked {
		defer release()
	}

	start := time.Now()
	obs, skipped, err := l.log.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read observation log: %w", err)
	}

	report := &Report{
		RunID:                 runID,
		ObservationsAnalyzed:  len(obs),
		MalformedLinesSkipped: skipped,
	}
	if skipped > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("skipped %d malformed observation line(s)", skipped))
	}

	detected, err := patterns.DetectAll(ctx, l.detectors, obs)
	if err != nil {
		return nil, fmt.Errorf("pattern detection failed: %w", err)
	}
	report.PatternsDetected = len(detected)

	if !opts.DryRun {
		for _, p := range detected {
			res, err := l.engine.Ingest(p, l.repo)
			if err != nil {
				return nil, err
			}
			if res.Created {
				report.InstinctsCreated++
			}
			if res.Updated {
				report.InstinctsUpdated++
			}
		}
		if err := l.state.markAnalyzed(count); err != nil {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("failed to persist auto-learn state: %v", err))
		}
	}

	if all, err := l.repo.LoadAll(); err == nil && len(all) >= repoSizeWarning {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("instinct repository holds %d instincts; consider running evolve to consolidate", len(all)))
	}

	report.FinishedAt = time.Now().UTC()
	l.metrics.observeRun(report, time.Since(start))
	l.logger.Info("analysis complete",
		zap.String("run_id", runID),
		zap.Int("observations", report.ObservationsAnalyzed),
		zap.Int("patterns", report.PatternsDetected),
		zap.Int("created", report.InstinctsCreated),
		zap.Int("updated", report.InstinctsUpdated),
		zap.Duration("duration", time.Since(start)),
	)
	return report, nil
}

// tryLock creates the analysis lock file with O_EXCL. A stale lock from
// a crashed run only suppresses the exclusion, never the analysis.
func (l *Learner) tryLock() (func(), bool) {
	path := l.cfg.LockFile()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, false
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()
	return func() { os.Remove(path) }, true
}
