package learner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/instinctd/internal/config"
)

// State records when the last analysis ran and how large the
// observation log was at that point. It is a small JSON file next to
// the observation log.
type State struct {
	LastAnalysisTime           time.Time `json:"last_analysis_time"`
	ObservationCountAtAnalysis int       `json:"observation_count_at_analysis"`
}

// StateStore reads and writes the auto-learn state file.
type StateStore struct {
	path      string
	threshold int
	cooldown  time.Duration
	logger    *zap.Logger

	// now is swapped in tests.
	now func() time.Time
}

// NewStateStore creates a store over the configured state file.
func NewStateStore(cfg *config.Config, logger *zap.Logger) (*StateStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &StateStore{
		path:      cfg.StateFile(),
		threshold: cfg.AutoLearn.ObservationThreshold,
		cooldown:  cfg.AutoLearn.Cooldown,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Load reads the state file. A missing or corrupt file yields the zero
// state, which always allows the next analysis.
func (s *StateStore) Load() State {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return State{}
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn("discarding corrupt auto-learn state", zap.String("path", s.path), zap.Error(err))
		return State{}
	}
	return st
}

// ShouldTrigger reports whether an automatic analysis is due given the
// current observation count: enough new observations since the last run
// and the cooldown elapsed.
func (s *StateStore) ShouldTrigger(observationCount int) bool {
	return s.gateReason(observationCount) == ""
}

// gateReason returns why an analysis should not run now, or "" when it
// should.
func (s *StateStore) gateReason(observationCount int) string {
	st := s.Load()
	newSince := observationCount - st.ObservationCountAtAnalysis
	if newSince < s.threshold {
		return fmt.Sprintf("only %d new observation(s) since last analysis, need %d", newSince, s.threshold)
	}
	if elapsed := s.now().Sub(st.LastAnalysisTime); elapsed < s.cooldown {
		return fmt.Sprintf("cooldown active, %s remaining", (s.cooldown - elapsed).Round(time.Second))
	}
	return ""
}

// markAnalyzed records a completed run.
func (s *StateStore) markAnalyzed(observationCount int) error {
	st := State{
		LastAnalysisTime:           s.now().UTC(),
		ObservationCountAtAnalysis: observationCount,
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal auto-learn state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write auto-learn state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace auto-learn state: %w", err)
	}
	return nil
}
