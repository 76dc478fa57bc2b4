// Package confidence implements the instinct confidence lifecycle:
// creation from detected patterns, confirm/contradict adjustments, lazy
// time decay, and derived dormancy.
package confidence

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/instinctd/internal/config"
	"github.com/fyrsmithlabs/instinctd/internal/instinct"
	"github.com/fyrsmithlabs/instinctd/internal/patterns"
)

// Engine applies confidence transitions. All transitions clamp into the
// configured [min, max] range; status is recomputed from confidence on
// every mutation and read.
type Engine struct {
	cfg    config.ConfidenceConfig
	logger *zap.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewEngine creates a confidence engine.
func NewEngine(cfg config.ConfidenceConfig, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Engine{cfg: cfg, logger: logger, now: time.Now}, nil
}

// WithClock overrides the engine's time source. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Initial returns the creation-time confidence for an instinct backed by
// evidenceCount observations. A step function, not a linear scale: a
// couple of sightings is weak signal, a dozen is near-certain.
func (e *Engine) Initial(evidenceCount int) float64 {
	switch {
	case evidenceCount <= 0:
		return e.cfg.Min
	case evidenceCount <= 2:
		return 0.3
	case evidenceCount <= 5:
		return 0.5
	case evidenceCount <= 10:
		return 0.7
	default:
		return 0.85
	}
}

func (e *Engine) clamp(v float64) float64 {
	if v < e.cfg.Min {
		return e.cfg.Min
	}
	if v > e.cfg.Max {
		return e.cfg.Max
	}
	return v
}

// StatusFor derives the activity state from a confidence value.
func (e *Engine) StatusFor(conf float64) instinct.Status {
	if conf < e.cfg.DormantThreshold {
		return instinct.StatusDormant
	}
	return instinct.StatusActive
}

// Effective returns the decayed confidence of an instinct as of now,
// without mutating it. Decay is anchored to UpdatedAt, which only
// advances on confirm/contradict, so repeated reads recompute the same
// value rather than compounding.
func (e *Engine) Effective(inst *instinct.Instinct) float64 {
	weeks := int(e.now().Sub(inst.UpdatedAt).Hours() / (24 * 7))
	if weeks <= 0 {
		return e.clamp(inst.Confidence)
	}
	return e.clamp(inst.Confidence - float64(weeks)*e.cfg.DecayPerWeek)
}

// Confirm cites one more observation on the instinct and raises
// confidence by the confirm delta. De-duplicated by observation
// reference: re-citing an already-cited observation is a no-op and
// returns false, which makes repeated analysis of overlapping log windows
// idempotent.
//
// Confirmation settles any accrued decay first, then applies the delta,
// and advances UpdatedAt as the new decay anchor.
func (e *Engine) Confirm(inst *instinct.Instinct, ev instinct.Evidence) bool {
	if !inst.AddEvidence(ev) {
		return false
	}
	inst.Confidence = e.clamp(e.Effective(inst) + e.cfg.ConfirmDelta)
	inst.Status = e.StatusFor(inst.Confidence)
	inst.UpdatedAt = e.now()
	return true
}

// Contradict applies an explicit negative signal: confidence drops by the
// contradict delta without adding positive evidence.
func (e *Engine) Contradict(inst *instinct.Instinct) {
	inst.Confidence = e.clamp(e.Effective(inst) - e.cfg.ContradictDelta)
	inst.Status = e.StatusFor(inst.Confidence)
	inst.UpdatedAt = e.now()
}

// IngestResult reports what one pattern did to the repository.
type IngestResult struct {
	Created bool
	Updated bool
	ID      string
}

// Ingest folds one detected pattern into the repository: a novel pattern
// creates an instinct, a matching one confirms it with any new evidence.
// Matching is by the deterministic ID derived from trigger and domain.
//
// A pattern whose stored record is corrupt is skipped with a warning,
// not returned as an error: one damaged file must never abort the whole
// analysis batch, and detectors re-derive the same ID on every run.
func (e *Engine) Ingest(p patterns.Pattern, repo instinct.Repository) (IngestResult, error) {
	id := instinct.DeriveID(p.Trigger, p.Domain)
	evidence := evidenceFrom(p)

	existing, err := repo.Get(id)
	switch {
	case err == nil:
		added := 0
		for _, ev := range evidence {
			if e.Confirm(existing, ev) {
				added++
			}
		}
		if added == 0 {
			return IngestResult{ID: id}, nil
		}
		if err := repo.Upsert(existing); err != nil {
			return IngestResult{}, fmt.Errorf("failed to update instinct %s: %w", id, err)
		}
		e.logger.Debug("confirmed instinct",
			zap.String("id", id),
			zap.Int("new_evidence", added),
			zap.Float64("confidence", existing.Confidence),
		)
		return IngestResult{Updated: true, ID: id}, nil

	case errors.Is(err, instinct.ErrNotFound):
		now := e.now()
		inst := &instinct.Instinct{
			ID:         id,
			Trigger:    p.Trigger,
			Action:     p.Action,
			Domain:     p.Domain,
			Source:     string(p.Type),
			Confidence: e.Initial(len(evidence)),
			Evidence:   evidence,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		inst.Status = e.StatusFor(inst.Confidence)
		if err := repo.Upsert(inst); err != nil {
			return IngestResult{}, fmt.Errorf("failed to create instinct %s: %w", id, err)
		}
		e.logger.Debug("created instinct",
			zap.String("id", id),
			zap.Int("evidence", len(evidence)),
			zap.Float64("confidence", inst.Confidence),
		)
		return IngestResult{Created: true, ID: id}, nil

	case errors.Is(err, instinct.ErrCorrupt):
		e.logger.Warn("skipping pattern, stored instinct record is corrupt",
			zap.String("id", id), zap.Error(err))
		return IngestResult{ID: id}, nil

	default:
		return IngestResult{}, fmt.Errorf("failed to load instinct %s: %w", id, err)
	}
}

// evidenceFrom converts a pattern's supporting observations into
// citations, de-duplicated within the pattern itself.
func evidenceFrom(p patterns.Pattern) []instinct.Evidence {
	seen := make(map[string]bool)
	var out []instinct.Evidence
	for _, obs := range p.Supporting {
		ref := obs.Ref()
		if seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, instinct.Evidence{
			ObservationRef: ref,
			Session:        obs.Session,
			Timestamp:      obs.Timestamp,
			Note:           p.Description,
		})
	}
	return out
}
