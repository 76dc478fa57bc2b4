// Package patterns implements the four pattern detectors that scan a
// window of observations for learnable behavior.
//
// Detectors are pure functions of the observation window: they hold no
// state, never mutate their input, and never fail on malformed data. An
// observation that does not parse into the shape a detector expects is
// skipped, not fatal; corrupt log lines are expected under concurrent
// writers.
package patterns

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/instinctd/internal/config"
	"github.com/fyrsmithlabs/instinctd/internal/observation"
)

// PatternType identifies which detector produced a pattern.
type PatternType string

const (
	PatternUserCorrection   PatternType = "user_correction"
	PatternErrorResolution  PatternType = "error_resolution"
	PatternRepeatedWorkflow PatternType = "repeated_workflow"
	PatternToolPreference   PatternType = "tool_preference"
)

// Pattern is a transient detection result. It is never persisted directly;
// the confidence engine folds it into an instinct record.
//
// Supporting is non-empty and ordered; Sessions holds the distinct session
// IDs the supporting observations came from.
type Pattern struct {
	Type        PatternType
	Trigger     string
	Action      string
	Domain      string
	Description string
	Supporting  []observation.Observation
	Sessions    []string
}

// Detector is the uniform contract every pattern detector implements.
// Detect is read-only and side-effect-free, so detectors may run
// concurrently over the same window.
type Detector interface {
	Type() PatternType
	Detect(obs []observation.Observation) []Pattern
}

// NewDetectors returns the full detector set in declaration order.
func NewDetectors(cfg config.DetectionConfig) []Detector {
	return []Detector{
		&CorrectionDetector{},
		&ErrorResolutionDetector{Lookahead: cfg.ErrorLookahead},
		&WorkflowDetector{
			MinSequenceLength: cfg.MinWorkflowSequenceLength,
			MinSessions:       cfg.MinSessionsForPattern,
		},
		&PreferenceDetector{MinUses: cfg.MinToolUsesForPreference},
	}
}

// DetectAll runs every detector concurrently over the same window and
// returns their combined results in detector declaration order.
func DetectAll(ctx context.Context, detectors []Detector, obs []observation.Observation) ([]Pattern, error) {
	results := make([][]Pattern, len(detectors))

	g, _ := errgroup.WithContext(ctx)
	for i, d := range detectors {
		g.Go(func() error {
			results[i] = d.Detect(obs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Pattern
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// correctionMarkers are matched at word boundaries in input summaries to
// flag explicit user corrections.
var correctionMarkers = regexp.MustCompile(`(?i)\b(no|instead|actually|don't|dont)\b`)

// errorKeywords flag failure output. Checked case-insensitively as
// substrings, matching how tool output reports failures.
var errorKeywords = []string{"error", "failed", "exception", "failure", "traceback"}

// errorTypeRe extracts a specific error type (ImportError, IOException)
// from failure output for pattern descriptions.
var errorTypeRe = regexp.MustCompile(`(\w+Error|\w+Exception)`)

// writeLikeTools produce or modify file content; a repeated write-like
// operation on the same target reads as a correction.
var writeLikeTools = map[string]bool{
	"Write":        true,
	"Edit":         true,
	"MultiEdit":    true,
	"NotebookEdit": true,
}

func hasCorrectionMarker(text string) bool {
	return text != "" && correctionMarkers.MatchString(text)
}

func hasErrorKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range errorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func extractErrorType(output string) string {
	if !hasErrorKeyword(output) {
		return "unknown"
	}
	if m := errorTypeRe.FindString(output); m != "" {
		return m
	}
	lower := strings.ToLower(output)
	for _, kw := range errorKeywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return "unknown"
}

// groupBySession splits the window into per-session slices ordered by
// timestamp, and returns the session IDs in deterministic order.
func groupBySession(obs []observation.Observation) (map[string][]observation.Observation, []string) {
	bySession := make(map[string][]observation.Observation)
	for _, o := range obs {
		session := o.Session
		if session == "" {
			session = "unknown"
		}
		bySession[session] = append(bySession[session], o)
	}

	ids := make([]string, 0, len(bySession))
	for id, seq := range bySession {
		sort.SliceStable(seq, func(i, j int) bool {
			return seq[i].Timestamp.Before(seq[j].Timestamp)
		})
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return bySession, ids
}

// distinctSessions returns the ordered distinct session IDs of a set of
// observations.
func distinctSessions(obs []observation.Observation) []string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range obs {
		if !seen[o.Session] {
			seen[o.Session] = true
			out = append(out, o.Session)
		}
	}
	return out
}
