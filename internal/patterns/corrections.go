package patterns

import (
	"fmt"

	"github.com/fyrsmithlabs/instinctd/internal/observation"
)

// CorrectionDetector flags user corrections: a completed write-like
// operation followed, within the same session and before any unrelated
// tool, by a second write-like operation on the same target; or an input
// summary carrying an explicit correction marker after a tool completion.
type CorrectionDetector struct{}

func (d *CorrectionDetector) Type() PatternType {
	return PatternUserCorrection
}

func (d *CorrectionDetector) Detect(obs []observation.Observation) []Pattern {
	var out []Pattern
	bySession, sessions := groupBySession(obs)

	for _, session := range sessions {
		out = append(out, d.detectSession(session, bySession[session])...)
	}
	return out
}

// pendingWrite remembers the most recent completed write-like operation
// that has not yet been followed by an unrelated tool.
type pendingWrite struct {
	obs    observation.Observation
	target string
}

func (d *CorrectionDetector) detectSession(session string, seq []observation.Observation) []Pattern {
	var (
		out          []Pattern
		pending      *pendingWrite
		lastComplete *observation.Observation
	)

	for i := range seq {
		o := seq[i]

		// Correction markers in the input summary count regardless of
		// the write-tracking state, but only after some tool completed.
		if o.Event == observation.EventToolStart && hasCorrectionMarker(o.Input) && lastComplete != nil {
			out = append(out, correctionMarkerPattern(session, *lastComplete, o))
		}

		switch o.Event {
		case observation.EventToolComplete:
			lastComplete = &seq[i]
			if !writeLikeTools[o.Tool] {
				pending = nil
				continue
			}
			target := targetOf(o.Tool, o.Input)
			if pending != nil && pending.target == target {
				out = append(out, rewritePattern(session, pending.obs, o, target))
				pending = nil
				continue
			}
			pending = &pendingWrite{obs: o, target: target}

		case observation.EventToolStart:
			// A start of an unrelated tool (or a write-like tool aimed
			// elsewhere) breaks the bracketing pair.
			if pending == nil {
				continue
			}
			if !writeLikeTools[o.Tool] || targetOf(o.Tool, o.Input) != pending.target {
				pending = nil
			}
		}
	}
	return out
}

// rewritePattern cites the minimal bracketing pair: the original write and
// the correcting write on the same target.
func rewritePattern(session string, first, second observation.Observation, target string) Pattern {
	return Pattern{
		Type:        PatternUserCorrection,
		Trigger:     "when editing recently written files",
		Action:      fmt.Sprintf("Review %s output before writing; the content on %s needed immediate correction", first.Tool, target),
		Domain:      "workflow",
		Description: fmt.Sprintf("Consecutive %s then %s on %s", first.Tool, second.Tool, target),
		Supporting:  []observation.Observation{first, second},
		Sessions:    []string{session},
	}
}

func correctionMarkerPattern(session string, completed, marker observation.Observation) Pattern {
	return Pattern{
		Type:        PatternUserCorrection,
		Trigger:     "when user provides correction feedback",
		Action:      fmt.Sprintf("Double-check %s results; the user pushed back on them", completed.Tool),
		Domain:      "feedback",
		Description: fmt.Sprintf("Correction phrasing after %s completed", completed.Tool),
		Supporting:  []observation.Observation{completed, marker},
		Sessions:    []string{session},
	}
}
