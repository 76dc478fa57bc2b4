package patterns

import (
	"fmt"

	"github.com/fyrsmithlabs/instinctd/internal/observation"
)

// ErrorResolutionDetector flags failure-then-fix pairs: a tool completion
// whose output reads as a failure, followed within the same session and a
// bounded lookahead by a successful completion touching the same target.
//
// Each failure pairs with its nearest subsequent fix; overlapping pairs
// sharing a failure collapse into that nearest pair.
type ErrorResolutionDetector struct {
	// Lookahead bounds how many completions after the failure are
	// searched for a fix.
	Lookahead int
}

func (d *ErrorResolutionDetector) Type() PatternType {
	return PatternErrorResolution
}

func (d *ErrorResolutionDetector) Detect(obs []observation.Observation) []Pattern {
	var out []Pattern
	bySession, sessions := groupBySession(obs)

	for _, session := range sessions {
		out = append(out, d.detectSession(session, bySession[session])...)
	}
	return out
}

type openFailure struct {
	obs   observation.Observation
	index int // completion index, for lookahead expiry
}

func (d *ErrorResolutionDetector) detectSession(session string, seq []observation.Observation) []Pattern {
	var (
		out       []Pattern
		failures  = make(map[string]openFailure) // target -> oldest unresolved failure
		completes int
	)

	for _, o := range seq {
		if o.Event != observation.EventToolComplete {
			continue
		}
		completes++
		target := targetOf(o.Tool, o.Input)

		if hasErrorKeyword(o.Output) {
			// Keep the earliest unresolved failure per target; its
			// nearest fix wins over later duplicates of the same error.
			if _, exists := failures[target]; !exists {
				failures[target] = openFailure{obs: o, index: completes}
			}
			continue
		}

		fail, ok := failures[target]
		if !ok {
			continue
		}
		if completes-fail.index > d.Lookahead {
			delete(failures, target)
			continue
		}
		out = append(out, resolutionPattern(session, fail.obs, o, target))
		delete(failures, target)
	}
	return out
}

func resolutionPattern(session string, failure, fix observation.Observation, target string) Pattern {
	errType := extractErrorType(failure.Output)
	return Pattern{
		Type:        PatternErrorResolution,
		Trigger:     "when encountering errors",
		Action:      fmt.Sprintf("A %s on %s was resolved by a follow-up %s; retry that approach first", errType, target, fix.Tool),
		Domain:      "error-handling",
		Description: fmt.Sprintf("%s resolved on %s", errType, target),
		Supporting:  []observation.Observation{failure, fix},
		Sessions:    []string{session},
	}
}
