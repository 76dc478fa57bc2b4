package patterns

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/instinctd/internal/observation"
)

// WorkflowDetector flags tool sequences that recur identically across
// sessions: contiguous runs of at least MinSequenceLength tool names
// appearing in at least MinSessions distinct sessions.
//
// Subsumption: when both a sequence and a longer sequence containing it
// meet the recurrence threshold, only the longer one is reported.
type WorkflowDetector struct {
	MinSequenceLength int
	MinSessions       int
}

func (d *WorkflowDetector) Type() PatternType {
	return PatternRepeatedWorkflow
}

func (d *WorkflowDetector) Detect(obs []observation.Observation) []Pattern {
	bySession, sessions := groupBySession(obs)

	// Per session: the ordered tool-name sequence, and the first
	// observation of each subsequence occurrence for evidence.
	type occurrence struct {
		sessions []string
		firstObs []observation.Observation // one per session, first occurrence
	}
	occurrences := make(map[string]*occurrence)
	sep := "\x1f"

	for _, session := range sessions {
		var tools []string
		var toolObs []observation.Observation
		for _, o := range bySession[session] {
			if o.Event == observation.EventToolStart && o.Tool != "" {
				tools = append(tools, o.Tool)
				toolObs = append(toolObs, o)
			}
		}
		if len(tools) < d.MinSequenceLength {
			continue
		}

		seenInSession := make(map[string]bool)
		for length := d.MinSequenceLength; length <= len(tools); length++ {
			for start := 0; start+length <= len(tools); start++ {
				key := strings.Join(tools[start:start+length], sep)
				if seenInSession[key] {
					continue
				}
				seenInSession[key] = true

				occ := occurrences[key]
				if occ == nil {
					occ = &occurrence{}
					occurrences[key] = occ
				}
				occ.sessions = append(occ.sessions, session)
				occ.firstObs = append(occ.firstObs, toolObs[start])
			}
		}
	}

	// Collect qualifying sequences, longest first for subsumption.
	var keys []string
	for key, occ := range occurrences {
		if len(occ.sessions) >= d.MinSessions {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := len(strings.Split(keys[i], sep)), len(strings.Split(keys[j], sep))
		if li != lj {
			return li > lj
		}
		return keys[i] < keys[j]
	})

	var (
		out  []Pattern
		kept [][]string
	)
	for _, key := range keys {
		seq := strings.Split(key, sep)
		subsumed := false
		for _, longer := range kept {
			if isContiguousSubsequence(seq, longer) {
				subsumed = true
				break
			}
		}
		if subsumed {
			continue
		}
		kept = append(kept, seq)
		out = append(out, workflowPattern(seq, occurrences[key].sessions, occurrences[key].firstObs))
	}
	return out
}

// isContiguousSubsequence reports whether shorter appears as a contiguous
// run inside longer.
func isContiguousSubsequence(shorter, longer []string) bool {
	if len(shorter) >= len(longer) {
		return false
	}
outer:
	for i := 0; i+len(shorter) <= len(longer); i++ {
		for j := range shorter {
			if longer[i+j] != shorter[j] {
				continue outer
			}
		}
		return true
	}
	return false
}

func workflowPattern(seq, sessions []string, firstObs []observation.Observation) Pattern {
	chain := strings.Join(seq, " -> ")
	steps := make([]string, len(seq))
	for i, tool := range seq {
		steps[i] = fmt.Sprintf("%d. %s", i+1, tool)
	}
	return Pattern{
		Type:        PatternRepeatedWorkflow,
		Trigger:     fmt.Sprintf("when performing %s operations", strings.ToLower(seq[0])),
		Action:      strings.Join(steps, "\n"),
		Domain:      "workflow",
		Description: fmt.Sprintf("Repeated workflow: %s (%d sessions)", chain, len(sessions)),
		Supporting:  firstObs,
		Sessions:    sessions,
	}
}
