package patterns

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/instinctd/internal/observation"
)

// maxPreferenceEvidence caps how many observations a preference pattern
// cites.
const maxPreferenceEvidence = 5

// PreferenceDetector flags dominant parameter signatures: for each tool,
// the normalized signature of its input (flag set or key set) that
// accounts for at least MinUses uses and a strict majority of all observed
// signatures for that tool.
type PreferenceDetector struct {
	MinUses int
}

func (d *PreferenceDetector) Type() PatternType {
	return PatternToolPreference
}

type signatureUsage struct {
	count    int
	examples []observation.Observation
}

func (d *PreferenceDetector) Detect(obs []observation.Observation) []Pattern {
	byTool := make(map[string]map[string]*signatureUsage)
	totals := make(map[string]int)

	for _, o := range obs {
		if o.Event != observation.EventToolStart || o.Tool == "" {
			continue
		}
		// No recorded parameters, no preference signal.
		if strings.TrimSpace(o.Input) == "" {
			continue
		}
		sig := parameterSignature(o.Input)
		sigs := byTool[o.Tool]
		if sigs == nil {
			sigs = make(map[string]*signatureUsage)
			byTool[o.Tool] = sigs
		}
		u := sigs[sig]
		if u == nil {
			u = &signatureUsage{}
			sigs[sig] = u
		}
		u.count++
		if len(u.examples) < maxPreferenceEvidence {
			u.examples = append(u.examples, o)
		}
		totals[o.Tool]++
	}

	tools := make([]string, 0, len(byTool))
	for tool := range byTool {
		tools = append(tools, tool)
	}
	sort.Strings(tools)

	var out []Pattern
	for _, tool := range tools {
		sig, u := dominantSignature(byTool[tool])
		if u == nil || u.count < d.MinUses {
			continue
		}
		// Strict majority among all signatures observed for this tool.
		if 2*u.count <= totals[tool] {
			continue
		}
		out = append(out, Pattern{
			Type:        PatternToolPreference,
			Trigger:     fmt.Sprintf("when using the %s tool", tool),
			Action:      fmt.Sprintf("Prefer %s with %s; it was the dominant usage (%d of %d)", tool, sig, u.count, totals[tool]),
			Domain:      "tool-usage",
			Description: fmt.Sprintf("Dominant %s signature %s (%d of %d uses)", tool, sig, u.count, totals[tool]),
			Supporting:  u.examples,
			Sessions:    distinctSessions(u.examples),
		})
	}
	return out
}

// dominantSignature returns the most-used signature for a tool, ties
// broken lexically for determinism.
func dominantSignature(sigs map[string]*signatureUsage) (string, *signatureUsage) {
	var (
		bestSig string
		best    *signatureUsage
	)
	for sig, u := range sigs {
		switch {
		case best == nil, u.count > best.count:
			bestSig, best = sig, u
		case u.count == best.count && sig < bestSig:
			bestSig, best = sig, u
		}
	}
	return bestSig, best
}
