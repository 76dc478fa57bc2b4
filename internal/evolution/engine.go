package evolution

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/instinctd/internal/config"
	"github.com/fyrsmithlabs/instinctd/internal/instinct"
	"github.com/fyrsmithlabs/instinctd/internal/patterns"
)

// Kind is the artifact type a cluster promotes into.
type Kind string

const (
	KindClaudeMdEntry Kind = "claude_md_entry"
	KindRule          Kind = "rule"
	KindSkill         Kind = "skill"
	KindSubagent      Kind = "subagent"
	KindCommand       Kind = "command"
)

// Scope selects where an artifact lands.
type Scope string

const (
	ScopeProject Scope = "project"
	ScopeGlobal  Scope = "global"
)

// Artifact is the generated higher-level output handed to the sink.
// Immutable once emitted: re-running evolution produces a new artifact
// rather than mutating a prior one.
type Artifact struct {
	Kind              Kind
	Scope             Scope
	Title             string
	BodySummary       string
	SourceInstinctIDs []string
}

// Sink receives generated artifacts. Path selection, templating, and
// write durability are the sink's concern; the engine never writes files.
type Sink interface {
	Emit(artifact Artifact) error
}

// Options configures one evolution run.
type Options struct {
	// Scope is stamped on every emitted artifact.
	Scope Scope

	// FallbackKind is the caller-selected artifact type for clusters
	// that qualify for promotion but match no specific rule: KindRule
	// or KindClaudeMdEntry.
	FallbackKind Kind

	// DryRun evaluates promotion without emitting to the sink.
	DryRun bool
}

// Result reports one evolution run. A run that cannot proceed reports the
// unmet precondition here instead of failing with an error.
type Result struct {
	// Unmet is the human-readable precondition failure when the run did
	// not cluster ("need at least 3 instincts, have 1"); empty on a
	// normal run.
	Unmet string

	Clusters  int
	Artifacts []Artifact
}

// Engine evaluates clusters against the promotion thresholds and emits
// artifacts for qualifying ones.
type Engine struct {
	cfg    config.EvolutionConfig
	sink   Sink
	logger *zap.Logger
}

// NewEngine creates an evolution engine.
func NewEngine(cfg config.EvolutionConfig, sink Sink, logger *zap.Logger) (*Engine, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Engine{cfg: cfg, sink: sink, logger: logger}, nil
}

// Evolve clusters the given instincts and promotes qualifying clusters.
//
// Dormant instincts must be filtered out by the caller; the engine
// assumes its input is the active set with effective (decay-adjusted)
// confidence values.
func (e *Engine) Evolve(active []*instinct.Instinct, opts Options) (*Result, error) {
	if opts.FallbackKind == "" {
		opts.FallbackKind = KindClaudeMdEntry
	}
	if opts.Scope == "" {
		opts.Scope = ScopeProject
	}

	if len(active) < e.cfg.MinInstincts {
		return &Result{
			Unmet: fmt.Sprintf("need at least %d active instincts, have %d", e.cfg.MinInstincts, len(active)),
		}, nil
	}

	clusters := clusterInstincts(active, e.cfg.TriggerSimilarityThreshold)
	result := &Result{Clusters: len(clusters)}

	for _, cluster := range clusters {
		kind := e.promote(cluster, opts.FallbackKind)
		artifact := e.synthesize(cluster, kind, opts.Scope)
		result.Artifacts = append(result.Artifacts, artifact)

		if opts.DryRun {
			continue
		}
		if err := e.sink.Emit(artifact); err != nil {
			return nil, fmt.Errorf("failed to emit %s artifact %q: %w", artifact.Kind, artifact.Title, err)
		}
		e.logger.Info("emitted artifact",
			zap.String("kind", string(artifact.Kind)),
			zap.String("title", artifact.Title),
			zap.Int("instincts", len(artifact.SourceInstinctIDs)),
		)
	}
	return result, nil
}

// promote applies the promotion rules in specificity order and returns
// the chosen artifact kind.
func (e *Engine) promote(c Cluster, fallback Kind) Kind {
	if len(c.Members) >= e.cfg.MinClusterSizeForSkill && c.AvgConfidence >= e.cfg.MinAvgConfidenceForSkill {
		return KindSkill
	}

	if len(c.Members) == 1 {
		inst := c.Members[0]
		actionLines := countLines(inst.Action)

		if inst.Source == string(patterns.PatternRepeatedWorkflow) {
			if inst.Confidence >= e.cfg.MinConfidenceForCommand && actionLines < e.cfg.WorkflowLineThreshold {
				return KindCommand
			}
			if actionLines >= e.cfg.WorkflowLineThreshold {
				return KindSubagent
			}
		}

		if inst.EvidenceCount() >= e.cfg.MinEvidenceForSkill && isDomainSpecific(inst) && hasAntiPatterns(inst.Action) {
			return KindSkill
		}
	}

	// Everything else in the active set becomes simple bullet-style
	// guidance; the caller picks rule vs CLAUDE.md entry.
	return fallback
}

func countLines(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func isDomainSpecific(inst *instinct.Instinct) bool {
	return inst.Domain != "" && inst.Domain != "general"
}

// antiPatternMarkers indicate the action documents what to avoid, not
// just what to do.
var antiPatternMarkers = []string{"avoid", "never", "don't", "dont", "anti-pattern", "instead of"}

func hasAntiPatterns(action string) bool {
	lower := strings.ToLower(action)
	for _, marker := range antiPatternMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// synthesize builds the artifact summary: title from the shared trigger
// theme, body aggregating member actions and evidence counts.
func (e *Engine) synthesize(c Cluster, kind Kind, scope Scope) Artifact {
	ids := make([]string, len(c.Members))
	var b strings.Builder

	fmt.Fprintf(&b, "Derived from %d learned instinct(s), average confidence %.0f%%.\n\n",
		len(c.Members), c.AvgConfidence*100)
	for i, m := range c.Members {
		ids[i] = m.ID
		fmt.Fprintf(&b, "- %s (confidence %.0f%%, %d observations): %s\n",
			m.Trigger, m.Confidence*100, m.EvidenceCount(), summarize(m.Action))
	}

	return Artifact{
		Kind:              kind,
		Scope:             scope,
		Title:             titleFor(c, kind),
		BodySummary:       b.String(),
		SourceInstinctIDs: ids,
	}
}

// summarize collapses a multi-line action into its first line.
func summarize(action string) string {
	action = strings.TrimSpace(action)
	if i := strings.IndexByte(action, '\n'); i >= 0 {
		return action[:i] + " ..."
	}
	return action
}

func titleFor(c Cluster, kind Kind) string {
	theme := c.Theme
	if theme == "" {
		theme = c.Members[0].Domain
	}
	switch kind {
	case KindSkill:
		return theme + " skill"
	case KindCommand:
		return theme + " command"
	case KindSubagent:
		return theme + " agent"
	default:
		return theme
	}
}
