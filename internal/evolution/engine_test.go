package evolution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/instinctd/internal/config"
	"github.com/fyrsmithlabs/instinctd/internal/instinct"
	"github.com/fyrsmithlabs/instinctd/internal/patterns"
)

// memorySink collects emitted artifacts for inspection.
type memorySink struct {
	emitted []Artifact
}

func (m *memorySink) Emit(a Artifact) error {
	m.emitted = append(m.emitted, a)
	return nil
}

func testEvolutionEngine(t *testing.T) (*Engine, *memorySink) {
	t.Helper()
	sink := &memorySink{}
	e, err := NewEngine(config.NewDefault().Evolution, sink, zaptest.NewLogger(t))
	require.NoError(t, err)
	return e, sink
}

func withEvidence(i *instinct.Instinct, n int) *instinct.Instinct {
	for k := 0; k < n; k++ {
		i.Evidence = append(i.Evidence, instinct.Evidence{
			ObservationRef: string(rune('a'+k)) + "@ref",
		})
	}
	return i
}

func TestEvolve_InsufficientData(t *testing.T) {
	e, sink := testEvolutionEngine(t)

	result, err := e.Evolve([]*instinct.Instinct{
		inst("a", "when editing python files", "workflow", 0.8),
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "need at least 3 active instincts, have 1", result.Unmet)
	assert.Empty(t, sink.emitted)
}

func TestEvolve_StrongClusterBecomesSkill(t *testing.T) {
	// Three related instincts averaging above 0.7 promote to a skill.
	e, sink := testEvolutionEngine(t)
	instincts := []*instinct.Instinct{
		inst("a", "when editing python files", "workflow", 0.8),
		inst("b", "when editing python tests", "workflow", 0.7),
		inst("c", "when running python tests", "workflow", 0.75),
	}

	result, err := e.Evolve(instincts, Options{Scope: ScopeProject})
	require.NoError(t, err)
	assert.Empty(t, result.Unmet)
	require.Len(t, sink.emitted, 1)

	skill := sink.emitted[0]
	assert.Equal(t, KindSkill, skill.Kind)
	assert.Equal(t, ScopeProject, skill.Scope)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, skill.SourceInstinctIDs)
	assert.Contains(t, skill.Title, "skill")
}

func TestEvolve_PairBelowClusterSizeStaysGuidance(t *testing.T) {
	// Two linked instincts averaging 0.9 still miss the cluster-size
	// floor for a skill; the pair falls through to the fallback kind.
	e, sink := testEvolutionEngine(t)
	instincts := []*instinct.Instinct{
		inst("a", "when editing parser files", "workflow", 0.9),
		inst("b", "when editing parser tests", "workflow", 0.9),
		inst("c", "run database migrations first", "sql", 0.9),
	}

	result, err := e.Evolve(instincts, Options{FallbackKind: KindRule})
	require.NoError(t, err)
	assert.Empty(t, result.Unmet)
	assert.Equal(t, 2, result.Clusters)
	require.Len(t, sink.emitted, 2)

	var pair *Artifact
	for i := range sink.emitted {
		if len(sink.emitted[i].SourceInstinctIDs) == 2 {
			pair = &sink.emitted[i]
		}
	}
	require.NotNil(t, pair)
	assert.ElementsMatch(t, []string{"a", "b"}, pair.SourceInstinctIDs)
	assert.Equal(t, KindRule, pair.Kind)
}

func TestEvolve_HighConfidenceShortWorkflowBecomesCommand(t *testing.T) {
	e, sink := testEvolutionEngine(t)

	workflow := inst("wf", "when performing read operations", "workflow", 0.9)
	workflow.Source = string(patterns.PatternRepeatedWorkflow)
	workflow.Action = "1. Read\n2. Edit\n3. Bash"

	instincts := []*instinct.Instinct{
		workflow,
		inst("x", "when deploying to kubernetes", "infra", 0.5),
		inst("y", "when rotating credentials", "security", 0.5),
	}

	result, err := e.Evolve(instincts, Options{FallbackKind: KindRule})
	require.NoError(t, err)
	require.Len(t, result.Artifacts, 3)

	kinds := map[string]Kind{}
	for _, a := range sink.emitted {
		kinds[a.SourceInstinctIDs[0]] = a.Kind
	}
	assert.Equal(t, KindCommand, kinds["wf"])
	assert.Equal(t, KindRule, kinds["x"])
	assert.Equal(t, KindRule, kinds["y"])
}

func TestEvolve_LongWorkflowBecomesSubagent(t *testing.T) {
	e, sink := testEvolutionEngine(t)

	workflow := inst("wf", "when performing release operations", "workflow", 0.6)
	workflow.Source = string(patterns.PatternRepeatedWorkflow)
	workflow.Action = "1. a\n2. b\n3. c\n4. d\n5. e\n6. f\n7. g\n8. h\n9. i\n10. j\n11. k"

	instincts := []*instinct.Instinct{
		workflow,
		inst("x", "when deploying to kubernetes", "infra", 0.5),
		inst("y", "when rotating credentials", "security", 0.5),
	}

	_, err := e.Evolve(instincts, Options{})
	require.NoError(t, err)

	var found bool
	for _, a := range sink.emitted {
		if len(a.SourceInstinctIDs) == 1 && a.SourceInstinctIDs[0] == "wf" {
			assert.Equal(t, KindSubagent, a.Kind)
			found = true
		}
	}
	assert.True(t, found)
}

func TestEvolve_EvidenceRichAntiPatternBecomesSkill(t *testing.T) {
	e, sink := testEvolutionEngine(t)

	rich := withEvidence(inst("rich", "when handling database errors", "error-handling", 0.6), 6)
	rich.Source = string(patterns.PatternErrorResolution)
	rich.Action = "Never retry without backoff; avoid reconnect storms"

	instincts := []*instinct.Instinct{
		rich,
		inst("x", "when deploying to kubernetes", "infra", 0.5),
		inst("y", "when rotating credentials", "security", 0.5),
	}

	_, err := e.Evolve(instincts, Options{})
	require.NoError(t, err)

	var kind Kind
	for _, a := range sink.emitted {
		if len(a.SourceInstinctIDs) == 1 && a.SourceInstinctIDs[0] == "rich" {
			kind = a.Kind
		}
	}
	assert.Equal(t, KindSkill, kind)
}

func TestEvolve_DryRunEmitsNothing(t *testing.T) {
	e, sink := testEvolutionEngine(t)
	instincts := []*instinct.Instinct{
		inst("a", "when editing python files", "workflow", 0.8),
		inst("b", "when editing python tests", "workflow", 0.7),
		inst("c", "when running python tests", "workflow", 0.75),
	}

	result, err := e.Evolve(instincts, Options{DryRun: true})
	require.NoError(t, err)
	assert.Len(t, result.Artifacts, 1)
	assert.Empty(t, sink.emitted)
}
