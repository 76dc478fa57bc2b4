package learner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/instinctd/internal/confidence"
	"github.com/fyrsmithlabs/instinctd/internal/config"
	"github.com/fyrsmithlabs/instinctd/internal/instinct"
	"github.com/fyrsmithlabs/instinctd/internal/observation"
)

type fixture struct {
	cfg     *config.Config
	log     *observation.Log
	repo    *instinct.FileRepository
	learner *Learner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := config.NewDefault()
	cfg.BaseDir = t.TempDir()

	log, err := observation.NewLog(cfg, logger)
	require.NoError(t, err)
	repo, err := instinct.NewFileRepository(cfg.InstinctsDir(), logger)
	require.NoError(t, err)
	engine, err := confidence.NewEngine(cfg.Confidence, logger)
	require.NoError(t, err)
	l, err := New(cfg, log, repo, engine, nil, logger)
	require.NoError(t, err)

	return &fixture{cfg: cfg, log: log, repo: repo, learner: l}
}

// recordWorkflow appends a Read -> Edit -> Bash run of tool_start events
// for one session.
func (f *fixture) recordWorkflow(t *testing.T, session string, offset int) {
	t.Helper()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i, tool := range []string{"Read", "Edit", "Bash"} {
		err := f.log.Append(observation.Observation{
			Timestamp: base.Add(time.Duration(offset+i) * time.Second),
			Event:     observation.EventToolStart,
			Tool:      tool,
			Session:   session,
		})
		require.NoError(t, err)
	}
}

func TestLearner_WorkflowAcrossSessionsCreatesInstinct(t *testing.T) {
	// Three sessions each running Read -> Edit -> Bash produce one
	// workflow instinct with one citation per session.
	f := newFixture(t)
	f.recordWorkflow(t, "s1", 0)
	f.recordWorkflow(t, "s2", 100)
	f.recordWorkflow(t, "s3", 200)

	report, err := f.learner.Run(context.Background(), Options{Force: true})
	require.NoError(t, err)
	assert.Empty(t, report.SkippedReason)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 9, report.ObservationsAnalyzed)
	assert.Equal(t, 1, report.PatternsDetected)
	assert.Equal(t, 1, report.InstinctsCreated)
	assert.Zero(t, report.InstinctsUpdated)

	all, err := f.repo.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	created := all[0]
	assert.Equal(t, "repeated_workflow", created.Source)
	assert.Equal(t, 3, created.EvidenceCount())
	assert.InDelta(t, 0.5, created.Confidence, 0.001)
	assert.Equal(t, instinct.StatusActive, created.Status)
}

func TestLearner_RerunIsIdempotent(t *testing.T) {
	// Re-analyzing the same window adds no evidence and leaves
	// confidence alone.
	f := newFixture(t)
	f.recordWorkflow(t, "s1", 0)
	f.recordWorkflow(t, "s2", 100)

	first, err := f.learner.Run(context.Background(), Options{Force: true})
	require.NoError(t, err)
	require.Equal(t, 1, first.InstinctsCreated)

	second, err := f.learner.Run(context.Background(), Options{Force: true})
	require.NoError(t, err)
	assert.Zero(t, second.InstinctsCreated)
	assert.Zero(t, second.InstinctsUpdated)

	all, err := f.repo.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.InDelta(t, 0.3, all[0].Confidence, 0.001)
	assert.Equal(t, 2, all[0].EvidenceCount())
}

func TestLearner_NewSessionConfirmsExisting(t *testing.T) {
	f := newFixture(t)
	f.recordWorkflow(t, "s1", 0)
	f.recordWorkflow(t, "s2", 100)

	_, err := f.learner.Run(context.Background(), Options{Force: true})
	require.NoError(t, err)

	f.recordWorkflow(t, "s3", 200)
	report, err := f.learner.Run(context.Background(), Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.InstinctsUpdated)

	all, err := f.repo.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 3, all[0].EvidenceCount())
	// 0.3 initial plus one confirm delta.
	assert.InDelta(t, 0.35, all[0].Confidence, 0.001)
}

func TestLearner_DryRunWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.recordWorkflow(t, "s1", 0)
	f.recordWorkflow(t, "s2", 100)

	report, err := f.learner.Run(context.Background(), Options{Force: true, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.PatternsDetected)
	assert.Zero(t, report.InstinctsCreated)

	all, err := f.repo.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLearner_GatedWithoutForce(t *testing.T) {
	// A handful of observations is below the auto-learn threshold.
	f := newFixture(t)
	f.recordWorkflow(t, "s1", 0)

	report, err := f.learner.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, report.SkippedReason)
	assert.Zero(t, report.ObservationsAnalyzed)
}

func TestLearner_CorruptInstinctFileDoesNotAbortRun(t *testing.T) {
	// A garbage record sitting under the ID the workflow detector keeps
	// re-deriving would otherwise fail every run until someone deletes
	// the file by hand. The run must skip it and finish.
	f := newFixture(t)
	f.recordWorkflow(t, "s1", 0)
	f.recordWorkflow(t, "s2", 100)
	f.recordWorkflow(t, "s3", 200)

	report, err := f.learner.Run(context.Background(), Options{Force: true})
	require.NoError(t, err)
	require.Equal(t, 1, report.InstinctsCreated)

	all, err := f.repo.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	path := filepath.Join(f.cfg.InstinctsDir(), all[0].ID+".md")
	require.NoError(t, os.WriteFile(path, []byte("### not a record"), 0o600))

	report, err = f.learner.Run(context.Background(), Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.PatternsDetected)
	assert.Zero(t, report.InstinctsCreated)
	assert.Zero(t, report.InstinctsUpdated)
}

func TestLearner_WarnsOnMalformedLines(t *testing.T) {
	f := newFixture(t)
	f.recordWorkflow(t, "s1", 0)
	appendRaw(t, f.cfg, "{not json\n")

	report, err := f.learner.Run(context.Background(), Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.MalformedLinesSkipped)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "malformed")
}

func appendRaw(t *testing.T, cfg *config.Config, line string) {
	t.Helper()
	f, err := os.OpenFile(cfg.ObservationsFile(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(line)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestFormatReport(t *testing.T) {
	out := FormatReport(&Report{
		ObservationsAnalyzed: 9,
		PatternsDetected:     1,
		InstinctsCreated:     1,
		Warnings:             []string{"example warning"},
	})
	assert.Contains(t, out, "Analyzed 9 observation(s)")
	assert.Contains(t, out, "Instincts created:  1")
	assert.Contains(t, out, "example warning")

	skipped := FormatReport(&Report{SkippedReason: "cooldown active"})
	assert.Equal(t, fmt.Sprintf("Analysis skipped: %s\n", "cooldown active"), skipped)
}
