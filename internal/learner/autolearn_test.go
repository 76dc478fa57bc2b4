package learner

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/instinctd/internal/config"
)

func testStateStore(t *testing.T) (*StateStore, *config.Config) {
	t.Helper()
	cfg := config.NewDefault()
	cfg.BaseDir = t.TempDir()
	store, err := NewStateStore(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return store, cfg
}

func TestStateStore_FreshStateTriggersAtThreshold(t *testing.T) {
	store, cfg := testStateStore(t)

	assert.False(t, store.ShouldTrigger(cfg.AutoLearn.ObservationThreshold-1))
	assert.True(t, store.ShouldTrigger(cfg.AutoLearn.ObservationThreshold))
}

func TestStateStore_CooldownBlocksRepeatTrigger(t *testing.T) {
	store, cfg := testStateStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	require.NoError(t, store.markAnalyzed(60))

	// Plenty of new observations, but the cooldown has not elapsed.
	store.now = func() time.Time { return base.Add(cfg.AutoLearn.Cooldown / 2) }
	assert.False(t, store.ShouldTrigger(200))

	store.now = func() time.Time { return base.Add(cfg.AutoLearn.Cooldown) }
	assert.True(t, store.ShouldTrigger(200))
}

func TestStateStore_CountsOnlyNewObservations(t *testing.T) {
	store, cfg := testStateStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	require.NoError(t, store.markAnalyzed(100))
	store.now = func() time.Time { return base.Add(time.Hour) }

	// 120 total is only 20 new since the last analysis at 100.
	assert.False(t, store.ShouldTrigger(120))
	assert.True(t, store.ShouldTrigger(100+cfg.AutoLearn.ObservationThreshold))
}

func TestStateStore_CorruptStateFileResets(t *testing.T) {
	store, cfg := testStateStore(t)
	require.NoError(t, os.MkdirAll(cfg.BaseDir, 0o700))
	require.NoError(t, os.WriteFile(cfg.StateFile(), []byte("{broken"), 0o600))

	// Corrupt state reads as the zero state and allows analysis.
	assert.True(t, store.ShouldTrigger(cfg.AutoLearn.ObservationThreshold))
}

func TestStateStore_MarkAnalyzedRoundTrip(t *testing.T) {
	store, _ := testStateStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	require.NoError(t, store.markAnalyzed(75))

	st := store.Load()
	assert.Equal(t, 75, st.ObservationCountAtAnalysis)
	assert.True(t, st.LastAnalysisTime.Equal(base))
}
