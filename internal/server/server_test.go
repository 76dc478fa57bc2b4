package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/instinctd/internal/confidence"
	"github.com/fyrsmithlabs/instinctd/internal/config"
	"github.com/fyrsmithlabs/instinctd/internal/instinct"
	"github.com/fyrsmithlabs/instinctd/internal/learner"
	"github.com/fyrsmithlabs/instinctd/internal/observation"
)

func setupTestServer(t *testing.T) (*Server, *observation.Log, *instinct.FileRepository) {
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

	registry := prometheus.NewRegistry()
	learner.NewMetrics(registry)

	srv, err := NewServer(log, repo, engine, registry, logger, cfg.Server)
	require.NoError(t, err)
	return srv, log, repo
}

func TestNewServer_NilArguments(t *testing.T) {
	logger := zap.NewNop()
	cfg := config.NewDefault()
	cfg.BaseDir = t.TempDir()

	log, err := observation.NewLog(cfg, logger)
	require.NoError(t, err)
	repo, err := instinct.NewFileRepository(cfg.InstinctsDir(), logger)
	require.NoError(t, err)
	engine, err := confidence.NewEngine(cfg.Confidence, logger)
	require.NoError(t, err)
	registry := prometheus.NewRegistry()

	_, err = NewServer(nil, repo, engine, registry, logger, cfg.Server)
	assert.Error(t, err)
	_, err = NewServer(log, nil, engine, registry, logger, cfg.Server)
	assert.Error(t, err)
	_, err = NewServer(log, repo, nil, registry, logger, cfg.Server)
	assert.Error(t, err)
	_, err = NewServer(log, repo, engine, nil, logger, cfg.Server)
	assert.Error(t, err)
	_, err = NewServer(log, repo, engine, registry, nil, cfg.Server)
	assert.Error(t, err)
}

func TestHandleHealth(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleStatus(t *testing.T) {
	srv, log, repo := setupTestServer(t)

	require.NoError(t, log.Append(observation.Observation{
		Timestamp: time.Now().UTC(),
		Event:     observation.EventToolStart,
		Tool:      "Bash",
		Session:   "s1",
	}))
	now := time.Now().UTC()
	require.NoError(t, repo.Upsert(&instinct.Instinct{
		ID: "active-one", Trigger: "when testing", Domain: "workflow",
		Confidence: 0.5, Status: instinct.StatusActive, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, repo.Upsert(&instinct.Instinct{
		ID: "dormant-one", Trigger: "when sleeping", Domain: "workflow",
		Confidence: 0.12, Status: instinct.StatusDormant, CreatedAt: now, UpdatedAt: now,
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Observations)
	assert.Equal(t, 2, resp.Instincts)
	assert.Equal(t, 1, resp.ActiveInstincts)
	assert.Equal(t, 1, resp.DormantInstincts)
}

func TestHandleInstincts(t *testing.T) {
	srv, _, repo := setupTestServer(t)
	now := time.Now().UTC()
	require.NoError(t, repo.Upsert(&instinct.Instinct{
		ID: "one", Trigger: "when testing", Domain: "workflow", Source: "repeated_workflow",
		Confidence: 0.5, Status: instinct.StatusActive, CreatedAt: now, UpdatedAt: now,
		Evidence: []instinct.Evidence{{ObservationRef: "s1@x#Bash/tool_start", Session: "s1", Timestamp: now, Note: "n"}},
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/instincts", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []InstinctSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "one", resp[0].ID)
	assert.Equal(t, 1, resp[0].EvidenceCount)
	assert.InDelta(t, 0.5, resp[0].Confidence, 0.001)
	assert.Equal(t, "active", resp[0].Status)
}

func TestHandleMetrics(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "instinctd_analysis_runs_total")
}
