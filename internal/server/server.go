// Package server provides the HTTP status API for instinctd.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/instinctd/internal/confidence"
	"github.com/fyrsmithlabs/instinctd/internal/config"
	"github.com/fyrsmithlabs/instinctd/internal/instinct"
	"github.com/fyrsmithlabs/instinctd/internal/observation"
)

// Server exposes health, status, and metrics endpoints.
type Server struct {
	echo   *echo.Echo
	log    *observation.Log
	repo   instinct.Repository
	engine *confidence.Engine
	logger *zap.Logger
	config config.ServerConfig
}

// NewServer creates the status server.
func NewServer(log *observation.Log, repo instinct.Repository, engine *confidence.Engine, gatherer prometheus.Gatherer, logger *zap.Logger, cfg config.ServerConfig) (*Server, error) {
	if log == nil {
		return nil, fmt.Errorf("observation log cannot be nil")
	}
	if repo == nil {
		return nil, fmt.Errorf("repository cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("confidence engine cannot be nil")
	}
	if gatherer == nil {
		return nil, fmt.Errorf("metrics gatherer cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		log:    log,
		repo:   repo,
		engine: engine,
		logger: logger,
		config: cfg,
	}

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := e.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.GET("/instincts", s.handleInstincts)

	return s, nil
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Observations     int `json:"observations"`
	Instincts        int `json:"instincts"`
	ActiveInstincts  int `json:"active_instincts"`
	DormantInstincts int `json:"dormant_instincts"`
}

// InstinctSummary is one entry in the GET /api/v1/instincts response.
// Confidence is the effective (decay-adjusted) value.
type InstinctSummary struct {
	ID            string    `json:"id"`
	Trigger       string    `json:"trigger"`
	Domain        string    `json:"domain"`
	Source        string    `json:"source"`
	Confidence    float64   `json:"confidence"`
	Status        string    `json:"status"`
	EvidenceCount int       `json:"evidence_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	all, err := s.repo.LoadAll()
	if err != nil {
		s.logger.Error("failed to load instincts", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load instincts")
	}

	resp := StatusResponse{
		Observations: s.log.Count(),
		Instincts:    len(all),
	}
	for _, inst := range all {
		if s.engine.StatusFor(s.engine.Effective(inst)) == instinct.StatusActive {
			resp.ActiveInstincts++
		} else {
			resp.DormantInstincts++
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleInstincts(c echo.Context) error {
	all, err := s.repo.LoadAll()
	if err != nil {
		s.logger.Error("failed to load instincts", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load instincts")
	}

	summaries := make([]InstinctSummary, 0, len(all))
	for _, inst := range all {
		effective := s.engine.Effective(inst)
		summaries = append(summaries, InstinctSummary{
			ID:            inst.ID,
			Trigger:       inst.Trigger,
			Domain:        inst.Domain,
			Source:        inst.Source,
			Confidence:    effective,
			Status:        string(s.engine.StatusFor(effective)),
			EvidenceCount: inst.EvidenceCount(),
			UpdatedAt:     inst.UpdatedAt,
		})
	}
	return c.JSON(http.StatusOK, summaries)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
