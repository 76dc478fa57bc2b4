package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/instinctd/internal/learner"
	"github.com/fyrsmithlabs/instinctd/internal/server"
)

var serveNoWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the status server and the observation watcher",
	Long: `Run the HTTP status server (health, status, instinct listing, and
Prometheus metrics) and, unless disabled, watch the observation log so
analysis runs automatically as sessions progress.

Example:
  instinctd serve
  curl http://localhost:9120/api/v1/status`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "serve HTTP only, without the observation watcher")
}

func runServe(cmd *cobra.Command, args []string) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	registry := prometheus.NewRegistry()
	metrics := learner.NewMetrics(registry)

	srv, err := server.NewServer(c.log, c.repo, c.engine, registry, c.logger, c.cfg.Server)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if !serveNoWatch {
		l, err := learner.New(c.cfg, c.log, c.repo, c.engine, metrics, c.logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := l.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}
