// Package main implements the instinctd CLI: hook capture, analysis,
// evolution, and the status server for instinct-based learning.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/instinctd/internal/confidence"
	"github.com/fyrsmithlabs/instinctd/internal/config"
	"github.com/fyrsmithlabs/instinctd/internal/instinct"
	"github.com/fyrsmithlabs/instinctd/internal/logging"
	"github.com/fyrsmithlabs/instinctd/internal/observation"
)

var (
	// configPath is the optional YAML config file.
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "instinctd",
	Short: "Learn behavioral instincts from Claude Code sessions",
	Long: `instinctd observes Claude Code tool usage through hooks, detects
recurring behavioral patterns, and maintains a repository of learned
instincts with evidence-backed confidence scores. Mature instincts
evolve into skills, commands, agents, and CLAUDE.md guidance.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: built-in defaults plus INSTINCTD_* env vars)")
	rootCmd.AddCommand(observeCmd)
	rootCmd.AddCommand(learnCmd)
	rootCmd.AddCommand(evolveCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}

// components is the shared storage wiring most subcommands need.
type components struct {
	cfg    *config.Config
	logger *zap.Logger
	log    *observation.Log
	repo   *instinct.FileRepository
	engine *confidence.Engine
}

func setup() (*components, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.EnsureBaseDir(cfg); err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	log, err := observation.NewLog(cfg, logger)
	if err != nil {
		return nil, err
	}
	repo, err := instinct.NewFileRepository(cfg.InstinctsDir(), logger)
	if err != nil {
		return nil, err
	}
	engine, err := confidence.NewEngine(cfg.Confidence, logger)
	if err != nil {
		return nil, err
	}
	return &components{cfg: cfg, logger: logger, log: log, repo: repo, engine: engine}, nil
}

func (c *components) close() {
	_ = c.logger.Sync()
}
