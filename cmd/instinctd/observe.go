package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/instinctd/internal/hooks"
	"github.com/fyrsmithlabs/instinctd/internal/learner"
)

// observeCmd is the hook entry point; it must never fail the tool call
// it observes, so every error exits zero after logging.
var observeCmd = &cobra.Command{
	Use:   "observe {pre|post}",
	Short: "Record a tool event from a Claude Code hook",
	Long: `Record one tool event delivered on stdin by a Claude Code hook.

Register in .claude/settings.json:
  PreToolUse:  instinctd observe pre
  PostToolUse: instinctd observe post

After a post event, a background analysis is spawned when enough new
observations have accumulated and the cooldown has elapsed.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"pre", "post"},
	RunE:      runObserve,
}

func runObserve(cmd *cobra.Command, args []string) error {
	c, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "instinctd: %v\n", err)
		return nil
	}
	defer c.close()

	handler, err := hooks.NewHandler(c.log, c.logger)
	if err != nil {
		c.logger.Error("hook handler setup failed", zap.Error(err))
		return nil
	}

	switch args[0] {
	case "pre":
		err = handler.HandlePre(cmd.InOrStdin())
	case "post":
		err = handler.HandlePost(cmd.InOrStdin())
	default:
		err = fmt.Errorf("unknown hook phase %q", args[0])
	}
	if err != nil {
		c.logger.Warn("failed to record hook event", zap.Error(err))
		return nil
	}

	if args[0] == "post" {
		maybeSpawnAnalysis(c)
	}
	return nil
}

// maybeSpawnAnalysis starts a detached `instinctd learn` when the
// auto-learn gate is open, so analysis never adds latency to the hook.
func maybeSpawnAnalysis(c *components) {
	state, err := learner.NewStateStore(c.cfg, c.logger)
	if err != nil {
		c.logger.Warn("auto-learn state unavailable", zap.Error(err))
		return
	}
	if !state.ShouldTrigger(c.log.Count()) {
		return
	}

	exe, err := os.Executable()
	if err != nil {
		c.logger.Warn("cannot locate own binary for background analysis", zap.Error(err))
		return
	}
	bg := exec.Command(exe, "learn")
	if configPath != "" {
		bg.Args = append(bg.Args, "--config", configPath)
	}
	bg.Stdout = nil
	bg.Stderr = nil
	if err := bg.Start(); err != nil {
		c.logger.Warn("failed to spawn background analysis", zap.Error(err))
		return
	}
	c.logger.Debug("spawned background analysis", zap.Int("pid", bg.Process.Pid))
	// Intentionally not waited on; the child outlives this hook.
	_ = bg.Process.Release()
}
