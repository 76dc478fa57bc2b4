package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/instinctd/internal/learner"
)

var (
	learnDryRun bool
	learnForce  bool
	learnJSON   bool
)

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Analyze recorded observations and update instincts",
	Long: `Run one analysis pass over the observation log: detect behavioral
patterns and create or confirm the matching instincts.

Without --force the run is gated the same way automatic analysis is:
it needs enough new observations and an elapsed cooldown.

Examples:
  # Analyze now, regardless of the gate
  instinctd learn --force

  # See what would be detected without writing anything
  instinctd learn --force --dry-run`,
	RunE: runLearn,
}

func init() {
	learnCmd.Flags().BoolVar(&learnDryRun, "dry-run", false, "detect patterns without updating instincts")
	learnCmd.Flags().BoolVar(&learnForce, "force", false, "skip the observation threshold and cooldown gate")
	learnCmd.Flags().BoolVar(&learnJSON, "json", false, "emit the report as JSON")
}

func runLearn(cmd *cobra.Command, args []string) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	l, err := learner.New(c.cfg, c.log, c.repo, c.engine, nil, c.logger)
	if err != nil {
		return err
	}

	report, err := l.Run(cmd.Context(), learner.Options{Force: learnForce, DryRun: learnDryRun})
	if err != nil {
		return err
	}

	if learnJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), learner.FormatReport(report))
	return nil
}
