package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/instinctd/internal/instinct"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <instinct-id>",
	Short: "Record a contradiction against an instinct",
	Long: `Record that an instinct gave bad guidance. Its confidence drops and,
below the dormancy threshold, it stops influencing evolution until
fresh evidence confirms it again.

Find instinct IDs with 'instinctd status --verbose'.

Example:
  instinctd feedback prefer-rg-over-grep`,
	Args: cobra.ExactArgs(1),
	RunE: runFeedback,
}

func runFeedback(cmd *cobra.Command, args []string) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	id := args[0]
	inst, err := c.repo.Get(id)
	if err == instinct.ErrNotFound {
		return fmt.Errorf("no instinct with id %q", id)
	}
	if err != nil {
		return fmt.Errorf("failed to load instinct %s: %w", id, err)
	}

	c.engine.Contradict(inst)
	if err := c.repo.Upsert(inst); err != nil {
		return fmt.Errorf("failed to save instinct %s: %w", id, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Recorded contradiction for %s: confidence now %.2f (%s)\n",
		id, inst.Confidence, inst.Status)
	return nil
}
