package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/instinctd/internal/instinct"
)

var statusVerbose bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show observation and instinct counts",
	Long: `Show the current state of the learning pipeline: recorded
observations and the instinct repository. With --verbose, list every
instinct with its effective confidence.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusVerbose, "verbose", "v", false, "list individual instincts")
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	all, err := c.repo.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load instincts: %w", err)
	}

	active := 0
	for _, inst := range all {
		if c.engine.StatusFor(c.engine.Effective(inst)) == instinct.StatusActive {
			active++
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Base directory: %s\n", c.cfg.BaseDir)
	fmt.Fprintf(out, "Observations:   %d\n", c.log.Count())
	fmt.Fprintf(out, "Instincts:      %d (%d active, %d dormant)\n", len(all), active, len(all)-active)

	if !statusVerbose {
		return nil
	}
	for _, inst := range all {
		effective := c.engine.Effective(inst)
		fmt.Fprintf(out, "  %-40s %.2f %-8s %-14s %d observation(s)\n",
			inst.ID, effective, c.engine.StatusFor(effective), inst.Source, inst.EvidenceCount())
	}
	return nil
}
