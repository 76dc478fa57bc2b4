package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/instinctd/internal/artifacts"
	"github.com/fyrsmithlabs/instinctd/internal/config"
	"github.com/fyrsmithlabs/instinctd/internal/evolution"
	"github.com/fyrsmithlabs/instinctd/internal/instinct"
)

var (
	evolveScope  string
	evolveOutput string
	evolveDryRun bool
)

var evolveCmd = &cobra.Command{
	Use:   "evolve",
	Short: "Promote mature instincts into skills, commands, and rules",
	Long: `Cluster related instincts and generate higher-level artifacts from
clusters that meet the promotion thresholds: skills for strong
clusters, commands and agents for proven workflows, and rule or
CLAUDE.md guidance for the rest.

Examples:
  # Write artifacts into the project's .claude directory
  instinctd evolve

  # Preview without writing
  instinctd evolve --dry-run

  # Promote into ~/.claude instead
  instinctd evolve --scope global --output rule`,
	RunE: runEvolve,
}

func init() {
	evolveCmd.Flags().StringVar(&evolveScope, "scope", "project", "artifact destination: project or global")
	evolveCmd.Flags().StringVar(&evolveOutput, "output", "claude_md_entry", "fallback artifact kind for simple guidance: claude_md_entry or rule")
	evolveCmd.Flags().BoolVar(&evolveDryRun, "dry-run", false, "report what would be generated without writing")
}

func runEvolve(cmd *cobra.Command, args []string) error {
	var scope evolution.Scope
	switch evolveScope {
	case "project":
		scope = evolution.ScopeProject
	case "global":
		scope = evolution.ScopeGlobal
	default:
		return fmt.Errorf("--scope must be project or global, got %q", evolveScope)
	}

	var fallback evolution.Kind
	switch evolveOutput {
	case "claude_md_entry":
		fallback = evolution.KindClaudeMdEntry
	case "rule":
		fallback = evolution.KindRule
	default:
		return fmt.Errorf("--output must be claude_md_entry or rule, got %q", evolveOutput)
	}

	c, err := setup()
	if err != nil {
		return err
	}
	defer c.close()

	projectRoot, ok := config.DetectProjectRoot()
	if !ok {
		projectRoot = "."
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to resolve home directory: %w", err)
	}
	sink, err := artifacts.NewFileSink(projectRoot, home, c.logger)
	if err != nil {
		return err
	}
	engine, err := evolution.NewEngine(c.cfg.Evolution, sink, c.logger)
	if err != nil {
		return err
	}

	active, err := loadActive(c)
	if err != nil {
		return err
	}

	result, err := engine.Evolve(active, evolution.Options{
		Scope:        scope,
		FallbackKind: fallback,
		DryRun:       evolveDryRun,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if result.Unmet != "" {
		fmt.Fprintf(out, "Nothing to evolve: %s\n", result.Unmet)
		return nil
	}
	fmt.Fprintf(out, "Clustered %d active instinct(s) into %d cluster(s)\n", len(active), result.Clusters)
	for _, a := range result.Artifacts {
		verb := "generated"
		if evolveDryRun {
			verb = "would generate"
		}
		fmt.Fprintf(out, "  %s %s %q from %d instinct(s)\n", verb, a.Kind, a.Title, len(a.SourceInstinctIDs))
	}
	return nil
}

// loadActive returns decay-adjusted copies of the active instincts.
// The repository records are never mutated here; effective confidence
// is settled onto throwaway copies for the evolution engine.
func loadActive(c *components) ([]*instinct.Instinct, error) {
	all, err := c.repo.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load instincts: %w", err)
	}

	var active []*instinct.Instinct
	for _, inst := range all {
		effective := c.engine.Effective(inst)
		if c.engine.StatusFor(effective) != instinct.StatusActive {
			continue
		}
		copied := *inst
		copied.Confidence = effective
		active = append(active, &copied)
	}
	return active, nil
}
