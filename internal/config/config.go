// Package config provides configuration loading for instinctd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the single configuration object for instinctd.
//
// It is constructed once at process start (see Load) and passed explicitly
// to every component. All learning thresholds are exposed here with
// documented defaults; Validate rejects out-of-range values at startup
// rather than clamping them silently.
type Config struct {
	// BaseDir is the root directory for instinctd state
	// (observation log, instinct repository, auto-learn state).
	// Default: <project>/.instinctd, falling back to ~/.instinctd.
	BaseDir string `koanf:"base_dir"`

	Observations ObservationsConfig `koanf:"observations"`
	Confidence   ConfidenceConfig   `koanf:"confidence"`
	Detection    DetectionConfig    `koanf:"detection"`
	Evolution    EvolutionConfig    `koanf:"evolution"`
	AutoLearn    AutoLearnConfig    `koanf:"auto_learn"`
	Logging      LoggingConfig      `koanf:"logging"`
	Server       ServerConfig       `koanf:"server"`
}

// ObservationsConfig controls the append-only observation log.
type ObservationsConfig struct {
	// MaxLines caps how many log lines a single analysis run will read.
	MaxLines int `koanf:"max_lines"`

	// MaxFileSizeBytes triggers rotation of the log into the archive
	// directory once exceeded.
	MaxFileSizeBytes int64 `koanf:"max_file_size_bytes"`

	// MaxContentLength truncates tool input/output summaries before they
	// are written to the log.
	MaxContentLength int `koanf:"max_content_length"`

	// LockRetries bounds how many times a writer retries acquiring the
	// log's advisory lock before giving up.
	LockRetries int `koanf:"lock_retries"`

	// LockRetryDelay is the backoff between lock attempts.
	LockRetryDelay time.Duration `koanf:"lock_retry_delay"`
}

// ConfidenceConfig holds the confidence lifecycle thresholds.
type ConfidenceConfig struct {
	// Min and Max bound every confidence value ([0.1, 0.95] by default).
	Min float64 `koanf:"min"`
	Max float64 `koanf:"max"`

	// ConfirmDelta is added on each confirming observation.
	ConfirmDelta float64 `koanf:"confirm_delta"`

	// ContradictDelta is subtracted on each contradicting observation.
	ContradictDelta float64 `koanf:"contradict_delta"`

	// DecayPerWeek is subtracted per full week since the instinct was
	// last confirmed or contradicted.
	DecayPerWeek float64 `koanf:"decay_per_week"`

	// DormantThreshold is the confidence below which an instinct reads
	// as dormant.
	DormantThreshold float64 `koanf:"dormant_threshold"`
}

// DetectionConfig holds the pattern detector thresholds.
type DetectionConfig struct {
	// MinWorkflowSequenceLength is the shortest tool sequence the
	// repeated-workflow detector reports.
	MinWorkflowSequenceLength int `koanf:"min_workflow_sequence_length"`

	// MinSessionsForPattern is how many distinct sessions a workflow
	// must recur in.
	MinSessionsForPattern int `koanf:"min_sessions_for_pattern"`

	// MinToolUsesForPreference is the minimum use count for a dominant
	// parameter signature.
	MinToolUsesForPreference int `koanf:"min_tool_uses_for_preference"`

	// ErrorLookahead bounds how many observations after a failure the
	// error-resolution detector searches for a same-target fix.
	ErrorLookahead int `koanf:"error_lookahead"`
}

// EvolutionConfig holds the promotion thresholds for the evolution engine.
type EvolutionConfig struct {
	MinClusterSizeForSkill     int     `koanf:"min_cluster_size_for_skill"`
	MinAvgConfidenceForSkill   float64 `koanf:"min_avg_confidence_for_skill"`
	MinConfidenceForCommand    float64 `koanf:"min_confidence_for_command"`
	MinEvidenceForSkill        int     `koanf:"min_evidence_for_skill"`
	WorkflowLineThreshold      int     `koanf:"workflow_line_threshold"`
	TriggerSimilarityThreshold float64 `koanf:"trigger_similarity_threshold"`

	// MinInstincts is the precondition for an evolution run; runs with
	// fewer active instincts report "insufficient data".
	MinInstincts int `koanf:"min_instincts"`
}

// AutoLearnConfig gates the automatic analysis trigger.
type AutoLearnConfig struct {
	// ObservationThreshold is the minimum observation count before an
	// automatic analysis run is considered.
	ObservationThreshold int `koanf:"observation_threshold"`

	// Cooldown is the minimum time between analysis runs. This is a
	// timestamp check, not a mutual-exclusion lock; evidence
	// de-duplication absorbs the rare double run.
	Cooldown time.Duration `koanf:"cooldown"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// ServerConfig controls the optional HTTP status server.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// NewDefault returns a Config populated with the documented defaults.
func NewDefault() *Config {
	return &Config{
		BaseDir: defaultBaseDir(),
		Observations: ObservationsConfig{
			MaxLines:         100000,
			MaxFileSizeBytes: 10 * 1024 * 1024,
			MaxContentLength: 5000,
			LockRetries:      5,
			LockRetryDelay:   50 * time.Millisecond,
		},
		Confidence: ConfidenceConfig{
			Min:              0.1,
			Max:              0.95,
			ConfirmDelta:     0.05,
			ContradictDelta:  0.1,
			DecayPerWeek:     0.02,
			DormantThreshold: 0.2,
		},
		Detection: DetectionConfig{
			MinWorkflowSequenceLength: 3,
			MinSessionsForPattern:     2,
			MinToolUsesForPreference:  3,
			ErrorLookahead:            10,
		},
		Evolution: EvolutionConfig{
			MinClusterSizeForSkill:     3,
			MinAvgConfidenceForSkill:   0.7,
			MinConfidenceForCommand:    0.85,
			MinEvidenceForSkill:        5,
			WorkflowLineThreshold:      10,
			TriggerSimilarityThreshold: 0.3,
			MinInstincts:               3,
		},
		AutoLearn: AutoLearnConfig{
			ObservationThreshold: 50,
			Cooldown:             5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 9120,
		},
	}
}

// defaultBaseDir prefers a project-local .instinctd directory when the
// working directory is inside a project (marked by .git or CLAUDE.md),
// otherwise ~/.instinctd.
func defaultBaseDir() string {
	if root, ok := DetectProjectRoot(); ok {
		return filepath.Join(root, ".instinctd")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".instinctd")
	}
	return ".instinctd"
}

// DetectProjectRoot walks up from the working directory looking for a
// project marker (.git directory or CLAUDE.md file).
func DetectProjectRoot() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir, true
		}
		if info, err := os.Stat(filepath.Join(dir, "CLAUDE.md")); err == nil && !info.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// ObservationsFile returns the path of the active observation log.
func (c *Config) ObservationsFile() string {
	return filepath.Join(c.BaseDir, "observations.jsonl")
}

// ArchiveDir returns the directory rotated observation logs move into.
func (c *Config) ArchiveDir() string {
	return filepath.Join(c.BaseDir, "observations.archive")
}

// InstinctsDir returns the directory holding instinct records.
func (c *Config) InstinctsDir() string {
	return filepath.Join(c.BaseDir, "instincts")
}

// StateFile returns the auto-learn state file path.
func (c *Config) StateFile() string {
	return filepath.Join(c.BaseDir, "auto_learn_state.json")
}

// LockFile returns the auto-learn lock file path.
func (c *Config) LockFile() string {
	return filepath.Join(c.BaseDir, "auto_learn.lock")
}

// Validate checks every threshold against its valid range.
//
// Configuration errors fail fast at startup; they are never silently
// clamped at runtime.
func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("base_dir cannot be empty")
	}

	unit := map[string]float64{
		"confidence.min":                         c.Confidence.Min,
		"confidence.max":                         c.Confidence.Max,
		"confidence.confirm_delta":               c.Confidence.ConfirmDelta,
		"confidence.contradict_delta":            c.Confidence.ContradictDelta,
		"confidence.decay_per_week":              c.Confidence.DecayPerWeek,
		"confidence.dormant_threshold":           c.Confidence.DormantThreshold,
		"evolution.min_avg_confidence_for_skill": c.Evolution.MinAvgConfidenceForSkill,
		"evolution.min_confidence_for_command":   c.Evolution.MinConfidenceForCommand,
		"evolution.trigger_similarity_threshold": c.Evolution.TriggerSimilarityThreshold,
	}
	for name, v := range unit {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %v", name, v)
		}
	}
	if c.Confidence.Min >= c.Confidence.Max {
		return fmt.Errorf("confidence.min (%v) must be below confidence.max (%v)",
			c.Confidence.Min, c.Confidence.Max)
	}

	counts := map[string]int{
		"observations.max_lines":                 c.Observations.MaxLines,
		"observations.max_content_length":        c.Observations.MaxContentLength,
		"observations.lock_retries":              c.Observations.LockRetries,
		"detection.min_workflow_sequence_length": c.Detection.MinWorkflowSequenceLength,
		"detection.min_sessions_for_pattern":     c.Detection.MinSessionsForPattern,
		"detection.min_tool_uses_for_preference": c.Detection.MinToolUsesForPreference,
		"detection.error_lookahead":              c.Detection.ErrorLookahead,
		"evolution.min_cluster_size_for_skill":   c.Evolution.MinClusterSizeForSkill,
		"evolution.min_evidence_for_skill":       c.Evolution.MinEvidenceForSkill,
		"evolution.workflow_line_threshold":      c.Evolution.WorkflowLineThreshold,
		"evolution.min_instincts":                c.Evolution.MinInstincts,
		"auto_learn.observation_threshold":       c.AutoLearn.ObservationThreshold,
	}
	for name, v := range counts {
		if v <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %d", name, v)
		}
	}

	if c.Observations.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("observations.max_file_size_bytes must be positive, got %d",
			c.Observations.MaxFileSizeBytes)
	}
	if c.AutoLearn.Cooldown < 0 {
		return fmt.Errorf("auto_learn.cooldown cannot be negative, got %v", c.AutoLearn.Cooldown)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	return nil
}
