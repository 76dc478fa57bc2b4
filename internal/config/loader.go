package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Load loads configuration from a YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (INSTINCTD_CONFIDENCE_CONFIRM_DELTA, ...)
//  2. YAML config file (configPath; skipped when empty or missing)
//  3. Defaults from NewDefault
//
// Environment variables are prefixed with INSTINCTD_ and map to config
// keys by splitting on the first underscore after the prefix:
//
//	INSTINCTD_AUTO__LEARN_COOLDOWN   -> auto_learn.cooldown
//	INSTINCTD_LOGGING_LEVEL          -> logging.level
//	INSTINCTD_CONFIDENCE_CONFIRM_DELTA -> confidence.confirm_delta
//
// Double underscore escapes an underscore inside a section name.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			// Open once and read through the descriptor to avoid a
			// stat/read race with concurrent writers.
			f, err := os.Open(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to open config file: %w", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return nil, fmt.Errorf("failed to stat config file: %w", err)
			}
			if info.Size() > maxConfigFileSize {
				return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
			}

			content, err := io.ReadAll(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider("INSTINCTD_", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := NewDefault()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envTransform maps INSTINCTD_SECTION_FIELD_NAME to section.field_name.
// A double underscore inside the section part stands for a literal
// underscore (INSTINCTD_AUTO__LEARN_COOLDOWN -> auto_learn.cooldown).
func envTransform(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, "INSTINCTD_"))

	// Resolve escaped section underscores before splitting.
	const esc = "\x00"
	lower = strings.ReplaceAll(lower, "__", esc)

	parts := strings.SplitN(lower, "_", 2)
	for i := range parts {
		parts[i] = strings.ReplaceAll(parts[i], esc, "_")
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

// EnsureBaseDir creates the instinctd state directory if needed.
// Created with 0700 permissions since observation summaries may contain
// project text.
func EnsureBaseDir(cfg *Config) error {
	if err := os.MkdirAll(cfg.BaseDir, 0o700); err != nil {
		return fmt.Errorf("failed to create base directory %s: %w", cfg.BaseDir, err)
	}
	return nil
}
