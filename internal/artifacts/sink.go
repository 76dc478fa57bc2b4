// Package artifacts writes evolution output to the Claude Code
// configuration layout: skills, commands, agents, rules, and CLAUDE.md
// entries under a project-local or global .claude directory.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/instinctd/internal/evolution"
)

// FileSink renders artifacts as markdown files.
//
// Project-scoped artifacts land under <projectRoot>/.claude and
// <projectRoot>/CLAUDE.md; global ones under <homeDir>/.claude.
type FileSink struct {
	projectRoot string
	homeDir     string
	logger      *zap.Logger
}

// NewFileSink creates a sink rooted at the given project directory.
func NewFileSink(projectRoot, homeDir string, logger *zap.Logger) (*FileSink, error) {
	if projectRoot == "" {
		return nil, fmt.Errorf("project root cannot be empty")
	}
	if homeDir == "" {
		return nil, fmt.Errorf("home directory cannot be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &FileSink{projectRoot: projectRoot, homeDir: homeDir, logger: logger}, nil
}

// Emit writes one artifact to its destination.
func (s *FileSink) Emit(a evolution.Artifact) error {
	root := s.projectRoot
	if a.Scope == evolution.ScopeGlobal {
		root = s.homeDir
	}

	switch a.Kind {
	case evolution.KindClaudeMdEntry:
		return s.appendClaudeMd(root, a)
	case evolution.KindSkill:
		dir := filepath.Join(root, ".claude", "skills", sanitizeName(a.Title))
		return s.writeFile(filepath.Join(dir, "SKILL.md"), renderSkill(a))
	case evolution.KindCommand:
		path := filepath.Join(root, ".claude", "commands", sanitizeName(a.Title)+".md")
		return s.writeFile(path, renderCommand(a))
	case evolution.KindSubagent:
		path := filepath.Join(root, ".claude", "agents", sanitizeName(a.Title)+".md")
		return s.writeFile(path, renderSubagent(a))
	case evolution.KindRule:
		path := filepath.Join(root, ".claude", "rules", sanitizeName(a.Title)+".md")
		return s.writeFile(path, renderRule(a))
	default:
		return fmt.Errorf("unknown artifact kind %q", a.Kind)
	}
}

// writeFile writes content atomically via a temp file in the target
// directory followed by a rename.
func (s *FileSink) writeFile(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := refuseSymlink(path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}

	s.logger.Info("wrote artifact file", zap.String("path", path))
	return nil
}

// appendClaudeMd appends the entry under a "## Learned Patterns" heading
// in CLAUDE.md, creating file and heading as needed. The rest of the
// file is never rewritten.
func (s *FileSink) appendClaudeMd(root string, a evolution.Artifact) error {
	path := filepath.Join(root, "CLAUDE.md")
	if a.Scope == evolution.ScopeGlobal {
		path = filepath.Join(root, ".claude", "CLAUDE.md")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
		}
	}
	if err := refuseSymlink(path); err != nil {
		return err
	}

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var b strings.Builder
	b.Write(existing)
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		b.WriteString("\n")
	}
	if !strings.Contains(string(existing), "## Learned Patterns") {
		if len(existing) > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## Learned Patterns\n")
	}
	fmt.Fprintf(&b, "\n### %s\n\n%s", a.Title, a.BodySummary)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	s.logger.Info("appended CLAUDE.md entry", zap.String("path", path), zap.String("title", a.Title))
	return nil
}

// refuseSymlink rejects destinations that are symlinks so a crafted
// link cannot redirect artifact writes outside the .claude tree.
func refuseSymlink(path string) error {
	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("refusing to write through symlink %s", path)
	}
	return nil
}

var unsafeNameRe = regexp.MustCompile(`[^a-z0-9-]+`)

// sanitizeName converts an artifact title into a safe kebab-case
// file or directory name.
func sanitizeName(title string) string {
	name := strings.ToLower(strings.TrimSpace(title))
	name = unsafeNameRe.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")
	if name == "" {
		return "learned-pattern"
	}
	return name
}
