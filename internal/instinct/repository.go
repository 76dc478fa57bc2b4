package instinct

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no instinct with the requested ID exists.
var ErrNotFound = errors.New("instinct not found")

// ErrCorrupt marks a record that exists on disk but does not parse.
// Analysis callers skip such records the same way LoadAll does, rather
// than failing the batch.
var ErrCorrupt = errors.New("instinct record is corrupt")

// Repository is the durable store for instinct records. The core never
// hard-deletes; deletion is an external data-management operation.
type Repository interface {
	// LoadAll returns every readable instinct. Corrupt records are
	// skipped, not fatal.
	LoadAll() ([]*Instinct, error)

	// Get fetches one instinct by ID. Returns ErrNotFound when no
	// record exists and wraps ErrCorrupt when one exists but does not
	// parse.
	Get(id string) (*Instinct, error)

	// Upsert writes an instinct, overwriting any prior version of the
	// same ID. Writes to the same ID are serialized.
	Upsert(inst *Instinct) error
}

// header is the YAML frontmatter of an instinct file. These fields are
// the authoritative data model; the markdown body is rendering.
type header struct {
	ID            string    `yaml:"id"`
	Trigger       string    `yaml:"trigger"`
	Confidence    float64   `yaml:"confidence"`
	Domain        string    `yaml:"domain"`
	Source        string    `yaml:"source"`
	EvidenceCount int       `yaml:"evidence_count"`
	CreatedAt     time.Time `yaml:"created_at"`
	UpdatedAt     time.Time `yaml:"updated_at"`
	Status        Status    `yaml:"status"`
}

// FileRepository stores one markdown file per instinct under a single
// directory. Thread-safe: writes to the same ID are serialized through a
// per-ID mutex, preserving the confidence clamp and decay invariants under
// concurrent confirms.
type FileRepository struct {
	dir    string
	logger *zap.Logger

	mu   sync.Mutex
	byID map[string]*sync.Mutex
}

// NewFileRepository creates a repository rooted at dir.
func NewFileRepository(dir string, logger *zap.Logger) (*FileRepository, error) {
	if dir == "" {
		return nil, fmt.Errorf("repository directory cannot be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &FileRepository{
		dir:    dir,
		logger: logger,
		byID:   make(map[string]*sync.Mutex),
	}, nil
}

func (r *FileRepository) lockFor(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.byID[id]
	if m == nil {
		m = &sync.Mutex{}
		r.byID[id] = m
	}
	return m
}

// LoadAll reads every *.md file in the repository directory. Files that
// fail to parse are skipped with a warning; a corrupt record never aborts
// the batch.
func (r *FileRepository) LoadAll() ([]*Instinct, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read repository directory: %w", err)
	}

	var out []*Instinct
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("failed to read instinct file", zap.String("path", path), zap.Error(err))
			continue
		}
		inst, err := parseRecord(content)
		if err != nil {
			r.logger.Warn("skipping corrupt instinct file", zap.String("path", path), zap.Error(err))
			continue
		}
		out = append(out, inst)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get fetches one instinct by ID.
func (r *FileRepository) Get(id string) (*Instinct, error) {
	path := r.pathFor(id)
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read instinct %s: %w", id, err)
	}
	inst, err := parseRecord(content)
	if err != nil {
		return nil, fmt.Errorf("instinct %s: %w: %w", id, ErrCorrupt, err)
	}
	return inst, nil
}

// Upsert writes the instinct with temp-file-then-rename durability.
func (r *FileRepository) Upsert(inst *Instinct) error {
	if inst == nil || inst.ID == "" {
		return fmt.Errorf("instinct must have an ID")
	}

	lock := r.lockFor(inst.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create repository directory: %w", err)
	}

	content, err := renderRecord(inst)
	if err != nil {
		return fmt.Errorf("failed to render instinct %s: %w", inst.ID, err)
	}

	path := r.pathFor(inst.ID)
	tmp, err := os.CreateTemp(r.dir, ".instinct-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write instinct %s: %w", inst.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace instinct %s: %w", inst.ID, err)
	}
	return nil
}

var unsafeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func (r *FileRepository) pathFor(id string) string {
	safe := unsafeFilenameRe.ReplaceAllString(filepath.Base(id), "-")
	safe = strings.Trim(safe, "-")
	if safe == "" {
		safe = "unnamed-instinct"
	}
	return filepath.Join(r.dir, safe+".md")
}

// evidenceBulletRe parses a rendered evidence bullet back into a citation.
var evidenceBulletRe = regexp.MustCompile(`^- (.*) \(session: ([^,]*), ref: ([^,]*), at: ([^)]*)\)$`)

// renderRecord produces the markdown document: YAML frontmatter header
// plus an Action section and an Evidence citation list.
func renderRecord(inst *Instinct) ([]byte, error) {
	hdr := header{
		ID:            inst.ID,
		Trigger:       inst.Trigger,
		Confidence:    inst.Confidence,
		Domain:        inst.Domain,
		Source:        inst.Source,
		EvidenceCount: inst.EvidenceCount(),
		CreatedAt:     inst.CreatedAt.UTC(),
		UpdatedAt:     inst.UpdatedAt.UTC(),
		Status:        inst.Status,
	}
	front, err := yaml.Marshal(&hdr)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(front)
	b.WriteString("---\n\n")
	b.WriteString("## Action\n\n")
	b.WriteString(inst.Action)
	b.WriteString("\n\n## Evidence\n\n")
	for _, ev := range inst.Evidence {
		fmt.Fprintf(&b, "- %s (session: %s, ref: %s, at: %s)\n",
			ev.Note, ev.Session, ev.ObservationRef, ev.Timestamp.UTC().Format(time.RFC3339Nano))
	}
	return []byte(b.String()), nil
}

// parseRecord reads a markdown instinct document back into the model.
func parseRecord(content []byte) (*Instinct, error) {
	text := string(content)
	if !strings.HasPrefix(text, "---\n") {
		return nil, fmt.Errorf("missing frontmatter")
	}
	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, fmt.Errorf("unterminated frontmatter")
	}

	var hdr header
	if err := yaml.Unmarshal([]byte(rest[:end+1]), &hdr); err != nil {
		return nil, fmt.Errorf("invalid frontmatter: %w", err)
	}
	if hdr.ID == "" {
		return nil, fmt.Errorf("missing id")
	}

	body := rest[end+len("\n---"):]
	action, evidence := parseBody(body)

	status := hdr.Status
	if status != StatusActive && status != StatusDormant {
		status = StatusActive
	}

	return &Instinct{
		ID:         hdr.ID,
		Trigger:    hdr.Trigger,
		Action:     action,
		Domain:     hdr.Domain,
		Source:     hdr.Source,
		Confidence: hdr.Confidence,
		Evidence:   evidence,
		Status:     status,
		CreatedAt:  hdr.CreatedAt,
		UpdatedAt:  hdr.UpdatedAt,
	}, nil
}

// parseBody extracts the Action section text and the Evidence citations.
// Tolerant by design: a body without the expected sections yields the
// whole text as the action and no citations.
func parseBody(body string) (string, []Evidence) {
	lines := strings.Split(body, "\n")

	var (
		actionLines []string
		evidence    []Evidence
		section     string
	)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "## Action"):
			section = "action"
			continue
		case strings.HasPrefix(trimmed, "## Evidence"):
			section = "evidence"
			continue
		case strings.HasPrefix(trimmed, "## "):
			section = ""
			continue
		}

		switch section {
		case "action":
			actionLines = append(actionLines, line)
		case "evidence":
			m := evidenceBulletRe.FindStringSubmatch(trimmed)
			if m == nil {
				continue
			}
			ts, err := time.Parse(time.RFC3339Nano, m[4])
			if err != nil {
				ts = time.Time{}
			}
			evidence = append(evidence, Evidence{
				Note:           m[1],
				Session:        m[2],
				ObservationRef: m[3],
				Timestamp:      ts,
			})
		}
	}

	action := strings.TrimSpace(strings.Join(actionLines, "\n"))
	if action == "" && len(evidence) == 0 {
		action = strings.TrimSpace(body)
	}
	return action, evidence
}
