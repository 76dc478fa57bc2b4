// Package observation provides the append-only tool-usage event log.
//
// Observations are one-per-line JSON records appended by Claude Code hook
// invocations. Multiple hook processes may write concurrently, so appends
// are serialized through an advisory file lock. Readers tolerate corrupt
// or partial lines; concurrent writers make those expected, not fatal.
package observation

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"
)

// EventKind identifies the hook that produced an observation.
type EventKind string

const (
	// EventToolStart is written from the PreToolUse hook.
	EventToolStart EventKind = "tool_start"

	// EventToolComplete is written from the PostToolUse hook.
	EventToolComplete EventKind = "tool_complete"
)

// Observation is one recorded tool-usage event. Immutable once written.
//
// Input and Output are truncated text summaries, never raw tool payloads.
type Observation struct {
	Timestamp time.Time `json:"timestamp"`
	Event     EventKind `json:"event"`
	Tool      string    `json:"tool"`
	Session   string    `json:"session"`
	Input     string    `json:"input,omitempty"`
	Output    string    `json:"output,omitempty"`
}

// Ref returns a stable reference for this observation, used as the
// de-duplication identity for evidence citations.
func (o Observation) Ref() string {
	return fmt.Sprintf("%s@%s#%s/%s", o.Session, o.Timestamp.UTC().Format(time.RFC3339Nano), o.Tool, o.Event)
}

// Marshal encodes the observation as a single JSON line (no trailing
// newline).
func (o Observation) Marshal() ([]byte, error) {
	return json.Marshal(o)
}

// Parse decodes one log line. An error means the line is corrupt and
// should be skipped, never that the scan should abort.
func Parse(line []byte) (Observation, error) {
	var o Observation
	if err := json.Unmarshal(line, &o); err != nil {
		return Observation{}, fmt.Errorf("malformed observation line: %w", err)
	}
	if o.Session == "" {
		o.Session = "unknown"
	}
	return o, nil
}

// Truncate bounds a summary string to at most max bytes, backing off a
// partially-cut rune so the result stays valid UTF-8.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
