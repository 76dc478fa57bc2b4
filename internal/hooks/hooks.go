// Package hooks turns Claude Code hook invocations into observation
// log entries.
//
// The commands `instinctd observe pre` and `instinctd observe post` are
// registered as PreToolUse and PostToolUse hooks; each invocation
// receives one JSON payload on stdin describing the tool call.
package hooks

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/instinctd/internal/observation"
)

// payload is the hook event as Claude Code delivers it. Field names
// have shifted across hook protocol versions, so both spellings are
// accepted.
type payload struct {
	ToolName  string          `json:"tool_name"`
	Tool      string          `json:"tool"`
	ToolInput json.RawMessage `json:"tool_input"`
	Input     json.RawMessage `json:"input"`
	ToolOut   json.RawMessage `json:"tool_output"`
	Output    json.RawMessage `json:"output"`
	SessionID string          `json:"session_id"`
	Session   string          `json:"session"`
}

func (p payload) tool() string {
	if p.ToolName != "" {
		return p.ToolName
	}
	return p.Tool
}

func (p payload) input() string {
	return rawToString(p.ToolInput, p.Input)
}

func (p payload) output() string {
	return rawToString(p.ToolOut, p.Output)
}

func (p payload) session() string {
	if p.SessionID != "" {
		return p.SessionID
	}
	if p.Session != "" {
		return p.Session
	}
	return "unknown"
}

// rawToString returns the first non-empty raw value. JSON strings are
// unquoted; any other JSON value is kept verbatim.
func rawToString(candidates ...json.RawMessage) string {
	for _, raw := range candidates {
		if len(raw) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return string(raw)
	}
	return ""
}

// Handler records hook payloads into the observation log.
type Handler struct {
	log    *observation.Log
	logger *zap.Logger

	// now is swapped in tests.
	now func() time.Time
}

// NewHandler creates a hook handler over the given observation log.
func NewHandler(log *observation.Log, logger *zap.Logger) (*Handler, error) {
	if log == nil {
		return nil, fmt.Errorf("observation log cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Handler{log: log, logger: logger, now: time.Now}, nil
}

// HandlePre records a PreToolUse payload read from r.
func (h *Handler) HandlePre(r io.Reader) error {
	return h.handle(r, observation.EventToolStart)
}

// HandlePost records a PostToolUse payload read from r.
func (h *Handler) HandlePost(r io.Reader) error {
	return h.handle(r, observation.EventToolComplete)
}

func (h *Handler) handle(r io.Reader, event observation.EventKind) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read hook payload: %w", err)
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to parse hook payload: %w", err)
	}
	if p.tool() == "" {
		return fmt.Errorf("hook payload has no tool name")
	}

	obs := observation.Observation{
		Timestamp: h.now().UTC(),
		Event:     event,
		Tool:      p.tool(),
		Session:   p.session(),
		Input:     p.input(),
		Output:    p.output(),
	}
	if err := h.log.Append(obs); err != nil {
		return fmt.Errorf("failed to record observation: %w", err)
	}

	h.logger.Debug("recorded observation",
		zap.String("event", string(event)),
		zap.String("tool", obs.Tool),
		zap.String("session", obs.Session),
	)
	return nil
}
