package patterns

import (
	"encoding/json"
	"sort"
	"strings"
)

// targetOf derives the object an observation operated on. File-oriented
// tools carry a file_path in their input summary; for everything else the
// tool name stands in as the target.
func targetOf(tool, input string) string {
	if path := extractFilePath(input); path != "" {
		return path
	}
	return tool
}

// extractFilePath pulls file_path out of a JSON-encoded input summary.
// Returns "" when the summary is not JSON or has no file_path; that is
// normal, not an error.
func extractFilePath(input string) string {
	var data map[string]any
	if err := json.Unmarshal([]byte(input), &data); err != nil {
		return ""
	}
	if path, ok := data["file_path"].(string); ok {
		return path
	}
	return ""
}

// parameterSignature normalizes an input summary into a comparable shape
// for the preference detector.
//
// Command-style inputs reduce to their sorted flag set ("-l -r" and
// "-r -l" are the same signature); structured inputs reduce to their
// sorted key set. Unparseable input falls back to its bare flag tokens, or
// "plain" when it has none.
func parameterSignature(input string) string {
	var data map[string]any
	if err := json.Unmarshal([]byte(input), &data); err == nil {
		if cmd, ok := data["command"].(string); ok {
			return flagSignature(cmd)
		}
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "keys:" + strings.Join(keys, ",")
	}
	return flagSignature(input)
}

func flagSignature(text string) string {
	seen := make(map[string]bool)
	var flags []string
	for _, tok := range strings.Fields(text) {
		if strings.HasPrefix(tok, "-") && len(tok) > 1 && !seen[tok] {
			seen[tok] = true
			flags = append(flags, tok)
		}
	}
	if len(flags) == 0 {
		return "plain"
	}
	sort.Strings(flags)
	return "flags:" + strings.Join(flags, " ")
}
