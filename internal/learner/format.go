package learner

import (
	"fmt"
	"strings"
)

// FormatReport renders a Report for terminal output.
func FormatReport(r *Report) string {
	var b strings.Builder
	if r.SkippedReason != "" {
		fmt.Fprintf(&b, "Analysis skipped: %s\n", r.SkippedReason)
		return b.String()
	}
	fmt.Fprintf(&b, "Analyzed %d observation(s)\n", r.ObservationsAnalyzed)
	fmt.Fprintf(&b, "Patterns detected:  %d\n", r.PatternsDetected)
	fmt.Fprintf(&b, "Instincts created:  %d\n", r.InstinctsCreated)
	fmt.Fprintf(&b, "Instincts updated:  %d\n", r.InstinctsUpdated)
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "Warning: %s\n", w)
	}
	return b.String()
}
