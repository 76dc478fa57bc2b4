package artifacts

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/instinctd/internal/evolution"
)

// renderSkill produces a SKILL.md with the frontmatter Claude Code
// expects for discoverable skills.
func renderSkill(a evolution.Artifact) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "name: %s\n", sanitizeName(a.Title))
	fmt.Fprintf(&b, "description: Learned behavior pattern for %s\n", a.Title)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", a.Title)
	b.WriteString(a.BodySummary)
	writeSources(&b, a.SourceInstinctIDs)
	return b.String()
}

// renderCommand produces a slash-command file whose body is the
// workflow steps themselves.
func renderCommand(a evolution.Artifact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", a.Title)
	b.WriteString(a.BodySummary)
	writeSources(&b, a.SourceInstinctIDs)
	return b.String()
}

// renderSubagent produces an agent definition with frontmatter naming
// the agent and when to delegate to it.
func renderSubagent(a evolution.Artifact) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "name: %s\n", sanitizeName(a.Title))
	fmt.Fprintf(&b, "description: Handles %s workflows learned from observed sessions\n", a.Title)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", a.Title)
	b.WriteString("Follow this workflow:\n\n")
	b.WriteString(a.BodySummary)
	writeSources(&b, a.SourceInstinctIDs)
	return b.String()
}

func renderRule(a evolution.Artifact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", a.Title)
	b.WriteString(a.BodySummary)
	writeSources(&b, a.SourceInstinctIDs)
	return b.String()
}

func writeSources(b *strings.Builder, ids []string) {
	if len(ids) == 0 {
		return
	}
	b.WriteString("\nSource instincts: ")
	b.WriteString(strings.Join(ids, ", "))
	b.WriteString("\n")
}
