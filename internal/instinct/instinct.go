// Package instinct defines the persisted learning unit and its durable
// repository.
//
// An instinct is a confidence-scored behavioral rule with a natural-
// language trigger and action, backed by an append-only evidence list of
// observation citations. Records live as markdown files with a YAML
// frontmatter header; the header is the authoritative data model, the body
// is human-readable rendering.
package instinct

import (
	"regexp"
	"strings"
	"time"
)

// Status is the activity state of an instinct. It is a view on
// confidence, not an independent field: a status read below the dormancy
// threshold yields dormant, and a later confidence rise restores active.
type Status string

const (
	StatusActive  Status = "active"
	StatusDormant Status = "dormant"
)

// Evidence is an immutable citation linking an instinct to one supporting
// observation. Evidence is append-only; the ObservationRef is the
// de-duplication identity, so the same observation can never be cited
// twice on one instinct.
type Evidence struct {
	ObservationRef string    `json:"ref"`
	Session        string    `json:"session"`
	Timestamp      time.Time `json:"timestamp"`
	Note           string    `json:"note"`
}

// Instinct is a persisted, confidence-scored learned rule.
type Instinct struct {
	// ID is a stable kebab-case slug derived from trigger and domain,
	// so repeated detection of the same pattern updates rather than
	// duplicates.
	ID string

	// Trigger is the natural-language condition the rule applies under.
	Trigger string

	// Action is the natural-language recommendation.
	Action string

	// Domain is a free-form category (workflow, error-handling, ...).
	Domain string

	// Source is the pattern type that created the instinct, or
	// "observer" for externally seeded rules.
	Source string

	// Confidence is clamped to the configured [min, max] range on every
	// mutation.
	Confidence float64

	// Evidence is the ordered, append-only citation list.
	Evidence []Evidence

	// Status derives from confidence; persisted for readers that only
	// see the header.
	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EvidenceCount returns the number of citations.
func (i *Instinct) EvidenceCount() int {
	return len(i.Evidence)
}

// HasEvidence reports whether an observation is already cited.
func (i *Instinct) HasEvidence(ref string) bool {
	for _, ev := range i.Evidence {
		if ev.ObservationRef == ref {
			return true
		}
	}
	return false
}

// AddEvidence appends a citation unless its observation is already cited.
// Returns true when the citation was added.
func (i *Instinct) AddEvidence(ev Evidence) bool {
	if i.HasEvidence(ev.ObservationRef) {
		return false
	}
	i.Evidence = append(i.Evidence, ev)
	return true
}

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

// maxIDWords bounds the slug length; trigger prefixes are distinctive
// enough without the full sentence.
const maxIDWords = 6

// DeriveID builds the deterministic kebab-case identifier from a trigger
// and domain. The same (trigger, domain) pair always maps to the same ID.
func DeriveID(trigger, domain string) string {
	base := strings.ToLower(domain + " " + trigger)
	base = nonSlugRe.ReplaceAllString(base, " ")
	words := strings.Fields(base)
	if len(words) > maxIDWords {
		words = words[:maxIDWords]
	}
	if len(words) == 0 {
		return "unnamed-instinct"
	}
	return strings.Join(words, "-")
}
