package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/instinctd/internal/observation"
)

// session appends a run of tool_start events for one session.
func sessionStarts(session string, offset int, tools ...string) []observation.Observation {
	out := make([]observation.Observation, len(tools))
	for i, tool := range tools {
		out[i] = start(offset+i, session, tool, "")
	}
	return out
}

func TestWorkflowDetector_RecurringSequence(t *testing.T) {
	// Read -> Edit -> Bash in three separate sessions yields one
	// workflow with one supporting observation per session.
	d := &WorkflowDetector{MinSequenceLength: 3, MinSessions: 2}
	var obs []observation.Observation
	obs = append(obs, sessionStarts("s1", 0, "Read", "Edit", "Bash")...)
	obs = append(obs, sessionStarts("s2", 100, "Read", "Edit", "Bash")...)
	obs = append(obs, sessionStarts("s3", 200, "Read", "Edit", "Bash")...)

	patterns := d.Detect(obs)
	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, PatternRepeatedWorkflow, p.Type)
	assert.Equal(t, "when performing read operations", p.Trigger)
	assert.Equal(t, "1. Read\n2. Edit\n3. Bash", p.Action)
	assert.Len(t, p.Supporting, 3)
	assert.ElementsMatch(t, []string{"s1", "s2", "s3"}, p.Sessions)
}

func TestWorkflowDetector_BelowSessionThreshold(t *testing.T) {
	d := &WorkflowDetector{MinSequenceLength: 3, MinSessions: 2}
	obs := sessionStarts("s1", 0, "Read", "Edit", "Bash")

	assert.Empty(t, d.Detect(obs))
}

func TestWorkflowDetector_LongerSequenceSubsumesShorter(t *testing.T) {
	// Both Read->Edit->Bash and Read->Edit->Bash->Write recur; only the
	// longer sequence is reported.
	d := &WorkflowDetector{MinSequenceLength: 3, MinSessions: 2}
	var obs []observation.Observation
	obs = append(obs, sessionStarts("s1", 0, "Read", "Edit", "Bash", "Write")...)
	obs = append(obs, sessionStarts("s2", 100, "Read", "Edit", "Bash", "Write")...)

	patterns := d.Detect(obs)
	require.Len(t, patterns, 1)
	assert.Contains(t, patterns[0].Description, "Read -> Edit -> Bash -> Write")
}

func TestWorkflowDetector_DistinctSequencesBothReported(t *testing.T) {
	// Two recurring sequences that are not contained in each other both
	// survive.
	// A session-unique tool between the two runs keeps bridging
	// subsequences from recurring across sessions.
	d := &WorkflowDetector{MinSequenceLength: 3, MinSessions: 2}
	var obs []observation.Observation
	obs = append(obs, sessionStarts("s1", 0, "Read", "Edit", "Bash", "Glob", "Grep", "Read", "Write")...)
	obs = append(obs, sessionStarts("s2", 100, "Read", "Edit", "Bash", "Task", "Grep", "Read", "Write")...)

	patterns := d.Detect(obs)
	require.Len(t, patterns, 2)
	var descriptions string
	for _, p := range patterns {
		descriptions += p.Description + "\n"
	}
	assert.Contains(t, descriptions, "Read -> Edit -> Bash")
	assert.Contains(t, descriptions, "Grep -> Read -> Write")
}

func TestWorkflowDetector_IgnoresCompletions(t *testing.T) {
	d := &WorkflowDetector{MinSequenceLength: 3, MinSessions: 2}
	obs := []observation.Observation{
		complete(1, "s1", "Read", "", "ok"),
		complete(2, "s1", "Edit", "", "ok"),
		complete(3, "s1", "Bash", "", "ok"),
		complete(4, "s2", "Read", "", "ok"),
		complete(5, "s2", "Edit", "", "ok"),
		complete(6, "s2", "Bash", "", "ok"),
	}

	assert.Empty(t, d.Detect(obs))
}

func TestIsContiguousSubsequence(t *testing.T) {
	assert.True(t, isContiguousSubsequence([]string{"B", "C"}, []string{"A", "B", "C", "D"}))
	assert.False(t, isContiguousSubsequence([]string{"A", "C"}, []string{"A", "B", "C", "D"}))
	// Equal length is containment, not subsequence.
	assert.False(t, isContiguousSubsequence([]string{"A", "B"}, []string{"A", "B"}))
}
