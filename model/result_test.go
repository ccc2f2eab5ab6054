package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummary(t *testing.T) {
	var s Summary
	s.Add(PathResult{Path: "/etc/passwd", Outcome: OutcomeFound, Entry: "etc/passwd", Size: 10})
	s.Add(PathResult{Path: "/etc/rc.d", Outcome: OutcomeMissing})
	s.Add(PathResult{Path: "/var/log/secure", Outcome: OutcomeUnreadable, Reason: "permission denied"})
	s.Add(PathResult{Path: "/var/log/syslog", Outcome: OutcomeFound, Entry: "var/log/syslog", Size: 32})

	assert.Equal(t, []string{"etc/passwd", "var/log/syslog"}, s.Entries())
	assert.Equal(t, 2, s.Count(OutcomeFound))
	assert.Equal(t, 1, s.Count(OutcomeMissing))
	assert.Equal(t, 0, s.Count(OutcomeSkipped))
	assert.Equal(t, int64(42), s.Bytes())
}

func TestOutcomeJSON(t *testing.T) {
	data, err := json.Marshal(PathResult{Path: "/dev/null", Outcome: OutcomeSkipped, Reason: "device"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"outcome":"skipped"`)

	var r PathResult
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, OutcomeSkipped, r.Outcome)

	err = json.Unmarshal([]byte(`{"outcome":"exploded"}`), &r)
	assert.Error(t, err)
}

func TestStageTerminal(t *testing.T) {
	assert.True(t, StageDone.Terminal())
	assert.True(t, StageFailed.Terminal())
	assert.False(t, StageUpload.Terminal())
}
