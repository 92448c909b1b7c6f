package broker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdict-labs/verdict/pkg/gate"
	"github.com/verdict-labs/verdict/pkg/runpack"
	"github.com/verdict-labs/verdict/pkg/tristate"
)

func TestNewAnnouncement(t *testing.T) {
	rec := runpack.NewRecorder("run-1", "loan.approval")
	_, err := rec.Append(runpack.StepDecided, map[string]string{"state": "decided"})
	require.NoError(t, err)
	pack, err := rec.Seal()
	require.NoError(t, err)

	res := &gate.Result{
		RunID:      "run-1",
		ScenarioID: "loan.approval",
		State:      gate.StateDecided,
		Outcome:    tristate.True,
		Pack:       pack,
	}
	at := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	a := NewAnnouncement(res, at)

	assert.Equal(t, pack.Fingerprint, a.Fingerprint)
	assert.Equal(t, "true", a.Outcome)
	assert.Equal(t, at, a.At)

	raw, err := json.Marshal(a)
	require.NoError(t, err)
	var back Announcement
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, a, back)
}

func TestNewAnnouncementWithoutPack(t *testing.T) {
	res := &gate.Result{
		RunID:      "run-2",
		ScenarioID: "loan.approval",
		State:      gate.StateBlocked,
		Outcome:    tristate.Indeterminate,
		Reason:     "age_check: evidence unavailable",
	}
	a := NewAnnouncement(res, time.Now())
	assert.Empty(t, a.Fingerprint)
	assert.Equal(t, gate.StateBlocked, a.State)
	assert.Equal(t, "indeterminate", a.Outcome)
}
