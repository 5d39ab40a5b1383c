package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Update_IncrementsVersionAndRefreshesTimestamp(t *testing.T) {
	m := NewManager()

	first, err := m.Update("start", []Step{{Text: "do thing", Status: StepPending}})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)
	assert.False(t, first.UpdatedAt.IsZero())

	second, err := m.Update("continue", []Step{
		{Text: "do thing", Status: StepCompleted},
		{Text: "do next", Status: StepInProgress},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)
}

func TestManager_Update_RejectsTooManySteps(t *testing.T) {
	m := NewManager()
	steps := make([]Step, 13)
	for i := range steps {
		steps[i] = Step{Text: "step", Status: StepPending}
	}

	_, err := m.Update("", steps)

	require.Error(t, err)
}

func TestManager_Update_RejectsZeroSteps(t *testing.T) {
	m := NewManager()

	_, err := m.Update("", nil)

	require.Error(t, err)
}

func TestManager_Update_RejectsEmptyStepText(t *testing.T) {
	m := NewManager()

	_, err := m.Update("", []Step{{Text: "   ", Status: StepPending}})

	require.Error(t, err)
}

func TestManager_Update_RejectsMultipleInProgress(t *testing.T) {
	m := NewManager()

	_, err := m.Update("", []Step{
		{Text: "a", Status: StepInProgress},
		{Text: "b", Status: StepInProgress},
	})

	require.Error(t, err)
}

func TestManager_Update_TrimsStepText(t *testing.T) {
	m := NewManager()

	p, err := m.Update("", []Step{{Text: "  padded  ", Status: StepPending}})

	require.NoError(t, err)
	assert.Equal(t, "padded", p.Steps[0].Text)
}

func TestManager_Snapshot_MatchesLastUpdate(t *testing.T) {
	m := NewManager()
	_, err := m.Update("plan", []Step{{Text: "a", Status: StepPending}})
	require.NoError(t, err)

	snap := m.Snapshot()

	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, "plan", snap.Explanation)
}

func TestManager_Update_FailurePreservesPriorPlan(t *testing.T) {
	m := NewManager()
	_, err := m.Update("good", []Step{{Text: "a", Status: StepPending}})
	require.NoError(t, err)

	_, err = m.Update("bad", nil)
	require.Error(t, err)

	snap := m.Snapshot()
	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, "good", snap.Explanation)
}
