package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate_MonotonicStageProgression(t *testing.T) {
	budget := 60
	prevStage := -1
	prevPercent := -1

	for attempt := 0; attempt <= budget; attempt++ {
		snap := Estimate(attempt, budget)

		assert.GreaterOrEqual(t, snap.StageIndex, prevStage,
			"stage regressed at attempt %d", attempt)
		assert.GreaterOrEqual(t, snap.Percent, prevPercent,
			"percent regressed at attempt %d", attempt)

		prevStage = snap.StageIndex
		prevPercent = snap.Percent
	}
}

func TestEstimate_NeverReachesFinalStage(t *testing.T) {
	budget := 60
	last := len(Stages) - 1

	for attempt := 0; attempt <= budget*2; attempt++ {
		snap := Estimate(attempt, budget)
		assert.Less(t, snap.StageIndex, last)
		assert.Less(t, snap.Percent, 100)
	}
}

func TestEstimate_FirstAttemptStartsAtFirstStage(t *testing.T) {
	snap := Estimate(0, 60)

	assert.Equal(t, 0, snap.StageIndex)
	assert.Equal(t, Stages[0], snap.StageLabel)
	assert.Empty(t, snap.StagesCompleted)
}

func TestEstimate_StagesCompletedTracksIndex(t *testing.T) {
	snap := Estimate(30, 60)

	assert.Equal(t, Stages[snap.StageIndex], snap.StageLabel)
	assert.Len(t, snap.StagesCompleted, snap.StageIndex)
	for i, label := range snap.StagesCompleted {
		assert.Equal(t, Stages[i], label)
	}
}

func TestEstimate_TinyBudget(t *testing.T) {
	// A budget smaller than the stage count must not divide by zero or
	// overshoot the penultimate stage.
	for attempt := 0; attempt <= 3; attempt++ {
		snap := Estimate(attempt, 2)
		assert.LessOrEqual(t, snap.StageIndex, len(Stages)-2)
	}
}

func TestDone_IsTheOnlyPathTo100(t *testing.T) {
	snap := Done()

	assert.Equal(t, len(Stages)-1, snap.StageIndex)
	assert.Equal(t, Stages[len(Stages)-1], snap.StageLabel)
	assert.Equal(t, 100, snap.Percent)
	assert.Len(t, snap.StagesCompleted, len(Stages)-1)
}
