// Package progress maps poll attempts onto named pipeline stages for the
// processing screen. The mapping is a cosmetic approximation for UI feedback
// only; nothing besides the UI renderer may treat it as ground truth.
package progress

// Stages shown while a generation job polls. The final stage is reserved for
// a genuine completion event and is never reached by elapsed time alone.
var Stages = []string{
	"Fetching source video…",
	"Transcribing speech…",
	"Detecting highlights…",
	"Scoring viral potential…",
	"Rendering clips…",
	"Done",
}

// Snapshot is one rendered progress state.
type Snapshot struct {
	StageIndex      int
	StageLabel      string
	Percent         int
	StagesCompleted []string
}

// Estimate maps a poll attempt into a stage and percentage. While polling the
// stage index is min(attempt / (budget / (N-1)), N-2): the estimate climbs
// through the intermediate stages but can never claim the final one. Percent
// is capped below 100 for the same reason. Monotonic in attempt.
func Estimate(attempt, budget int) Snapshot {
	n := len(Stages)
	if attempt < 0 {
		attempt = 0
	}
	if budget < 1 {
		budget = 1
	}

	span := budget / (n - 1)
	if span < 1 {
		span = 1
	}

	idx := attempt / span
	if idx > n-2 {
		idx = n - 2
	}

	percent := attempt * 100 / budget
	if percent > 95 {
		percent = 95
	}

	return snapshotAt(idx, percent)
}

// Done returns the terminal snapshot. Only a genuine Completed event may
// produce this; stray timer ticks after a terminal event must not.
func Done() Snapshot {
	return snapshotAt(len(Stages)-1, 100)
}

func snapshotAt(idx, percent int) Snapshot {
	return Snapshot{
		StageIndex:      idx,
		StageLabel:      Stages[idx],
		Percent:         percent,
		StagesCompleted: append([]string(nil), Stages[:idx]...),
	}
}
