package pipeline

// State is the lifecycle phase of a pipeline run.
type State int32

const (
	// StateIdle means no run has started.
	StateIdle State = iota

	// StateRunning means tasks are still being admitted.
	StateRunning

	// StateDraining means every task was admitted and only completions remain.
	StateDraining

	// StateDone means the last completion was consumed and the tally is final.
	StateDone
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}
