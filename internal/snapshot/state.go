package snapshot

import "fmt"

// State is the lifecycle state of a [Snapshot].
type State int32

// Valid states.  A snapshot only moves forward through them.
const (
	StateLoading State = iota
	StatePublished
	StateRetiring
	StateDestroyed
)

// String implements the [fmt.Stringer] interface for State.
func (st State) String() (s string) {
	switch st {
	case StateLoading:
		return "loading"
	case StatePublished:
		return "published"
	case StateRetiring:
		return "retiring"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("!bad_state_%d", int32(st))
	}
}

// State returns the current state of s.
func (s *Snapshot) State() (st State) {
	return State(s.state.Load())
}

// MarkPublished moves s from [StateLoading] into [StatePublished].
func (s *Snapshot) MarkPublished() (err error) {
	return s.transition(StateLoading, StatePublished)
}

// MarkRetiring moves s from [StatePublished] into [StateRetiring].
func (s *Snapshot) MarkRetiring() (err error) {
	return s.transition(StatePublished, StateRetiring)
}

// Destroy moves s from [StateRetiring] or [StateLoading] into
// [StateDestroyed] and releases its lookup data.  The caller must make sure
// that no goroutine uses s for lookups any more.
func (s *Snapshot) Destroy() (err error) {
	err = s.transition(StateRetiring, StateDestroyed)
	if err != nil && s.transition(StateLoading, StateDestroyed) != nil {
		return err
	}

	s.labels = nil
	s.tree = nil

	return nil
}

// transition atomically moves s from the state from to the state to.
func (s *Snapshot) transition(from, to State) (err error) {
	if s.state.CompareAndSwap(int32(from), int32(to)) {
		return nil
	}

	return &TransitionError{
		From:   s.State(),
		To:     to,
		Wanted: from,
	}
}
