package alarm

import "time"

// Clock provides time, injectable for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Transition is the observable outcome of one evaluation.
type Transition int

const (
	// Unchanged: still clear, still pending, or already fired.
	Unchanged Transition = iota
	// Pending: the adverse condition was just observed for the first time.
	Pending
	// Fired: the condition has held for the minimum sustained duration and
	// no notification has been sent for this episode yet. Reported exactly
	// once per contiguous episode.
	Fired
	// Resolved: the condition cleared after having been pending or fired.
	Resolved
)

// SustainedCondition is the sustain-timer state machine shared by every
// alarm category: an adverse condition must hold continuously for a minimum
// duration before firing, fires at most once per episode, and resets the
// moment the condition clears. Not safe for concurrent use; each instance is
// owned by a single evaluator goroutine.
type SustainedCondition struct {
	minDuration time.Duration
	clock       Clock

	startTime time.Time
	pending   bool
	triggered bool
}

// NewSustainedCondition builds a state machine in the Clear state.
func NewSustainedCondition(minDuration time.Duration, clock Clock) *SustainedCondition {
	if clock == nil {
		clock = systemClock{}
	}
	return &SustainedCondition{minDuration: minDuration, clock: clock}
}

// Observe advances the machine with the current truth of the condition.
func (s *SustainedCondition) Observe(active bool) Transition {
	if !active {
		wasPending := s.pending
		s.pending = false
		s.triggered = false
		if wasPending {
			return Resolved
		}
		return Unchanged
	}

	now := s.clock.Now()
	first := false
	if !s.pending {
		s.pending = true
		s.startTime = now
		first = true
	}
	if !s.triggered && now.Sub(s.startTime) >= s.minDuration {
		s.triggered = true
		return Fired
	}
	if first {
		return Pending
	}
	return Unchanged
}

// Pending reports whether an episode is in progress.
func (s *SustainedCondition) Pending() bool { return s.pending }

// Triggered reports whether the current episode already fired.
func (s *SustainedCondition) Triggered() bool { return s.triggered }

// StartTime returns when the current episode began; zero when clear.
func (s *SustainedCondition) StartTime() time.Time {
	if !s.pending {
		return time.Time{}
	}
	return s.startTime
}
