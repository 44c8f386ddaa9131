package dispatch

import "fmt"

// State is the lifecycle of a single dispatch call.
//
//	validating ──► sending ──► completed
//	     │            └──────► failed
//	     └──► rejected
type State string

const (
	StateValidating State = "validating"
	StateSending    State = "sending"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateRejected   State = "rejected"
)

var transitions = map[State][]State{
	StateValidating: {StateSending, StateRejected},
	StateSending:    {StateCompleted, StateFailed},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return len(transitions[s]) == 0 }

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RetryState is the lifecycle of a retry session.
//
//	attempting ──► waiting ──► attempting ...
//	     ├──► succeeded
//	     ├──► exhausted
//	     └──► aborted   (non-retryable failure or cancelled context)
type RetryState string

const (
	RetryAttempting RetryState = "attempting"
	RetryWaiting    RetryState = "waiting"
	RetrySucceeded  RetryState = "succeeded"
	RetryExhausted  RetryState = "exhausted"
	RetryAborted    RetryState = "aborted"
)

var retryTransitions = map[RetryState][]RetryState{
	RetryAttempting: {RetryWaiting, RetrySucceeded, RetryExhausted, RetryAborted},
	RetryWaiting:    {RetryAttempting, RetryAborted},
}

func canRetryTransition(from, to RetryState) bool {
	for _, next := range retryTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// machine tracks one state value and refuses illegal moves.
type machine[S ~string] struct {
	state S
	allow func(from, to S) bool
}

func (m *machine[S]) to(next S) error {
	if !m.allow(m.state, next) {
		return fmt.Errorf("illegal transition %s -> %s", m.state, next)
	}
	m.state = next
	return nil
}
