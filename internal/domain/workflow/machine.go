package workflow

import "context"

// StateMachine tracks the current phase and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger has a configured transition from the current state
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers configured for the current state
	PermittedTriggers() []Trigger
}

// TransitionFunc observes a completed transition
type TransitionFunc func(from, to State, trigger Trigger)

// BuildSubmissionMachine wires the session phase lifecycle:
// EDITING -> SUBMITTING -> SUBMITTED, back to EDITING when delivery fails, and
// EDITING -> DISCARDED. A second SUBMIT while SUBMITTING has no transition, which
// is what keeps a session from submitting twice.
func BuildSubmissionMachine(initial State, onTransition TransitionFunc) StateMachine {
	builder := NewBuilder()
	if onTransition != nil {
		builder.OnTransition(onTransition)
	}

	builder.Configure(StateEditing).
		Permit(TriggerSubmit, StateSubmitting).
		Permit(TriggerDiscard, StateDiscarded)

	builder.Configure(StateSubmitting).
		Permit(TriggerSubmitSucceeded, StateSubmitted).
		Permit(TriggerSubmitFailed, StateEditing)

	// SUBMITTED and DISCARDED are terminal

	return builder.Build(initial)
}
