package workflow

// State is the submission phase of a wizard session. Section-to-section
// navigation happens inside StateEditing.
type State string

const (
	StateEditing    State = "EDITING"
	StateSubmitting State = "SUBMITTING"
	StateSubmitted  State = "SUBMITTED"
	StateDiscarded  State = "DISCARDED"
)

var validStates = map[State]bool{
	StateEditing:    true,
	StateSubmitting: true,
	StateSubmitted:  true,
	StateDiscarded:  true,
}

var terminalStates = map[State]bool{
	StateSubmitted: true,
	StateDiscarded: true,
}

// IsTerminal returns true if no further transitions are allowed from the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known session phase
func (s State) IsValid() bool {
	return validStates[s]
}
