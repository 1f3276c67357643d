package workflow

// Trigger represents an event that can cause a phase transition
type Trigger string

const (
	TriggerSubmit          Trigger = "SUBMIT"
	TriggerSubmitSucceeded Trigger = "SUBMIT_SUCCEEDED"
	TriggerSubmitFailed    Trigger = "SUBMIT_FAILED"
	TriggerDiscard         Trigger = "DISCARD"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
