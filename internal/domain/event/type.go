package event

// Type identifies the type of wizard event
type Type string

const (
	TypeDraftSaved       Type = "draft.saved"
	TypeDraftLoaded      Type = "draft.loaded"
	TypeDraftCleared     Type = "draft.cleared"
	TypeSectionAdvanced  Type = "section.advanced"
	TypeRequestSubmitted Type = "request.submitted"
	TypeSubmissionFailed Type = "submission.failed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeDraftSaved,
		TypeDraftLoaded,
		TypeDraftCleared,
		TypeSectionAdvanced,
		TypeRequestSubmitted,
		TypeSubmissionFailed:
		return true
	default:
		return false
	}
}
