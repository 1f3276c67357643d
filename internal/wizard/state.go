package wizard

// FormState is the complete state of one wizard instance. It is owned by the
// caller and only changed through Flow.Reduce.
type FormState struct {
	Store     *FieldStore
	Current   int
	Touched   map[string]bool
	Errors    ErrorMap
	Submitted bool
}

// NewFormState starts at the first section with no errors
func NewFormState(store *FieldStore, current int) FormState {
	return FormState{
		Store:   store,
		Current: current,
		Touched: map[string]bool{},
		Errors:  ErrorMap{},
	}
}

// Clone returns a deep copy of s
func (s FormState) Clone() FormState {
	touched := make(map[string]bool, len(s.Touched))
	for k, v := range s.Touched {
		touched[k] = v
	}

	store := s.Store
	if store != nil {
		store = store.Clone()
	}

	errs := s.Errors.Clone()
	return FormState{
		Store:     store,
		Current:   s.Current,
		Touched:   touched,
		Errors:    errs,
		Submitted: s.Submitted,
	}
}
