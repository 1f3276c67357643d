package wizard

// Navigator gates movement between the sections of a registry
type Navigator struct {
	registry  *Registry
	validator Validator
}

// NewNavigator creates a navigator over reg using v
func NewNavigator(reg *Registry, v Validator) *Navigator {
	return &Navigator{registry: reg, validator: v}
}

// Next marks the current section touched and validates it. On errors the
// index is unchanged and the section's error map is returned; otherwise the
// index advances by one, clamped to the last section.
func (n *Navigator) Next(s *FormState) (ErrorMap, bool) {
	if s.Submitted {
		return ErrorMap{}, false
	}

	id := n.registry.IDOf(s.Current)
	s.Touched[id] = true

	errs := n.validator.Validate(id, s.Store)
	if len(errs) > 0 {
		s.Errors = errs.Clone()
		return errs, false
	}

	s.Errors = ErrorMap{}
	if s.Current < n.registry.LastIndex() {
		s.Current++
	}
	return errs, true
}

// Previous moves back one section without validating
func (n *Navigator) Previous(s *FormState) bool {
	if s.Submitted || s.Current == 0 {
		return false
	}
	s.Current--
	return true
}

// JumpTo moves to index when it is not ahead of the current section, or when
// the target section is complete. A section counts as complete for a jump
// only if no required section before it is still failing, so a rule-less
// section cannot be used to skip ahead. A refused jump changes nothing.
func (n *Navigator) JumpTo(s *FormState, index int) bool {
	if s.Submitted {
		return false
	}
	if index < 0 || index > n.registry.LastIndex() {
		return false
	}
	if index > s.Current && !n.reachable(s.Store, index) {
		return false
	}
	s.Current = index
	return true
}

func (n *Navigator) reachable(r Record, index int) bool {
	for i := 0; i < index; i++ {
		section, _ := n.registry.ByIndex(i)
		if section.Required && !SectionComplete(n.validator, section.ID, r) {
			return false
		}
	}
	return SectionComplete(n.validator, n.registry.IDOf(index), r)
}

// Submit validates every required section regardless of touched state and
// marks them all touched. It returns the union of their error maps.
func (n *Navigator) Submit(s *FormState) (ErrorMap, bool) {
	if s.Submitted {
		return ErrorMap{}, false
	}

	all := ErrorMap{}
	for _, section := range n.registry.Required() {
		s.Touched[section.ID] = true
		all.Merge(n.validator.Validate(section.ID, s.Store))
	}

	s.Errors = all.Clone()
	return all, len(all) == 0
}
