package wizard

// ErrorMap maps a field id to its single error message. A missing key means
// the field passes.
type ErrorMap map[string]string

// Add records message for field unless the field already has one
func (m ErrorMap) Add(field, message string) {
	if _, exists := m[field]; !exists {
		m[field] = message
	}
}

// Merge adds every entry of other, keeping existing messages
func (m ErrorMap) Merge(other ErrorMap) {
	for field, message := range other {
		m.Add(field, message)
	}
}

// Clone returns a copy of the map
func (m ErrorMap) Clone() ErrorMap {
	out := make(ErrorMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Validator validates one section of a record
type Validator interface {
	Validate(sectionID string, record Record) ErrorMap
}

// Rule checks part of a record and adds failures to errs
type Rule interface {
	Apply(record Record, errs ErrorMap)
}

// RuleFunc adapts a function to Rule
type RuleFunc func(record Record, errs ErrorMap)

// Apply calls f
func (f RuleFunc) Apply(record Record, errs ErrorMap) {
	f(record, errs)
}

// RuleSet is a declarative Validator: an ordered rule list per section.
// Every rule runs; the first message recorded for a field wins.
type RuleSet struct {
	sections map[string][]Rule
}

// NewRuleSet creates an empty rule set
func NewRuleSet() *RuleSet {
	return &RuleSet{sections: make(map[string][]Rule)}
}

// Section appends rules to sectionID
func (s *RuleSet) Section(sectionID string, rules ...Rule) *RuleSet {
	s.sections[sectionID] = append(s.sections[sectionID], rules...)
	return s
}

// Validate runs the rules of sectionID. Sections without rules always pass.
func (s *RuleSet) Validate(sectionID string, record Record) ErrorMap {
	errs := ErrorMap{}
	for _, rule := range s.sections[sectionID] {
		rule.Apply(record, errs)
	}
	return errs
}
