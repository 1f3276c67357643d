package entity

import "sort"

// Manager is an approver who belongs to one department
type Manager struct {
	Name       string `json:"name" yaml:"name"`
	Email      string `json:"email" yaml:"email"`
	Department string `json:"department" yaml:"department"`
}

// Roster indexes managers by department. The zero value is an empty roster.
type Roster struct {
	byDepartment map[string][]Manager
}

// NewRoster builds a roster from a flat manager list
func NewRoster(managers []Manager) *Roster {
	r := &Roster{byDepartment: make(map[string][]Manager)}
	for _, m := range managers {
		if m.Department == "" || m.Email == "" {
			continue
		}
		r.byDepartment[m.Department] = append(r.byDepartment[m.Department], m)
	}
	return r
}

// Managers returns the managers of department, in roster order
func (r *Roster) Managers(department string) []Manager {
	if r == nil {
		return nil
	}
	managers := r.byDepartment[department]
	out := make([]Manager, len(managers))
	copy(out, managers)
	return out
}

// Find returns the manager of department with the given email
func (r *Roster) Find(department, email string) (Manager, bool) {
	if r == nil {
		return Manager{}, false
	}
	for _, m := range r.byDepartment[department] {
		if m.Email == email {
			return m, true
		}
	}
	return Manager{}, false
}

// Departments returns the department names in sorted order
func (r *Roster) Departments() []string {
	if r == nil {
		return nil
	}
	departments := make([]string, 0, len(r.byDepartment))
	for d := range r.byDepartment {
		departments = append(departments, d)
	}
	sort.Strings(departments)
	return departments
}

// DefaultRoster is used when no roster file is configured
func DefaultRoster() *Roster {
	return NewRoster([]Manager{
		{Name: "Priya Sharma", Email: "priya.sharma@estateops.in", Department: "operations"},
		{Name: "Rahul Verma", Email: "rahul.verma@estateops.in", Department: "operations"},
		{Name: "Anita Desai", Email: "anita.desai@estateops.in", Department: "finance"},
		{Name: "Vikram Rao", Email: "vikram.rao@estateops.in", Department: "finance"},
		{Name: "Meera Iyer", Email: "meera.iyer@estateops.in", Department: "sales"},
		{Name: "Arjun Nair", Email: "arjun.nair@estateops.in", Department: "legal"},
		{Name: "Kavita Menon", Email: "kavita.menon@estateops.in", Department: "human_resources"},
		{Name: "Sanjay Gupta", Email: "sanjay.gupta@estateops.in", Department: "it"},
		{Name: "Neha Kapoor", Email: "neha.kapoor@estateops.in", Department: "property_management"},
		{Name: "Rohan Mehta", Email: "rohan.mehta@estateops.in", Department: "property_management"},
	})
}
