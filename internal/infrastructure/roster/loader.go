// Package roster loads the manager roster from a YAML file.
package roster

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
)

// File is the on-disk roster layout:
//
//	managers:
//	  - name: Priya Sharma
//	    email: priya.sharma@estateops.in
//	    department: operations
type File struct {
	Managers []entity.Manager `yaml:"managers"`
}

// Parse decodes a roster document. Every manager needs an email and a
// department; duplicate emails within a department are rejected.
func Parse(r io.Reader) (*entity.Roster, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("roster is empty")
		}
		return nil, fmt.Errorf("failed to decode roster: %w", err)
	}

	seen := make(map[string]bool, len(f.Managers))
	for i, m := range f.Managers {
		if strings.TrimSpace(m.Email) == "" {
			return nil, fmt.Errorf("manager %d: email is required", i+1)
		}
		if strings.TrimSpace(m.Department) == "" {
			return nil, fmt.Errorf("manager %d (%s): department is required", i+1, m.Email)
		}
		key := m.Department + "\x00" + m.Email
		if seen[key] {
			return nil, fmt.Errorf("manager %s listed twice in %s", m.Email, m.Department)
		}
		seen[key] = true
	}

	return entity.NewRoster(f.Managers), nil
}

// Load reads the roster at path. An empty path yields the built-in roster.
func Load(path string) (*entity.Roster, error) {
	if path == "" {
		return entity.DefaultRoster(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster: %w", err)
	}
	defer file.Close()

	r, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}
