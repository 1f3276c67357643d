package wizard

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Record is read-only access to a wizard record by dotted path
type Record interface {
	Get(path string) gjson.Result
}

var pathPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)

// ValidPath reports whether path is a dotted field path the store accepts
func ValidPath(path string) bool {
	return pathPattern.MatchString(path)
}

// FieldStore holds the wizard record as a JSON document. Writes to unknown
// paths create them.
type FieldStore struct {
	doc []byte
}

// NewFieldStore wraps doc. Anything that is not a JSON object starts an empty record.
func NewFieldStore(doc []byte) *FieldStore {
	if !gjson.ValidBytes(doc) || !gjson.ParseBytes(doc).IsObject() {
		return &FieldStore{doc: []byte("{}")}
	}
	cp := make([]byte, len(doc))
	copy(cp, doc)
	return &FieldStore{doc: cp}
}

// NewFieldStoreFrom marshals v into a new store
func NewFieldStoreFrom(v interface{}) (*FieldStore, error) {
	doc, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return NewFieldStore(doc), nil
}

// Get returns the value at path
func (s *FieldStore) Get(path string) gjson.Result {
	return gjson.GetBytes(s.doc, path)
}

// String returns the value at path as a string, empty when missing
func (s *FieldStore) String(path string) string {
	return s.Get(path).String()
}

// Set writes value at path
func (s *FieldStore) Set(path string, value interface{}) error {
	if !ValidPath(path) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	var (
		doc []byte
		err error
	)
	switch v := value.(type) {
	case json.RawMessage:
		if !gjson.ValidBytes(v) {
			return fmt.Errorf("invalid JSON value for %s", path)
		}
		doc, err = sjson.SetRawBytes(s.doc, path, v)
	default:
		doc, err = sjson.SetBytes(s.doc, path, value)
	}
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}

	s.doc = doc
	return nil
}

// Delete removes path. Deleting a missing path is not an error.
func (s *FieldStore) Delete(path string) error {
	if !ValidPath(path) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	doc, err := sjson.DeleteBytes(s.doc, path)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	s.doc = doc
	return nil
}

// Bytes returns a copy of the record document
func (s *FieldStore) Bytes() []byte {
	out := make([]byte, len(s.doc))
	copy(out, s.doc)
	return out
}

// Decode unmarshals the record into v
func (s *FieldStore) Decode(v interface{}) error {
	return json.Unmarshal(s.doc, v)
}

// Clone returns an independent copy of the store
func (s *FieldStore) Clone() *FieldStore {
	return &FieldStore{doc: s.Bytes()}
}
