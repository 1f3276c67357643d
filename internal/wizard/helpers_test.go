package wizard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/garyjia/backoffice-wizard/internal/application/port"
	"github.com/garyjia/backoffice-wizard/internal/domain/entity"
)

// memStore is an in-memory port.DraftStore
type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	sets    int
	failSet error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, port.ErrNotFound
	}
	return v, nil
}

func (m *memStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	m.sets++
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

var errStoreDown = errors.New("store down")

func requestFlow() *Flow {
	return NewRequestFlow(entity.DefaultRoster(), DefaultUploadPolicy())
}

type fieldValue struct {
	path  string
	value interface{}
}

// validRequestFields fills every required request section
var validRequestFields = []fieldValue{
	{"requestType", "leave"},
	{"requesterInfo.name", "Asha Pillai"},
	{"requesterInfo.employeeId", "EMP-1042"},
	{"requesterInfo.email", "asha.pillai@estateops.in"},
	{"requesterInfo.position", "Leasing Associate"},
	{"requesterInfo.department", "sales"},
	{"title", "Annual leave in December"},
	{"description", "Two weeks of annual leave for a family trip."},
	{"targetDepartment", "human_resources"},
	{"businessJustification", strings.Repeat("j", MinJustificationLength)},
	{"priority", "normal"},
}

func fill(t *testing.T, f *Flow, s FormState, fields ...fieldValue) FormState {
	t.Helper()
	for _, field := range fields {
		var out Outcome
		s, out = f.Reduce(s, SetField{Path: field.path, Value: field.value})
		require.NoError(t, out.Err, "set %s", field.path)
	}
	return s
}

func validRequestState(t *testing.T, f *Flow) FormState {
	t.Helper()
	return fill(t, f, f.NewState(), validRequestFields...)
}

func set(t *testing.T, f *Flow, s FormState, path string, value interface{}) FormState {
	t.Helper()
	next, out := f.Reduce(s, SetField{Path: path, Value: value})
	require.NoError(t, out.Err)
	return next
}
