package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	saves  atomic.Int32
	prunes atomic.Int32
	idle   atomic.Int64
}

func (f *fakeSessions) AutosaveAll(ctx context.Context) int {
	f.saves.Add(1)
	return 2
}

func (f *fakeSessions) PruneIdle(maxIdle time.Duration) int {
	f.prunes.Add(1)
	f.idle.Store(int64(maxIdle))
	return 1
}

func TestAutosaveWorker_TickCounts(t *testing.T) {
	sessions := &fakeSessions{}
	w := NewAutosaveWorker(AutosaveConfig{IdleTimeout: time.Minute}, sessions, nil)

	w.Tick(context.Background())
	w.Tick(context.Background())

	stats := w.Stats()
	assert.Equal(t, 2, stats.Ticks)
	assert.Equal(t, 4, stats.Saved)
	assert.Equal(t, 2, stats.Pruned)
	assert.Equal(t, int64(time.Minute), sessions.idle.Load())
}

func TestAutosaveWorker_Defaults(t *testing.T) {
	w := NewAutosaveWorker(AutosaveConfig{}, &fakeSessions{}, nil)
	assert.Equal(t, DefaultAutosaveConfig(), w.config)
}

func TestAutosaveWorker_RunsOnTicker(t *testing.T) {
	sessions := &fakeSessions{}
	w := NewAutosaveWorker(AutosaveConfig{Interval: 5 * time.Millisecond}, sessions, nil)

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()), "second start fails")

	assert.Eventually(t, func() bool { return sessions.saves.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop())
	after := sessions.saves.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, sessions.saves.Load(), "no ticks after Stop returns")
	require.NoError(t, w.Stop())
}

type recordingWorker struct {
	name     string
	startErr error
	stopErr  error
	log      *[]string
	mu       *sync.Mutex
}

func (r *recordingWorker) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.log = append(*r.log, s)
}

func (r *recordingWorker) Start(ctx context.Context) error {
	r.record("start " + r.name)
	return r.startErr
}

func (r *recordingWorker) Stop() error {
	r.record("stop " + r.name)
	return r.stopErr
}

func (r *recordingWorker) Name() string { return r.name }

func TestManager_Lifecycle(t *testing.T) {
	var (
		log []string
		mu  sync.Mutex
	)
	m := NewManager(nil)
	m.Register(&recordingWorker{name: "a", log: &log, mu: &mu})
	m.Register(&recordingWorker{name: "broken", startErr: errors.New("no"), log: &log, mu: &mu})
	m.Register(&recordingWorker{name: "b", stopErr: errors.New("stuck"), log: &log, mu: &mu})

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	err := m.StopAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b: stuck")
	assert.False(t, m.IsRunning())

	assert.Equal(t, []string{"start a", "start broken", "start b", "stop b", "stop a"}, log)
	assert.NoError(t, m.StopAll(), "stopping twice is a no-op")
}
