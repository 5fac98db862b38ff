package retention

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dashpin-lab/dashpin/internal/core/reporting"
	"github.com/stretchr/testify/require"
)

// recordingStore counts store calls; every operation is a no-op.
type recordingStore struct {
	mu         sync.Mutex
	purgeCalls int
	savedUsers [][]reporting.User
}

func (r *recordingStore) Enabled() bool { return true }

func (r *recordingStore) SaveUsers(_ context.Context, users []reporting.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.savedUsers = append(r.savedUsers, users)
}

func (r *recordingStore) InsertReporting(_ context.Context, _ map[reporting.AggregationKey]*reporting.AggregationValue, _ reporting.GraphType) {
}

func (r *recordingStore) QueryReporting(_ context.Context, _ int64, _ int, _ reporting.GraphType) ([]reporting.Point, error) {
	return nil, nil
}

func (r *recordingStore) PurgeOldReporting(_ context.Context, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeCalls++
}

func (r *recordingStore) ExecuteRaw(_ context.Context, _ string) error { return nil }

func (r *recordingStore) snapshot() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.purgeCalls, len(r.savedUsers)
}

type staticUserSource struct {
	users []reporting.User
}

func (s *staticUserSource) DirtyUsers() []reporting.User { return s.users }

func TestScheduler_PurgesAndFlushesOnInterval(t *testing.T) {
	store := &recordingStore{}
	source := &staticUserSource{users: []reporting.User{{Name: "alice@example.com", JSON: "{}"}}}

	sched := NewScheduler(store, source, 10*time.Millisecond, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	require.Eventually(t, func() bool {
		purges, saves := store.snapshot()
		return purges > 0 && saves > 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestScheduler_FlushesDirtyUsersOnShutdown(t *testing.T) {
	store := &recordingStore{}
	source := &staticUserSource{users: []reporting.User{{Name: "bob@example.com", JSON: "{}"}}}

	// Intervals far beyond the test duration: the only flush is the shutdown one.
	sched := NewScheduler(store, source, time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	purges, saves := store.snapshot()
	require.Zero(t, purges)
	require.Equal(t, 1, saves)
}

func TestScheduler_NilUserSourceIsSkipped(t *testing.T) {
	store := &recordingStore{}
	sched := NewScheduler(store, nil, time.Hour, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	_, saves := store.snapshot()
	require.Zero(t, saves)
}
