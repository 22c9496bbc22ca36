package enrichment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spotsng/discovery-be/internal/catalog"
	"github.com/spotsng/discovery-be/internal/directory"
	"github.com/spotsng/discovery-be/shared/clock"
	"github.com/spotsng/discovery-be/shared/logger"
)

type fakeStore struct {
	mu        sync.Mutex
	locations map[string]*catalog.Location
	getErr    error
	merged    []string
}

func newFakeStore(locations ...*catalog.Location) *fakeStore {
	s := &fakeStore{locations: make(map[string]*catalog.Location)}
	for _, loc := range locations {
		s.locations[loc.LocationID] = loc
	}
	return s
}

func (s *fakeStore) GetByID(_ context.Context, locationID string) (*catalog.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return nil, s.getErr
	}

	loc, ok := s.locations[locationID]
	if !ok {
		return nil, catalog.ErrLocationNotFound
	}

	copied := *loc
	return &copied, nil
}

func (s *fakeStore) MergeEnrichment(_ context.Context, locationID string, _ *catalog.Enrichment, enrichedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.locations[locationID]
	if !ok {
		return catalog.ErrLocationNotFound
	}

	at := enrichedAt
	loc.LastEnrichedAt = &at
	s.merged = append(s.merged, locationID)

	return nil
}

func (s *fakeStore) mergedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.merged...)
}

type fakeDirectory struct {
	mu             sync.Mutex
	resolveQueries []string
	resolveFn      func(query string) (string, error)
	detailsFn      func(placeID string) (*directory.Details, error)
}

func (d *fakeDirectory) ResolveIdentifier(_ context.Context, query string) (string, error) {
	d.mu.Lock()
	d.resolveQueries = append(d.resolveQueries, query)
	fn := d.resolveFn
	d.mu.Unlock()

	if fn != nil {
		return fn(query)
	}
	return "dir-" + query, nil
}

func (d *fakeDirectory) FetchDetails(_ context.Context, placeID string) (*directory.Details, error) {
	d.mu.Lock()
	fn := d.detailsFn
	d.mu.Unlock()

	if fn != nil {
		return fn(placeID)
	}

	rating := 4.2
	return &directory.Details{PlaceID: placeID, Rating: &rating}, nil
}

func (d *fakeDirectory) resolveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.resolveQueries)
}

func (d *fakeDirectory) queries() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.resolveQueries...)
}

type fakeInvalidator struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeInvalidator) Delete(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
}

func (f *fakeInvalidator) deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

func testQueue(t *testing.T, store Store, dir directory.Client, cache CacheInvalidator, clk clock.Clock) *Queue {
	t.Helper()

	q := NewQueue(store, dir, cache, clk, logger.NewDefault().Logger, nil, Config{
		BatchSize:       3,
		MaxAttempts:     3,
		RetryDelay:      5 * time.Minute,
		BatchDelay:      time.Millisecond,
		FreshnessWindow: 7 * 24 * time.Hour,
	})
	t.Cleanup(q.Stop)

	return q
}

func pendingLocation(id, name, address string) *catalog.Location {
	return &catalog.Location{
		LocationID: id,
		Name:       name,
		Address:    address,
		Status:     catalog.StatusPending,
	}
}

func waitForDrain(t *testing.T, q *Queue) {
	t.Helper()

	require.Eventually(t, func() bool {
		stats := q.Stats()
		return stats.QueueLength == 0 && !stats.Processing
	}, 2*time.Second, time.Millisecond)
}

func TestEnqueue_InvalidPriority(t *testing.T) {
	q := testQueue(t, newFakeStore(), &fakeDirectory{}, nil, clock.NewFake(time.Now()))

	err := q.Enqueue("loc-1", "addr", Priority("urgent"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid priority")
}

func TestQueue_ProcessesJobToCompletion(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	store := newFakeStore(pendingLocation("loc-1", "Amala Spot", "12 Allen Avenue, Ikeja"))
	dir := &fakeDirectory{}
	inv := &fakeInvalidator{}

	q := testQueue(t, store, dir, inv, fake)

	require.NoError(t, q.Enqueue("loc-1", "12 Allen Avenue, Ikeja", PriorityMedium))
	waitForDrain(t, q)

	assert.Equal(t, []string{"loc-1"}, store.mergedIDs())
	assert.Equal(t, []string{"Amala Spot, 12 Allen Avenue, Ikeja"}, dir.queries())
	assert.Equal(t, []string{catalog.CacheKey("loc-1")}, inv.deleted())

	stats := q.Stats()
	assert.Equal(t, int64(1), stats.CompletedToday)
	assert.Equal(t, 0, stats.QueueLength)
}

func TestQueue_HighPriorityProcessedFirst(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	store := newFakeStore(
		pendingLocation("loc-a", "Mama Put", "1 Bode Thomas, Surulere"),
		pendingLocation("loc-b", "Suya Palace", "5 Awolowo Road, Ikoyi"),
	)
	dir := &fakeDirectory{}

	q := NewQueue(store, dir, nil, fake, logger.NewDefault().Logger, nil, Config{
		BatchSize:  1, // one job per batch so pop order is observable
		BatchDelay: time.Millisecond,
	})
	t.Cleanup(q.Stop)

	// Seed both jobs before the loop runs, then drain synchronously.
	now := fake.Now()
	q.mu.Lock()
	q.push(&Job{LocationID: "loc-a", Priority: PriorityMedium, MaxAttempts: 3, CreatedAt: now, ScheduledFor: now})
	q.push(&Job{LocationID: "loc-b", Priority: PriorityHigh, MaxAttempts: 3, CreatedAt: now, ScheduledFor: now})
	q.processing = true
	q.mu.Unlock()

	q.wg.Add(1)
	q.processingLoop()

	queries := dir.queries()
	require.Len(t, queries, 2)
	assert.Contains(t, queries[0], "Suya Palace") // high first
	assert.Contains(t, queries[1], "Mama Put")
}

func TestQueue_FIFOWithinPriorityClass(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	store := newFakeStore(
		pendingLocation("loc-1", "First Cafe", ""),
		pendingLocation("loc-2", "Second Cafe", ""),
		pendingLocation("loc-3", "Third Cafe", ""),
	)
	dir := &fakeDirectory{}

	q := NewQueue(store, dir, nil, fake, logger.NewDefault().Logger, nil, Config{
		BatchSize:  1,
		BatchDelay: time.Millisecond,
	})
	t.Cleanup(q.Stop)

	now := fake.Now()
	q.mu.Lock()
	for _, id := range []string{"loc-1", "loc-2", "loc-3"} {
		q.push(&Job{LocationID: id, Priority: PriorityMedium, MaxAttempts: 3, CreatedAt: now, ScheduledFor: now})
	}
	q.processing = true
	q.mu.Unlock()

	q.wg.Add(1)
	q.processingLoop()

	queries := dir.queries()
	require.Len(t, queries, 3)
	assert.Contains(t, queries[0], "First Cafe")
	assert.Contains(t, queries[1], "Second Cafe")
	assert.Contains(t, queries[2], "Third Cafe")
}

func TestQueue_FreshLocationDroppedWithoutLookup(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	loc := pendingLocation("loc-1", "Amala Spot", "12 Allen Avenue")
	enrichedAt := fake.Now().Add(-24 * time.Hour) // well inside the 7-day window
	loc.LastEnrichedAt = &enrichedAt

	store := newFakeStore(loc)
	dir := &fakeDirectory{}

	q := testQueue(t, store, dir, nil, fake)

	require.NoError(t, q.Enqueue("loc-1", "12 Allen Avenue", PriorityMedium))
	waitForDrain(t, q)

	assert.Equal(t, 0, dir.resolveCount())
	assert.Empty(t, store.mergedIDs())
	assert.Equal(t, int64(0), q.Stats().CompletedToday)
}

func TestQueue_StaleLocationIsReEnriched(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	loc := pendingLocation("loc-1", "Amala Spot", "12 Allen Avenue")
	enrichedAt := fake.Now().Add(-8 * 24 * time.Hour) // outside the window
	loc.LastEnrichedAt = &enrichedAt

	store := newFakeStore(loc)
	dir := &fakeDirectory{}

	q := testQueue(t, store, dir, nil, fake)

	require.NoError(t, q.Enqueue("loc-1", "12 Allen Avenue", PriorityMedium))
	waitForDrain(t, q)

	assert.Equal(t, 1, dir.resolveCount())
	assert.Equal(t, []string{"loc-1"}, store.mergedIDs())
}

func TestQueue_MissingRecordDroppedWithoutRetry(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	store := newFakeStore() // empty catalog
	dir := &fakeDirectory{}

	q := testQueue(t, store, dir, nil, fake)

	require.NoError(t, q.Enqueue("ghost", "nowhere", PriorityHigh))
	waitForDrain(t, q)

	assert.Equal(t, 0, dir.resolveCount())
	assert.Equal(t, int64(0), q.Stats().CompletedToday)
}

func TestQueue_NoMatchDroppedWithoutRetry(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	store := newFakeStore(pendingLocation("loc-1", "Obscure Kiosk", "unknown street"))
	dir := &fakeDirectory{
		resolveFn: func(string) (string, error) {
			return "", directory.ErrNoMatch
		},
	}

	q := testQueue(t, store, dir, nil, fake)

	require.NoError(t, q.Enqueue("loc-1", "unknown street", PriorityMedium))
	waitForDrain(t, q)

	// A lookup miss is terminal: exactly one attempt, nothing merged.
	assert.Equal(t, 1, dir.resolveCount())
	assert.Empty(t, store.mergedIDs())
}

func TestQueue_TransientFailureRetriesUntilExhausted(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	store := newFakeStore(pendingLocation("loc-1", "Flaky Spot", "1 Timeout Road"))
	dir := &fakeDirectory{
		resolveFn: func(string) (string, error) {
			return "", directory.NewTransientError(errors.New("connection reset"))
		},
	}

	q := testQueue(t, store, dir, nil, fake)

	require.NoError(t, q.Enqueue("loc-1", "1 Timeout Road", PriorityMedium))

	// First attempt happens immediately.
	require.Eventually(t, func() bool { return dir.resolveCount() == 1 }, 2*time.Second, time.Millisecond)

	// Each retry becomes due only after the fixed retry delay.
	fake.Advance(6 * time.Minute)
	require.Eventually(t, func() bool { return dir.resolveCount() == 2 }, 2*time.Second, time.Millisecond)

	fake.Advance(6 * time.Minute)
	require.Eventually(t, func() bool { return dir.resolveCount() == 3 }, 2*time.Second, time.Millisecond)

	// attempts == maxAttempts: dropped for good, never scheduled a 4th time.
	waitForDrain(t, q)

	fake.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, dir.resolveCount())
	assert.Equal(t, 0, q.Stats().QueueLength)
	assert.Empty(t, store.mergedIDs())
}

func TestQueue_BatchIsolatesFailures(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	store := newFakeStore(
		pendingLocation("loc-1", "Good One", "1 First Street"),
		pendingLocation("loc-2", "Bad One", "2 Second Street"),
		pendingLocation("loc-3", "Good Two", "3 Third Street"),
	)
	dir := &fakeDirectory{
		resolveFn: func(query string) (string, error) {
			if query == "Bad One, 2 Second Street" {
				return "", fmt.Errorf("unexpected payload shape")
			}
			return "dir-" + query, nil
		},
	}

	q := testQueue(t, store, dir, nil, fake)

	require.NoError(t, q.Enqueue("loc-1", "1 First Street", PriorityMedium))
	require.NoError(t, q.Enqueue("loc-2", "2 Second Street", PriorityMedium))
	require.NoError(t, q.Enqueue("loc-3", "3 Third Street", PriorityMedium))

	waitForDrain(t, q)

	merged := store.mergedIDs()
	assert.ElementsMatch(t, []string{"loc-1", "loc-3"}, merged)
	assert.Equal(t, int64(2), q.Stats().CompletedToday)
}

func TestStats_PriorityBreakdown(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	q := NewQueue(newFakeStore(), &fakeDirectory{}, nil, fake, logger.NewDefault().Logger, nil, Config{})
	t.Cleanup(q.Stop)

	now := fake.Now()
	q.mu.Lock()
	q.push(&Job{LocationID: "a", Priority: PriorityHigh, ScheduledFor: now})
	q.push(&Job{LocationID: "b", Priority: PriorityMedium, ScheduledFor: now})
	q.push(&Job{LocationID: "c", Priority: PriorityMedium, ScheduledFor: now})
	q.push(&Job{LocationID: "d", Priority: PriorityLow, ScheduledFor: now})
	q.mu.Unlock()

	stats := q.Stats()
	assert.Equal(t, 4, stats.QueueLength)
	assert.Equal(t, 1, stats.ByPriority[PriorityHigh])
	assert.Equal(t, 2, stats.ByPriority[PriorityMedium])
	assert.Equal(t, 1, stats.ByPriority[PriorityLow])
}

func TestStats_CompletedResetsAtUTCDayBoundary(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC))
	store := newFakeStore(pendingLocation("loc-1", "Amala Spot", "12 Allen Avenue"))
	dir := &fakeDirectory{}

	q := testQueue(t, store, dir, nil, fake)

	require.NoError(t, q.Enqueue("loc-1", "12 Allen Avenue", PriorityMedium))
	waitForDrain(t, q)
	require.Equal(t, int64(1), q.Stats().CompletedToday)

	fake.Advance(2 * time.Hour) // cross midnight UTC
	assert.Equal(t, int64(0), q.Stats().CompletedToday)
}
