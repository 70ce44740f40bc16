package subscription

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/docstore/memory"
	"github.com/carepoint/portal-api/internal/query"
	"github.com/carepoint/portal-api/pkg/logger"
)

type snapshotRecorder struct {
	mu    sync.Mutex
	snaps [][]docstore.Document
}

func (r *snapshotRecorder) record(docs []docstore.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, docs)
}

func (r *snapshotRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func (r *snapshotRecorder) latest() []docstore.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return nil
	}
	return r.snaps[len(r.snaps)-1]
}

func newTestManager(store *memory.Store) *Manager {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	return NewManager(query.NewComposer(store, nil), store, log, nil)
}

func waitForSnapshots(t *testing.T, rec *snapshotRecorder, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return rec.count() >= n },
		2*time.Second, 5*time.Millisecond, "expected at least %d snapshots", n)
}

func TestSubscribe_InitialSnapshot(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	_, err := store.Create(ctx, docstore.CollectionAppointments, docstore.Document{
		"doctorId": "d1", "date": "2024-06-01", "time": "10:00",
	})
	require.NoError(t, err)
	_, err = store.Create(ctx, docstore.CollectionAppointments, docstore.Document{
		"doctorId": "d2", "date": "2024-06-01", "time": "09:00",
	})
	require.NoError(t, err)

	rec := &snapshotRecorder{}
	dispose, err := newTestManager(store).Subscribe(ctx, Options{
		Collection: docstore.CollectionAppointments,
		Field:      "doctorId",
		Value:      "d1",
		OrderBy:    "time",
	}, rec.record)
	require.NoError(t, err)
	defer dispose()

	// The initial snapshot is delivered before Subscribe returns.
	require.Equal(t, 1, rec.count())
	snap := rec.latest()
	require.Len(t, snap, 1)
	assert.Equal(t, "d1", snap[0].Str("doctorId"))
}

func TestSubscribe_PushesFullListPerEvent(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	rec := &snapshotRecorder{}
	dispose, err := newTestManager(store).Subscribe(ctx, Options{
		Collection: docstore.CollectionAppointments,
		Field:      "doctorId",
		Value:      "d1",
		OrderBy:    "time",
	}, rec.record)
	require.NoError(t, err)
	defer dispose()

	first, err := store.Create(ctx, docstore.CollectionAppointments, docstore.Document{
		"doctorId": "d1", "date": "2024-06-01", "time": "14:00",
	})
	require.NoError(t, err)
	waitForSnapshots(t, rec, 2)

	_, err = store.Create(ctx, docstore.CollectionAppointments, docstore.Document{
		"doctorId": "d1", "date": "2024-06-01", "time": "09:00",
	})
	require.NoError(t, err)
	waitForSnapshots(t, rec, 3)

	// Every push is the full ordered list, not a diff.
	snap := rec.latest()
	require.Len(t, snap, 2)
	assert.Equal(t, "09:00", snap[0].Str("time"))
	assert.Equal(t, "14:00", snap[1].Str("time"))

	require.NoError(t, store.Delete(ctx, docstore.CollectionAppointments, first.ID()))
	waitForSnapshots(t, rec, 4)

	snap = rec.latest()
	require.Len(t, snap, 1)
	assert.Equal(t, "09:00", snap[0].Str("time"))
}

func TestSubscribe_EvictsReassignedDocuments(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	appt, err := store.Create(ctx, docstore.CollectionAppointments, docstore.Document{
		"doctorId": "d1", "date": "2024-06-01", "time": "10:00",
	})
	require.NoError(t, err)

	rec := &snapshotRecorder{}
	dispose, err := newTestManager(store).Subscribe(ctx, Options{
		Collection: docstore.CollectionAppointments,
		Field:      "doctorId",
		Value:      "d1",
	}, rec.record)
	require.NoError(t, err)
	defer dispose()

	require.Len(t, rec.latest(), 1)

	_, err = store.Update(ctx, docstore.CollectionAppointments, appt.ID(), docstore.Document{"doctorId": "d2"})
	require.NoError(t, err)
	waitForSnapshots(t, rec, 2)

	assert.Empty(t, rec.latest())
}

func TestSubscribe_DateFilter(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	for _, doc := range []docstore.Document{
		{"doctorId": "d1", "date": "2024-06-01", "time": "10:00"},
		{"doctorId": "d1", "date": "2024-06-02", "time": "09:00"},
	} {
		_, err := store.Create(ctx, docstore.CollectionAppointments, doc)
		require.NoError(t, err)
	}

	rec := &snapshotRecorder{}
	dispose, err := newTestManager(store).Subscribe(ctx, Options{
		Collection: docstore.CollectionAppointments,
		Field:      "doctorId",
		Value:      "d1",
		Date:       "2024-06-01",
		OrderBy:    "time",
	}, rec.record)
	require.NoError(t, err)
	defer dispose()

	snap := rec.latest()
	require.Len(t, snap, 1)
	assert.Equal(t, "2024-06-01", snap[0].Str("date"))
}

func TestSubscribe_DisposerStopsCallbacks(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	rec := &snapshotRecorder{}
	dispose, err := newTestManager(store).Subscribe(ctx, Options{
		Collection: docstore.CollectionAppointments,
		Field:      "doctorId",
		Value:      "d1",
	}, rec.record)
	require.NoError(t, err)

	dispose()
	dispose() // idempotent

	// Give the feed goroutine a beat to wind down, then mutate.
	time.Sleep(20 * time.Millisecond)
	before := rec.count()

	_, err = store.Create(ctx, docstore.CollectionAppointments, docstore.Document{"doctorId": "d1"})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, rec.count())
}
