package roster

import (
	"context"
	"errors"
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

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func newTestService(store docstore.Store) *Service {
	s := NewService(store, query.NewComposer(store, nil), testLogger(), nil)
	s.now = func() time.Time {
		return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	}
	return s
}

func seed(t *testing.T, store docstore.Store, collection string, docs ...docstore.Document) {
	t.Helper()
	for _, doc := range docs {
		_, err := store.Create(context.Background(), collection, doc)
		require.NoError(t, err)
	}
}

func TestPatientsForDoctor(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	_, err := store.Put(ctx, docstore.CollectionUsers, "p1", docstore.Document{
		"displayName": "Ann Lee",
		"email":       "ann@example.com",
		"role":        "patient",
	})
	require.NoError(t, err)

	seed(t, store, docstore.CollectionAppointments,
		docstore.Document{"patientId": "p1", "doctorId": "d1", "date": "2024-01-10", "status": "completed"},
		docstore.Document{"patientId": "p1", "doctorId": "d1", "date": "2024-06-01", "status": "scheduled"},
		docstore.Document{"patientId": "p9", "doctorId": "d2", "date": "2024-06-01", "status": "scheduled"},
	)
	seed(t, store, docstore.CollectionWaitlists,
		docstore.Document{"patientId": "p2", "doctorId": "d1", "urgency": "high"},
	)
	seed(t, store, docstore.CollectionEmergencyRequests,
		docstore.Document{"patientId": "p3", "doctorId": "d1", "status": "pending"},
		docstore.Document{"patientId": "p4", "doctorId": "d1", "status": "approved"},
	)

	entries, err := newTestService(store).PatientsForDoctor(ctx, "d1")
	require.NoError(t, err)

	// p1 (appointments), p2 (waitlist), p3 (pending emergency). p4's
	// request is resolved, so it contributes no roster row; p9 belongs
	// to another doctor.
	require.Len(t, entries, 3)

	byID := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byID[e.PatientID] = e
	}

	p1 := byID["p1"]
	assert.Equal(t, "Ann Lee", p1.Name)
	assert.Equal(t, StatusActive, p1.Status)
	assert.Equal(t, "2024-01-10", p1.LastVisit)
	assert.Equal(t, "2024-06-01", p1.UpcomingVisit)

	p2 := byID["p2"]
	assert.Equal(t, StatusWaiting, p2.Status)
	assert.Equal(t, UnknownPatientName, p2.Name)

	p3 := byID["p3"]
	assert.Equal(t, StatusEmergency, p3.Status)
}

func TestPatientsForDoctor_ResolvesProfileByUIDField(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	// Profile document whose identifier differs from the auth uid.
	_, err := store.Create(ctx, docstore.CollectionUsers, docstore.Document{
		"uid":         "auth-p1",
		"displayName": "Ann Lee",
	})
	require.NoError(t, err)

	seed(t, store, docstore.CollectionAppointments,
		docstore.Document{"patientId": "auth-p1", "doctorId": "d1", "date": "2024-06-01", "status": "scheduled"},
	)

	entries, err := newTestService(store).PatientsForDoctor(ctx, "d1")
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "Ann Lee", entries[0].Name)
	assert.False(t, entries[0].Placeholder)
}

func TestPatientsForDoctor_EmptyRoster(t *testing.T) {
	entries, err := newTestService(memory.NewStore()).PatientsForDoctor(context.Background(), "d1")

	require.NoError(t, err)
	assert.Empty(t, entries)
}

type countingStore struct {
	docstore.Store
	mu   sync.Mutex
	gets int
}

func (s *countingStore) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	s.mu.Lock()
	s.gets++
	s.mu.Unlock()
	return s.Store.Get(ctx, collection, id)
}

func (s *countingStore) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

func TestPatientsForDoctor_ProfileLookupsAreCached(t *testing.T) {
	inner := memory.NewStore()
	ctx := context.Background()

	_, err := inner.Put(ctx, docstore.CollectionUsers, "p1", docstore.Document{"displayName": "Ann"})
	require.NoError(t, err)
	seed(t, inner, docstore.CollectionAppointments,
		docstore.Document{"patientId": "p1", "doctorId": "d1", "date": "2024-06-01", "status": "scheduled"},
	)

	counting := &countingStore{Store: inner}
	svc := newTestService(counting)

	_, err = svc.PatientsForDoctor(ctx, "d1")
	require.NoError(t, err)
	first := counting.getCount()

	_, err = svc.PatientsForDoctor(ctx, "d1")
	require.NoError(t, err)

	assert.Equal(t, first, counting.getCount(), "second build should hit the profile cache")
}

type erroringStore struct {
	docstore.Store
	err error
}

func (s *erroringStore) FindEquals(context.Context, string, string, interface{}) ([]docstore.Document, error) {
	return nil, s.err
}

func (s *erroringStore) All(context.Context, string) ([]docstore.Document, error) {
	return nil, s.err
}

func TestPatientsForDoctor_SourceErrorPropagates(t *testing.T) {
	boom := errors.New("store down")
	store := &erroringStore{Store: memory.NewStore(), err: boom}

	_, err := newTestService(store).PatientsForDoctor(context.Background(), "d1")

	assert.ErrorIs(t, err, boom)
}
