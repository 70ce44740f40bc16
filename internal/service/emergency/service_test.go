package emergency

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/docstore/memory"
	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/internal/query"
	apperrors "github.com/carepoint/portal-api/pkg/errors"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewService(store, query.NewComposer(store, nil)), store
}

func seedUser(t *testing.T, store docstore.Store, name, role string) string {
	t.Helper()
	fields, err := docstore.Encode(&model.User{
		Email:       name + "@example.com",
		DisplayName: name,
		Role:        role,
		Active:      true,
	})
	require.NoError(t, err)
	doc, err := store.Create(context.Background(), docstore.CollectionUsers, fields)
	require.NoError(t, err)
	return doc.ID()
}

func raise(t *testing.T, svc *Service, patientID, doctorID string) *model.EmergencyRequest {
	t.Helper()
	req, err := svc.Create(context.Background(), patientID, &model.CreateEmergencyRequest{
		DoctorID: doctorID,
		Reason:   "severe chest pain",
	})
	require.NoError(t, err)
	return req
}

func TestCreate(t *testing.T) {
	svc, store := newTestService(t)
	patientID := seedUser(t, store, "Ann Lee", model.RolePatient)
	doctorID := seedUser(t, store, "Dr Wu", model.RoleDoctor)

	req := raise(t, svc, patientID, doctorID)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, model.EmergencyStatusPending, req.Status)
	assert.Equal(t, "Ann Lee", req.PatientName)
	assert.Equal(t, "severe chest pain", req.Reason)
}

func TestCreate_OnePendingPerDoctor(t *testing.T) {
	svc, store := newTestService(t)
	patientID := seedUser(t, store, "Ann", model.RolePatient)
	d1 := seedUser(t, store, "Dr Wu", model.RoleDoctor)
	d2 := seedUser(t, store, "Dr Xu", model.RoleDoctor)

	first := raise(t, svc, patientID, d1)

	_, err := svc.Create(context.Background(), patientID, &model.CreateEmergencyRequest{
		DoctorID: d1, Reason: "still waiting",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))

	// A second doctor is a separate request.
	raise(t, svc, patientID, d2)

	// Resolution clears the way for a new one.
	_, err = svc.Resolve(context.Background(), d1, first.ID, model.EmergencyStatusRejected)
	require.NoError(t, err)
	raise(t, svc, patientID, d1)
}

func TestCreate_UnknownPatient(t *testing.T) {
	svc, store := newTestService(t)
	doctorID := seedUser(t, store, "Dr Wu", model.RoleDoctor)

	_, err := svc.Create(context.Background(), "nope", &model.CreateEmergencyRequest{
		DoctorID: doctorID, Reason: "help",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestResolve(t *testing.T) {
	svc, store := newTestService(t)
	patientID := seedUser(t, store, "Ann", model.RolePatient)
	doctorID := seedUser(t, store, "Dr Wu", model.RoleDoctor)
	req := raise(t, svc, patientID, doctorID)

	resolved, err := svc.Resolve(context.Background(), doctorID, req.ID, model.EmergencyStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, model.EmergencyStatusApproved, resolved.Status)

	// Resolution is final.
	_, err = svc.Resolve(context.Background(), doctorID, req.ID, model.EmergencyStatusRejected)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))
}

func TestResolve_Guards(t *testing.T) {
	svc, store := newTestService(t)
	patientID := seedUser(t, store, "Ann", model.RolePatient)
	d1 := seedUser(t, store, "Dr Wu", model.RoleDoctor)
	d2 := seedUser(t, store, "Dr Xu", model.RoleDoctor)
	req := raise(t, svc, patientID, d1)

	// Only the addressed doctor may act.
	_, err := svc.Resolve(context.Background(), d2, req.ID, model.EmergencyStatusApproved)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrForbidden, apperrors.CodeOf(err))

	_, err = svc.Resolve(context.Background(), d1, req.ID, "escalated")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))

	_, err = svc.Resolve(context.Background(), d1, "nope", model.EmergencyStatusApproved)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	// Admin callers pass an empty doctor scope.
	resolved, err := svc.Resolve(context.Background(), "", req.ID, model.EmergencyStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, model.EmergencyStatusApproved, resolved.Status)
}

func TestListings(t *testing.T) {
	svc, store := newTestService(t)
	p1 := seedUser(t, store, "Ann", model.RolePatient)
	p2 := seedUser(t, store, "Bob", model.RolePatient)
	d1 := seedUser(t, store, "Dr Wu", model.RoleDoctor)
	d2 := seedUser(t, store, "Dr Xu", model.RoleDoctor)

	resolved := raise(t, svc, p1, d1)
	_, err := svc.Resolve(context.Background(), d1, resolved.ID, model.EmergencyStatusApproved)
	require.NoError(t, err)
	raise(t, svc, p2, d1)
	raise(t, svc, p1, d2)

	// Pending requests surface before resolved ones.
	forD1, err := svc.ForDoctor(context.Background(), d1, "")
	require.NoError(t, err)
	require.Len(t, forD1, 2)
	assert.Equal(t, model.EmergencyStatusPending, forD1[0].Status)
	assert.Equal(t, model.EmergencyStatusApproved, forD1[1].Status)

	pending, err := svc.ForDoctor(context.Background(), d1, model.EmergencyStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, p2, pending[0].PatientID)

	mine, err := svc.ForPatient(context.Background(), p1)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	allPending, err := svc.List(context.Background(), model.EmergencyStatusPending)
	require.NoError(t, err)
	assert.Len(t, allPending, 2)
}
