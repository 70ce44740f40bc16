package user

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

func newTestService(t *testing.T) (*Service, docstore.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewService(store, query.NewComposer(store, nil)), store
}

func seed(t *testing.T, store docstore.Store, u *model.User) string {
	t.Helper()
	fields, err := docstore.Encode(u)
	require.NoError(t, err)
	doc, err := store.Create(context.Background(), docstore.CollectionUsers, fields)
	require.NoError(t, err)
	return doc.ID()
}

func TestGet(t *testing.T) {
	svc, store := newTestService(t)
	id := seed(t, store, &model.User{
		Email:        "ann@example.com",
		DisplayName:  "Ann",
		Role:         model.RolePatient,
		Active:       true,
		PasswordHash: "secret",
	})

	u, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.DisplayName)

	_, err = svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdateProfile(t *testing.T) {
	svc, store := newTestService(t)
	id := seed(t, store, &model.User{
		Email: "ann@example.com", DisplayName: "Ann", Role: model.RolePatient, Active: true,
	})

	name := "Ann Lee"
	phone := "555-0101"
	u, err := svc.UpdateProfile(context.Background(), id, &model.UpdateProfileRequest{
		DisplayName: &name,
		Phone:       &phone,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", u.DisplayName)
	assert.Equal(t, "555-0101", u.Phone)
	assert.Equal(t, "ann@example.com", u.Email)
}

func TestUpdateProfile_Rejections(t *testing.T) {
	svc, store := newTestService(t)
	id := seed(t, store, &model.User{Email: "ann@example.com", DisplayName: "Ann"})

	blank := "  "
	_, err := svc.UpdateProfile(context.Background(), id, &model.UpdateProfileRequest{DisplayName: &blank})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))

	_, err = svc.UpdateProfile(context.Background(), id, &model.UpdateProfileRequest{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))
}

func TestDoctors(t *testing.T) {
	svc, store := newTestService(t)
	seed(t, store, &model.User{Email: "wu@example.com", DisplayName: "Dr Wu", Role: model.RoleDoctor, Active: true})
	seed(t, store, &model.User{Email: "ada@example.com", DisplayName: "Dr Ada", Role: model.RoleDoctor, Active: true})
	seed(t, store, &model.User{Email: "off@example.com", DisplayName: "Dr Off", Role: model.RoleDoctor, Active: false})
	seed(t, store, &model.User{Email: "pat@example.com", DisplayName: "Pat", Role: model.RolePatient, Active: true})

	doctors, err := svc.Doctors(context.Background())
	require.NoError(t, err)
	require.Len(t, doctors, 2)
	// Ordered by display name; deactivated doctors are hidden.
	assert.Equal(t, "Dr Ada", doctors[0].DisplayName)
	assert.Equal(t, "Dr Wu", doctors[1].DisplayName)
}

func TestList(t *testing.T) {
	svc, store := newTestService(t)
	seed(t, store, &model.User{Email: "a@example.com", DisplayName: "A", Role: model.RolePatient, PasswordHash: "h"})
	seed(t, store, &model.User{Email: "b@example.com", DisplayName: "B", Role: model.RoleDoctor})

	all, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, u := range all {
		assert.Empty(t, u.PasswordHash)
	}

	patients, err := svc.List(context.Background(), model.RolePatient)
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, "A", patients[0].DisplayName)

	_, err = svc.List(context.Background(), "superuser")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))
}

func TestChangeRole(t *testing.T) {
	svc, store := newTestService(t)
	id := seed(t, store, &model.User{Email: "ann@example.com", DisplayName: "Ann", Role: model.RolePatient})

	u, err := svc.ChangeRole(context.Background(), id, model.RoleDoctor)
	require.NoError(t, err)
	assert.Equal(t, model.RoleDoctor, u.Role)

	_, err = svc.ChangeRole(context.Background(), id, "root")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))

	_, err = svc.ChangeRole(context.Background(), "missing", model.RoleAdmin)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSetActive(t *testing.T) {
	svc, store := newTestService(t)
	id := seed(t, store, &model.User{Email: "ann@example.com", DisplayName: "Ann", Active: true})

	u, err := svc.SetActive(context.Background(), id, false)
	require.NoError(t, err)
	assert.False(t, u.Active)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ann", DisplayName(&model.User{DisplayName: "Ann", Email: "ann@example.com"}))
	assert.Equal(t, "ann", DisplayName(&model.User{Email: "ann@example.com"}))
	assert.Equal(t, "Unknown User", DisplayName(&model.User{}))
	assert.Equal(t, "Unknown User", DisplayName(&model.User{Email: "@example.com"}))
}
