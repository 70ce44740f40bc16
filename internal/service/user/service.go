package user

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/internal/query"
	apperrors "github.com/carepoint/portal-api/pkg/errors"
	"github.com/carepoint/portal-api/pkg/fallback"
)

// Service owns user profiles beyond the authentication flows: profile
// reads and edits, the doctors directory, and admin role and activation
// management. Accounts are deactivated, never hard-deleted.
type Service struct {
	store    docstore.Store
	composer *query.Composer
}

func NewService(store docstore.Store, composer *query.Composer) *Service {
	return &Service{store: store, composer: composer}
}

// Get returns one profile by ID.
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	doc, err := s.store.Get(ctx, docstore.CollectionUsers, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.NotFound("user", err)
		}
		return nil, apperrors.Internal(err)
	}
	return decode(doc)
}

// UpdateProfile applies self-service edits. Only supplied fields change;
// email and role are not edited here.
func (s *Service) UpdateProfile(ctx context.Context, id string, req *model.UpdateProfileRequest) (*model.User, error) {
	patch := docstore.Document{}
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			return nil, apperrors.BadRequest("displayName cannot be empty", nil)
		}
		patch["displayName"] = name
	}
	if req.PhotoURL != nil {
		patch["photoURL"] = *req.PhotoURL
	}
	if req.Phone != nil {
		patch["phone"] = *req.Phone
	}
	if req.Specialty != nil {
		patch["specialty"] = *req.Specialty
	}
	if req.Settings != nil {
		patch["settings"] = req.Settings
	}
	if len(patch) == 0 {
		return nil, apperrors.BadRequest("nothing to update", nil)
	}

	return s.patch(ctx, id, patch)
}

// SetPhoto records the avatar reference returned by a file upload.
func (s *Service) SetPhoto(ctx context.Context, id, photoURL string) (*model.User, error) {
	return s.patch(ctx, id, docstore.Document{"photoURL": photoURL})
}

// Doctors lists active doctors for booking screens, ordered by name.
func (s *Service) Doctors(ctx context.Context) ([]model.User, error) {
	return s.list(ctx, query.Query{
		Collection: docstore.CollectionUsers,
		Where:      query.Equals("role", model.RoleDoctor),
		Refine:     []query.Filter{{Field: "active", Op: query.OpEq, Value: true}},
	})
}

// List returns profiles for admin views. role optionally narrows to one
// role.
func (s *Service) List(ctx context.Context, role string) ([]model.User, error) {
	q := query.Query{Collection: docstore.CollectionUsers}
	if role != "" {
		if !model.ValidRole(role) {
			return nil, apperrors.BadRequest("unknown role", nil)
		}
		q.Where = query.Equals("role", role)
	}
	return s.list(ctx, q)
}

// ChangeRole assigns a role from the closed set.
func (s *Service) ChangeRole(ctx context.Context, id, role string) (*model.User, error) {
	if !model.ValidRole(role) {
		return nil, apperrors.BadRequest("unknown role", nil)
	}
	return s.patch(ctx, id, docstore.Document{"role": role})
}

// SetActive flips the activation flag. Deactivated accounts cannot sign
// in but their records and history remain.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (*model.User, error) {
	return s.patch(ctx, id, docstore.Document{"active": active})
}

// DisplayName resolves the presentable name for a profile: the stored
// display name, else the local part of the email, else a fixed stand-in.
func DisplayName(u *model.User) string {
	return fallback.First("Unknown User",
		u.DisplayName,
		emailLocalPart(u.Email),
	)
}

func emailLocalPart(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return ""
}

func (s *Service) list(ctx context.Context, q query.Query) ([]model.User, error) {
	docs, err := s.composer.Run(ctx, q)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	out := make([]model.User, 0, len(docs))
	for _, doc := range docs {
		u, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, u.Public())
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Service) patch(ctx context.Context, id string, fields docstore.Document) (*model.User, error) {
	doc, err := s.store.Update(ctx, docstore.CollectionUsers, id, fields)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.NotFound("user", err)
		}
		return nil, apperrors.Internal(err)
	}
	return decode(doc)
}

func decode(doc docstore.Document) (*model.User, error) {
	var u model.User
	if err := docstore.Decode(doc, &u); err != nil {
		return nil, apperrors.Internal(err)
	}
	return &u, nil
}
