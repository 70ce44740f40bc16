package waitlist

import (
	"context"
	"errors"
	"sort"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/internal/query"
	apperrors "github.com/carepoint/portal-api/pkg/errors"
)

// Service manages waitlist entries. Entries are deleted on fulfillment
// or withdrawal rather than status-flipped; the queue only ever holds
// waiting patients.
type Service struct {
	store    docstore.Store
	composer *query.Composer
}

func NewService(store docstore.Store, composer *query.Composer) *Service {
	return &Service{store: store, composer: composer}
}

// Join queues patientID for a doctor. The position is assigned from the
// current queue length; a patient can hold one spot per doctor.
func (s *Service) Join(ctx context.Context, patientID string, req *model.JoinWaitlistRequest) (*model.WaitlistEntry, error) {
	patient, err := s.patientName(ctx, patientID)
	if err != nil {
		return nil, err
	}

	existing, err := s.ForDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	for _, e := range existing {
		if e.PatientID == patientID {
			return nil, apperrors.Conflict("already on this doctor's waitlist", nil)
		}
	}

	fields, err := docstore.Encode(&model.WaitlistEntry{
		PatientID:   patientID,
		DoctorID:    req.DoctorID,
		PatientName: patient,
		Urgency:     req.Urgency,
		RequestDate: req.RequestDate,
		Position:    len(existing) + 1,
		Reason:      req.Reason,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	doc, err := s.store.Create(ctx, docstore.CollectionWaitlists, fields)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return decode(doc)
}

// Leave withdraws the patient's own entry.
func (s *Service) Leave(ctx context.Context, patientID, id string) error {
	entry, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if entry.PatientID != patientID {
		return apperrors.Forbidden("you do not have access to this waitlist entry")
	}
	return s.remove(ctx, id)
}

// Remove deletes an entry from a doctor's queue, typically on
// fulfillment. doctorID scopes the removal; pass empty for admins.
func (s *Service) Remove(ctx context.Context, doctorID, id string) error {
	entry, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if doctorID != "" && entry.DoctorID != doctorID {
		return apperrors.Forbidden("you do not have access to this waitlist entry")
	}
	return s.remove(ctx, id)
}

// ForDoctor returns a doctor's queue in position order.
func (s *Service) ForDoctor(ctx context.Context, doctorID string) ([]model.WaitlistEntry, error) {
	return s.list(ctx, query.Equals("doctorId", doctorID))
}

// ForPatient returns every queue the patient is waiting in.
func (s *Service) ForPatient(ctx context.Context, patientID string) ([]model.WaitlistEntry, error) {
	return s.list(ctx, query.Equals("patientId", patientID))
}

// List returns all entries for admin views.
func (s *Service) List(ctx context.Context) ([]model.WaitlistEntry, error) {
	return s.list(ctx, nil)
}

func (s *Service) list(ctx context.Context, where *query.Filter) ([]model.WaitlistEntry, error) {
	docs, err := s.composer.Run(ctx, query.Query{
		Collection: docstore.CollectionWaitlists,
		Where:      where,
		OrderBy:    "position",
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	out := make([]model.WaitlistEntry, 0, len(docs))
	for _, doc := range docs {
		entry, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DoctorID != out[j].DoctorID {
			return out[i].DoctorID < out[j].DoctorID
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (s *Service) get(ctx context.Context, id string) (*model.WaitlistEntry, error) {
	doc, err := s.store.Get(ctx, docstore.CollectionWaitlists, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.NotFound("waitlist entry", err)
		}
		return nil, apperrors.Internal(err)
	}
	return decode(doc)
}

func (s *Service) remove(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, docstore.CollectionWaitlists, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apperrors.NotFound("waitlist entry", err)
		}
		return apperrors.Internal(err)
	}
	return nil
}

func (s *Service) patientName(ctx context.Context, patientID string) (string, error) {
	doc, err := s.store.Get(ctx, docstore.CollectionUsers, patientID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return "", apperrors.NotFound("user", err)
		}
		return "", apperrors.Internal(err)
	}
	return doc.Str("displayName"), nil
}

func decode(doc docstore.Document) (*model.WaitlistEntry, error) {
	var entry model.WaitlistEntry
	if err := docstore.Decode(doc, &entry); err != nil {
		return nil, apperrors.Internal(err)
	}
	return &entry, nil
}
