package emergency

import (
	"context"
	"errors"
	"sort"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/internal/query"
	apperrors "github.com/carepoint/portal-api/pkg/errors"
)

// Service manages urgent-visit requests. Requests start pending and are
// resolved by the doctor (or an admin) to approved or rejected; resolved
// requests stay on record.
type Service struct {
	store    docstore.Store
	composer *query.Composer
}

func NewService(store docstore.Store, composer *query.Composer) *Service {
	return &Service{store: store, composer: composer}
}

// Create raises a pending request for patientID. One pending request per
// doctor per patient.
func (s *Service) Create(ctx context.Context, patientID string, req *model.CreateEmergencyRequest) (*model.EmergencyRequest, error) {
	patient, err := s.patientName(ctx, patientID)
	if err != nil {
		return nil, err
	}

	pending, err := s.list(ctx, query.Equals("patientId", patientID), model.EmergencyStatusPending)
	if err != nil {
		return nil, err
	}
	for _, r := range pending {
		if r.DoctorID == req.DoctorID {
			return nil, apperrors.Conflict("an emergency request for this doctor is already pending", nil)
		}
	}

	fields, err := docstore.Encode(&model.EmergencyRequest{
		PatientID:   patientID,
		DoctorID:    req.DoctorID,
		PatientName: patient,
		Reason:      req.Reason,
		Status:      model.EmergencyStatusPending,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	doc, err := s.store.Create(ctx, docstore.CollectionEmergencyRequests, fields)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return decode(doc)
}

// Resolve approves or rejects a pending request. doctorID scopes the
// action to the addressed doctor; pass empty for admins.
func (s *Service) Resolve(ctx context.Context, doctorID, id, status string) (*model.EmergencyRequest, error) {
	if status != model.EmergencyStatusApproved && status != model.EmergencyStatusRejected {
		return nil, apperrors.BadRequest("status must be approved or rejected", nil)
	}

	req, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doctorID != "" && req.DoctorID != doctorID {
		return nil, apperrors.Forbidden("you do not have access to this emergency request")
	}
	if req.Status != model.EmergencyStatusPending {
		return nil, apperrors.Conflict("request has already been resolved", nil)
	}

	doc, err := s.store.Update(ctx, docstore.CollectionEmergencyRequests, id, docstore.Document{
		"status": status,
	})
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.NotFound("emergency request", err)
		}
		return nil, apperrors.Internal(err)
	}
	return decode(doc)
}

// ForDoctor lists a doctor's requests, pending first. status is an
// optional refinement.
func (s *Service) ForDoctor(ctx context.Context, doctorID, status string) ([]model.EmergencyRequest, error) {
	return s.list(ctx, query.Equals("doctorId", doctorID), status)
}

// ForPatient lists a patient's own requests.
func (s *Service) ForPatient(ctx context.Context, patientID string) ([]model.EmergencyRequest, error) {
	return s.list(ctx, query.Equals("patientId", patientID), "")
}

// List returns all requests for admin views.
func (s *Service) List(ctx context.Context, status string) ([]model.EmergencyRequest, error) {
	return s.list(ctx, nil, status)
}

func (s *Service) list(ctx context.Context, where *query.Filter, status string) ([]model.EmergencyRequest, error) {
	q := query.Query{
		Collection: docstore.CollectionEmergencyRequests,
		Where:      where,
		OrderBy:    "createdAt",
	}
	if status != "" {
		q.Refine = []query.Filter{{Field: "status", Op: query.OpEq, Value: status}}
	}

	docs, err := s.composer.Run(ctx, q)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	out := make([]model.EmergencyRequest, 0, len(docs))
	for _, doc := range docs {
		req, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}

	// Pending requests surface before resolved ones, newest first within
	// each group.
	rank := map[string]int{
		model.EmergencyStatusPending:  0,
		model.EmergencyStatusApproved: 1,
		model.EmergencyStatusRejected: 1,
	}
	sort.SliceStable(out, func(i, j int) bool {
		if rank[out[i].Status] != rank[out[j].Status] {
			return rank[out[i].Status] < rank[out[j].Status]
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Service) get(ctx context.Context, id string) (*model.EmergencyRequest, error) {
	doc, err := s.store.Get(ctx, docstore.CollectionEmergencyRequests, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.NotFound("emergency request", err)
		}
		return nil, apperrors.Internal(err)
	}
	return decode(doc)
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

func decode(doc docstore.Document) (*model.EmergencyRequest, error) {
	var req model.EmergencyRequest
	if err := docstore.Decode(doc, &req); err != nil {
		return nil, apperrors.Internal(err)
	}
	return &req, nil
}
