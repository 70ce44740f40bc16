package note

import (
	"context"
	"errors"
	"sort"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/internal/query"
	apperrors "github.com/carepoint/portal-api/pkg/errors"
	"github.com/carepoint/portal-api/pkg/security"
)

// Service owns doctor-authored medical notes. Patients read their own
// notes; only the authoring doctor edits or removes one. Note bodies are
// encrypted at rest when a cipher is configured.
type Service struct {
	store    docstore.Store
	composer *query.Composer
	cipher   *security.FieldCipher
}

// NewService builds the note service. cipher may be nil, in which case
// note bodies are stored as written.
func NewService(store docstore.Store, composer *query.Composer, cipher *security.FieldCipher) *Service {
	return &Service{store: store, composer: composer, cipher: cipher}
}

// Create writes a note authored by doctorID.
func (s *Service) Create(ctx context.Context, doctorID string, req *model.CreateMedicalNoteRequest) (*model.MedicalNote, error) {
	content, err := s.cipher.Seal(req.Content)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	fields, err := docstore.Encode(&model.MedicalNote{
		PatientID:     req.PatientID,
		DoctorID:      doctorID,
		AppointmentID: req.AppointmentID,
		Title:         req.Title,
		Content:       content,
		AttachmentURL: req.AttachmentURL,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	doc, err := s.store.Create(ctx, docstore.CollectionMedicalNotes, fields)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return s.decode(doc)
}

// Update edits an authored note. Only supplied fields change.
func (s *Service) Update(ctx context.Context, doctorID, id string, req *model.UpdateMedicalNoteRequest) (*model.MedicalNote, error) {
	if _, err := s.authored(ctx, doctorID, id); err != nil {
		return nil, err
	}

	patch := docstore.Document{}
	if req.Title != nil {
		patch["title"] = *req.Title
	}
	if req.Content != nil {
		content, err := s.cipher.Seal(*req.Content)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		patch["content"] = content
	}
	if req.AttachmentURL != nil {
		patch["attachmentUrl"] = *req.AttachmentURL
	}
	if len(patch) == 0 {
		return nil, apperrors.BadRequest("nothing to update", nil)
	}

	doc, err := s.store.Update(ctx, docstore.CollectionMedicalNotes, id, patch)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.NotFound("medical note", err)
		}
		return nil, apperrors.Internal(err)
	}
	return s.decode(doc)
}

// Delete removes an authored note.
func (s *Service) Delete(ctx context.Context, doctorID, id string) error {
	if _, err := s.authored(ctx, doctorID, id); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, docstore.CollectionMedicalNotes, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apperrors.NotFound("medical note", err)
		}
		return apperrors.Internal(err)
	}
	return nil
}

// Get returns one note, visible to its patient, its author, and admins.
func (s *Service) Get(ctx context.Context, id string) (*model.MedicalNote, error) {
	doc, err := s.store.Get(ctx, docstore.CollectionMedicalNotes, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.NotFound("medical note", err)
		}
		return nil, apperrors.Internal(err)
	}
	return s.decode(doc)
}

// ForPatient lists a patient's notes, newest first.
func (s *Service) ForPatient(ctx context.Context, patientID string) ([]model.MedicalNote, error) {
	return s.list(ctx, query.Equals("patientId", patientID), "")
}

// ForDoctor lists notes authored by doctorID, optionally narrowed to one
// patient.
func (s *Service) ForDoctor(ctx context.Context, doctorID, patientID string) ([]model.MedicalNote, error) {
	return s.list(ctx, query.Equals("doctorId", doctorID), patientID)
}

func (s *Service) list(ctx context.Context, where *query.Filter, patientID string) ([]model.MedicalNote, error) {
	q := query.Query{
		Collection: docstore.CollectionMedicalNotes,
		Where:      where,
		OrderBy:    "createdAt",
		Descending: true,
	}
	if patientID != "" {
		q.Refine = []query.Filter{{Field: "patientId", Op: query.OpEq, Value: patientID}}
	}

	docs, err := s.composer.Run(ctx, q)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	out := make([]model.MedicalNote, 0, len(docs))
	for _, doc := range docs {
		note, err := s.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *note)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Service) authored(ctx context.Context, doctorID, id string) (*model.MedicalNote, error) {
	note, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doctorID != "" && note.DoctorID != doctorID {
		return nil, apperrors.Forbidden("you do not have access to this medical note")
	}
	return note, nil
}

func (s *Service) decode(doc docstore.Document) (*model.MedicalNote, error) {
	var note model.MedicalNote
	if err := docstore.Decode(doc, &note); err != nil {
		return nil, apperrors.Internal(err)
	}

	content, err := s.cipher.Open(note.Content)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	note.Content = content
	return &note, nil
}
