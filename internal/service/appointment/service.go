package appointment

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/internal/query"
	apperrors "github.com/carepoint/portal-api/pkg/errors"
)

// Service owns appointment booking and lifecycle. Appointments are
// cancelled by status flip, never deleted, so history survives.
type Service struct {
	store    docstore.Store
	composer *query.Composer
}

func NewService(store docstore.Store, composer *query.Composer) *Service {
	return &Service{store: store, composer: composer}
}

// Book creates a scheduled appointment for patientID. Patient and
// doctor names are denormalized onto the record at booking time.
func (s *Service) Book(ctx context.Context, patientID string, req *model.BookAppointmentRequest) (*model.Appointment, error) {
	patient, err := s.userProfile(ctx, patientID)
	if err != nil {
		return nil, err
	}

	doctor, err := s.userProfile(ctx, req.DoctorID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NotFound("doctor", err)
		}
		return nil, err
	}
	if doctor.Role != model.RoleDoctor || !doctor.Active {
		return nil, apperrors.NotFound("doctor", nil)
	}

	taken, err := s.slotTaken(ctx, req.DoctorID, req.Date, req.Time, "")
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if taken {
		return nil, apperrors.Conflict("this time slot is already booked", nil)
	}

	fields, err := docstore.Encode(&model.Appointment{
		PatientID:   patientID,
		DoctorID:    req.DoctorID,
		PatientName: patient.DisplayName,
		DoctorName:  doctor.DisplayName,
		Date:        req.Date,
		Time:        req.Time,
		Status:      model.AppointmentStatusScheduled,
		Notes:       req.Notes,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	doc, err := s.store.Create(ctx, docstore.CollectionAppointments, fields)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return decode(doc)
}

// ForPatient lists a patient's appointments, oldest first. status is an
// optional refinement.
func (s *Service) ForPatient(ctx context.Context, patientID, status string) ([]model.Appointment, error) {
	return s.list(ctx, query.Equals("patientId", patientID), status)
}

// ForDoctor lists a doctor's appointments, oldest first.
func (s *Service) ForDoctor(ctx context.Context, doctorID, status string) ([]model.Appointment, error) {
	return s.list(ctx, query.Equals("doctorId", doctorID), status)
}

// List returns appointments across all doctors for admin views.
// doctorID and status are optional refinements.
func (s *Service) List(ctx context.Context, doctorID, status string) ([]model.Appointment, error) {
	var where *query.Filter
	if doctorID != "" {
		where = query.Equals("doctorId", doctorID)
	}
	return s.list(ctx, where, status)
}

// Get returns one appointment by id.
func (s *Service) Get(ctx context.Context, id string) (*model.Appointment, error) {
	doc, err := s.store.Get(ctx, docstore.CollectionAppointments, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, apperrors.Internal(err)
	}
	return decode(doc)
}

// Cancel flips a patient's own appointment to cancelled.
func (s *Service) Cancel(ctx context.Context, patientID, id string) (*model.Appointment, error) {
	appt, err := s.ownedByPatient(ctx, patientID, id)
	if err != nil {
		return nil, err
	}

	switch appt.Status {
	case model.AppointmentStatusCancelled:
		return nil, apperrors.Conflict("appointment is already cancelled", nil)
	case model.AppointmentStatusCompleted:
		return nil, apperrors.Conflict("cannot cancel a completed appointment", nil)
	}

	return s.patch(ctx, id, docstore.Document{"status": model.AppointmentStatusCancelled})
}

// Reschedule moves a patient's own appointment to a new slot and resets
// its status to scheduled.
func (s *Service) Reschedule(ctx context.Context, patientID, id string, req *model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	appt, err := s.ownedByPatient(ctx, patientID, id)
	if err != nil {
		return nil, err
	}

	switch appt.Status {
	case model.AppointmentStatusCancelled, model.AppointmentStatusCompleted:
		return nil, apperrors.Conflict("only open appointments can be rescheduled", nil)
	}

	taken, err := s.slotTaken(ctx, appt.DoctorID, req.Date, req.Time, id)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if taken {
		return nil, apperrors.Conflict("this time slot is already booked", nil)
	}

	return s.patch(ctx, id, docstore.Document{
		"date":   req.Date,
		"time":   req.Time,
		"status": model.AppointmentStatusScheduled,
	})
}

// UpdateStatus sets an appointment's status. doctorID scopes the change
// to the owning doctor; pass empty for admin callers.
func (s *Service) UpdateStatus(ctx context.Context, doctorID, id, status string) (*model.Appointment, error) {
	if !model.ValidAppointmentStatus(status) {
		return nil, apperrors.BadRequest("unknown appointment status", nil)
	}

	if _, err := s.ownedByDoctor(ctx, doctorID, id); err != nil {
		return nil, err
	}
	return s.patch(ctx, id, docstore.Document{"status": status})
}

// AppendNotes appends visit notes to a doctor's own appointment.
func (s *Service) AppendNotes(ctx context.Context, doctorID, id, notes string) (*model.Appointment, error) {
	appt, err := s.ownedByDoctor(ctx, doctorID, id)
	if err != nil {
		return nil, err
	}

	combined := notes
	if existing := strings.TrimSpace(appt.Notes); existing != "" {
		combined = existing + "\n" + notes
	}
	return s.patch(ctx, id, docstore.Document{"notes": combined})
}

func (s *Service) list(ctx context.Context, where *query.Filter, status string) ([]model.Appointment, error) {
	q := query.Query{
		Collection: docstore.CollectionAppointments,
		Where:      where,
		OrderBy:    "date",
	}
	if status != "" {
		q.Refine = []query.Filter{{Field: "status", Op: query.OpEq, Value: status}}
	}

	docs, err := s.composer.Run(ctx, q)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	out := make([]model.Appointment, 0, len(docs))
	for _, doc := range docs {
		appt, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *appt)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

// slotTaken reports whether the doctor already has a live appointment at
// date/time. excludeID skips the appointment being rescheduled.
func (s *Service) slotTaken(ctx context.Context, doctorID, date, timeOfDay, excludeID string) (bool, error) {
	docs, err := s.composer.Run(ctx, query.Query{
		Collection: docstore.CollectionAppointments,
		Where:      query.Equals("doctorId", doctorID),
		Refine: []query.Filter{
			{Field: "date", Op: query.OpEq, Value: date},
			{Field: "time", Op: query.OpEq, Value: timeOfDay},
			{Field: "status", Op: query.OpNeq, Value: model.AppointmentStatusCancelled},
		},
	})
	if err != nil {
		return false, err
	}

	for _, doc := range docs {
		if doc.ID() != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) ownedByPatient(ctx context.Context, patientID, id string) (*model.Appointment, error) {
	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != patientID {
		return nil, apperrors.Forbidden("you do not have access to this appointment")
	}
	return appt, nil
}

func (s *Service) ownedByDoctor(ctx context.Context, doctorID, id string) (*model.Appointment, error) {
	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doctorID != "" && appt.DoctorID != doctorID {
		return nil, apperrors.Forbidden("you do not have access to this appointment")
	}
	return appt, nil
}

func (s *Service) userProfile(ctx context.Context, id string) (*model.User, error) {
	doc, err := s.store.Get(ctx, docstore.CollectionUsers, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.NotFound("user", err)
		}
		return nil, apperrors.Internal(err)
	}

	var user model.User
	if err := docstore.Decode(doc, &user); err != nil {
		return nil, apperrors.Internal(err)
	}
	return &user, nil
}

func (s *Service) patch(ctx context.Context, id string, fields docstore.Document) (*model.Appointment, error) {
	doc, err := s.store.Update(ctx, docstore.CollectionAppointments, id, fields)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, apperrors.Internal(err)
	}
	return decode(doc)
}

func decode(doc docstore.Document) (*model.Appointment, error) {
	var appt model.Appointment
	if err := docstore.Decode(doc, &appt); err != nil {
		return nil, apperrors.Internal(err)
	}
	return &appt, nil
}
