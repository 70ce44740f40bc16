package schedule

import (
	"context"
	"errors"
	"sort"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/internal/query"
	apperrors "github.com/carepoint/portal-api/pkg/errors"
)

// Service manages doctors' bookable windows. Booking screens consume the
// slots read-only; only the owning doctor mutates them.
type Service struct {
	store    docstore.Store
	composer *query.Composer
}

func NewService(store docstore.Store, composer *query.Composer) *Service {
	return &Service{store: store, composer: composer}
}

// Upsert creates a slot, or updates it when the doctor already has one
// at the same day and start time.
func (s *Service) Upsert(ctx context.Context, doctorID string, req *model.UpsertScheduleSlotRequest) (*model.ScheduleSlot, error) {
	if req.EndTime <= req.StartTime {
		return nil, apperrors.BadRequest("endTime must be after startTime", nil)
	}

	existing, err := s.find(ctx, doctorID, req.Day, req.StartTime)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		doc, err := s.store.Update(ctx, docstore.CollectionScheduleSlots, existing.ID, docstore.Document{
			"endTime":   req.EndTime,
			"available": *req.Available,
		})
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		return decode(doc)
	}

	fields, err := docstore.Encode(&model.ScheduleSlot{
		DoctorID:  doctorID,
		Day:       req.Day,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Available: *req.Available,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	doc, err := s.store.Create(ctx, docstore.CollectionScheduleSlots, fields)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return decode(doc)
}

// Delete removes a doctor's own slot.
func (s *Service) Delete(ctx context.Context, doctorID, id string) error {
	doc, err := s.store.Get(ctx, docstore.CollectionScheduleSlots, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apperrors.NotFound("schedule slot", err)
		}
		return apperrors.Internal(err)
	}
	if doctorID != "" && doc.Str("doctorId") != doctorID {
		return apperrors.Forbidden("you do not have access to this schedule slot")
	}

	if err := s.store.Delete(ctx, docstore.CollectionScheduleSlots, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return apperrors.NotFound("schedule slot", err)
		}
		return apperrors.Internal(err)
	}
	return nil
}

// ForDoctor lists a doctor's slots ordered by day and start time. day
// optionally narrows to one date; availableOnly hides blocked slots for
// booking screens.
func (s *Service) ForDoctor(ctx context.Context, doctorID, day string, availableOnly bool) ([]model.ScheduleSlot, error) {
	q := query.Query{
		Collection: docstore.CollectionScheduleSlots,
		Where:      query.Equals("doctorId", doctorID),
		OrderBy:    "day",
	}
	if day != "" {
		q.Refine = append(q.Refine, query.Filter{Field: "day", Op: query.OpEq, Value: day})
	}
	if availableOnly {
		q.Refine = append(q.Refine, query.Filter{Field: "available", Op: query.OpEq, Value: true})
	}

	docs, err := s.composer.Run(ctx, q)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	out := make([]model.ScheduleSlot, 0, len(docs))
	for _, doc := range docs {
		slot, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *slot)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (s *Service) find(ctx context.Context, doctorID, day, startTime string) (*model.ScheduleSlot, error) {
	docs, err := s.composer.Run(ctx, query.Query{
		Collection: docstore.CollectionScheduleSlots,
		Where:      query.Equals("doctorId", doctorID),
		Refine: []query.Filter{
			{Field: "day", Op: query.OpEq, Value: day},
			{Field: "startTime", Op: query.OpEq, Value: startTime},
		},
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return decode(docs[0])
}

func decode(doc docstore.Document) (*model.ScheduleSlot, error) {
	var slot model.ScheduleSlot
	if err := docstore.Decode(doc, &slot); err != nil {
		return nil, apperrors.Internal(err)
	}
	return &slot, nil
}
