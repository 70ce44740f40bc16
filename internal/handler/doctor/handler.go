package doctor

import (
	"github.com/gin-gonic/gin"

	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/internal/roster"
	"github.com/carepoint/portal-api/internal/service/appointment"
	"github.com/carepoint/portal-api/internal/service/emergency"
	"github.com/carepoint/portal-api/internal/service/note"
	"github.com/carepoint/portal-api/internal/service/schedule"
	"github.com/carepoint/portal-api/internal/service/waitlist"
	"github.com/carepoint/portal-api/internal/session"
	apperrors "github.com/carepoint/portal-api/pkg/errors"
	"github.com/carepoint/portal-api/pkg/httputil"
)

// Handler serves the doctor-facing surface. Operations are scoped to
// the calling doctor's own patients and records.
type Handler struct {
	roster       *roster.Service
	appointments *appointment.Service
	waitlists    *waitlist.Service
	emergencies  *emergency.Service
	schedules    *schedule.Service
	notes        *note.Service
}

func NewHandler(
	rosterSvc *roster.Service,
	appointments *appointment.Service,
	waitlists *waitlist.Service,
	emergencies *emergency.Service,
	schedules *schedule.Service,
	notes *note.Service,
) *Handler {
	return &Handler{
		roster:       rosterSvc,
		appointments: appointments,
		waitlists:    waitlists,
		emergencies:  emergencies,
		schedules:    schedules,
		notes:        notes,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	group := r.Group("/doctor")
	{
		group.GET("/roster", h.Roster)

		group.GET("/appointments", h.ListAppointments)
		group.PATCH("/appointments/:id/status", h.UpdateAppointmentStatus)
		group.PATCH("/appointments/:id/notes", h.AppendAppointmentNotes)

		group.GET("/waitlist", h.Waitlist)
		group.DELETE("/waitlist/:id", h.RemoveFromWaitlist)

		group.GET("/emergencies", h.ListEmergencies)
		group.PATCH("/emergencies/:id", h.ResolveEmergency)

		group.GET("/schedule", h.Schedule)
		group.PUT("/schedule", h.UpsertSlot)
		group.DELETE("/schedule/:id", h.DeleteSlot)

		group.GET("/notes", h.ListNotes)
		group.POST("/notes", h.CreateNote)
		group.PATCH("/notes/:id", h.UpdateNote)
		group.DELETE("/notes/:id", h.DeleteNote)
	}
}

// Roster aggregates every patient connected to the doctor through
// appointments, the waitlist, or emergency requests.
func (h *Handler) Roster(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	entries, err := h.roster.PatientsForDoctor(c.Request.Context(), sess.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, entries)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	appts, err := h.appointments.ForDoctor(c.Request.Context(), sess.UserID, c.Query("status"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appts)
}

func (h *Handler) UpdateAppointmentStatus(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	var req model.UpdateAppointmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	appt, err := h.appointments.UpdateStatus(c.Request.Context(), sess.UserID, c.Param("id"), req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

func (h *Handler) AppendAppointmentNotes(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	var req model.AppendAppointmentNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	appt, err := h.appointments.AppendNotes(c.Request.Context(), sess.UserID, c.Param("id"), req.Notes)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

func (h *Handler) Waitlist(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	entries, err := h.waitlists.ForDoctor(c.Request.Context(), sess.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, entries)
}

// RemoveFromWaitlist deletes an entry from the doctor's queue, typically
// after the patient got a slot.
func (h *Handler) RemoveFromWaitlist(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	if err := h.waitlists.Remove(c.Request.Context(), sess.UserID, c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"message": "removed from waitlist"})
}

func (h *Handler) ListEmergencies(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	requests, err := h.emergencies.ForDoctor(c.Request.Context(), sess.UserID, c.Query("status"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, requests)
}

func (h *Handler) ResolveEmergency(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	var req model.ResolveEmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	request, err := h.emergencies.Resolve(c.Request.Context(), sess.UserID, c.Param("id"), req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, request)
}

// Schedule lists the doctor's own slots, available or not.
func (h *Handler) Schedule(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	slots, err := h.schedules.ForDoctor(c.Request.Context(), sess.UserID, c.Query("day"), false)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, slots)
}

func (h *Handler) UpsertSlot(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	var req model.UpsertScheduleSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	slot, err := h.schedules.Upsert(c.Request.Context(), sess.UserID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, slot)
}

func (h *Handler) DeleteSlot(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	if err := h.schedules.Delete(c.Request.Context(), sess.UserID, c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"message": "slot deleted"})
}

// ListNotes returns notes the doctor authored, optionally narrowed to
// one patient with ?patientId=.
func (h *Handler) ListNotes(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	notes, err := h.notes.ForDoctor(c.Request.Context(), sess.UserID, c.Query("patientId"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, notes)
}

func (h *Handler) CreateNote(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	var req model.CreateMedicalNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	created, err := h.notes.Create(c.Request.Context(), sess.UserID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, created)
}

func (h *Handler) UpdateNote(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	var req model.UpdateMedicalNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	updated, err := h.notes.Update(c.Request.Context(), sess.UserID, c.Param("id"), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, updated)
}

func (h *Handler) DeleteNote(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	if err := h.notes.Delete(c.Request.Context(), sess.UserID, c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"message": "note deleted"})
}
