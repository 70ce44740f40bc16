package patient

import (
	"github.com/gin-gonic/gin"

	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/internal/service/appointment"
	"github.com/carepoint/portal-api/internal/service/emergency"
	"github.com/carepoint/portal-api/internal/service/note"
	"github.com/carepoint/portal-api/internal/service/schedule"
	"github.com/carepoint/portal-api/internal/service/user"
	"github.com/carepoint/portal-api/internal/service/waitlist"
	"github.com/carepoint/portal-api/internal/session"
	apperrors "github.com/carepoint/portal-api/pkg/errors"
	"github.com/carepoint/portal-api/pkg/httputil"
)

// Handler serves the patient-facing surface. Every operation is scoped
// to the caller's own records; the route group enforces the role.
type Handler struct {
	appointments *appointment.Service
	waitlists    *waitlist.Service
	emergencies  *emergency.Service
	schedules    *schedule.Service
	notes        *note.Service
	users        *user.Service
}

func NewHandler(
	appointments *appointment.Service,
	waitlists *waitlist.Service,
	emergencies *emergency.Service,
	schedules *schedule.Service,
	notes *note.Service,
	users *user.Service,
) *Handler {
	return &Handler{
		appointments: appointments,
		waitlists:    waitlists,
		emergencies:  emergencies,
		schedules:    schedules,
		notes:        notes,
		users:        users,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	group := r.Group("/patient")
	{
		group.GET("/appointments", h.ListAppointments)
		group.POST("/appointments", h.BookAppointment)
		group.PUT("/appointments/:id", h.RescheduleAppointment)
		group.DELETE("/appointments/:id", h.CancelAppointment)

		group.GET("/doctors", h.ListDoctors)
		group.GET("/doctors/:id/slots", h.ListDoctorSlots)

		group.GET("/waitlists", h.ListWaitlists)
		group.POST("/waitlists", h.JoinWaitlist)
		group.DELETE("/waitlists/:id", h.LeaveWaitlist)

		group.GET("/emergencies", h.ListEmergencies)
		group.POST("/emergencies", h.CreateEmergency)

		group.GET("/notes", h.ListNotes)
	}
}

func (h *Handler) ListAppointments(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	appts, err := h.appointments.ForPatient(c.Request.Context(), sess.UserID, c.Query("status"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appts)
}

func (h *Handler) BookAppointment(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	var req model.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	appt, err := h.appointments.Book(c.Request.Context(), sess.UserID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, appt)
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	var req model.RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	appt, err := h.appointments.Reschedule(c.Request.Context(), sess.UserID, c.Param("id"), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	appt, err := h.appointments.Cancel(c.Request.Context(), sess.UserID, c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.users.Doctors(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doctors)
}

// ListDoctorSlots returns a doctor's open slots, optionally narrowed to
// one day. Booked and withdrawn slots are not shown to patients.
func (h *Handler) ListDoctorSlots(c *gin.Context) {
	slots, err := h.schedules.ForDoctor(c.Request.Context(), c.Param("id"), c.Query("day"), true)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, slots)
}

func (h *Handler) ListWaitlists(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	entries, err := h.waitlists.ForPatient(c.Request.Context(), sess.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, entries)
}

func (h *Handler) JoinWaitlist(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	var req model.JoinWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	entry, err := h.waitlists.Join(c.Request.Context(), sess.UserID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, entry)
}

func (h *Handler) LeaveWaitlist(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	if err := h.waitlists.Leave(c.Request.Context(), sess.UserID, c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"message": "left waitlist"})
}

func (h *Handler) ListEmergencies(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	requests, err := h.emergencies.ForPatient(c.Request.Context(), sess.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, requests)
}

func (h *Handler) CreateEmergency(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	var req model.CreateEmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	request, err := h.emergencies.Create(c.Request.Context(), sess.UserID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, request)
}

func (h *Handler) ListNotes(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	notes, err := h.notes.ForPatient(c.Request.Context(), sess.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, notes)
}
