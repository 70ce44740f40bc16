package admin

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/internal/service/appointment"
	"github.com/carepoint/portal-api/internal/service/emergency"
	"github.com/carepoint/portal-api/internal/service/report"
	"github.com/carepoint/portal-api/internal/service/user"
	"github.com/carepoint/portal-api/internal/service/waitlist"
	apperrors "github.com/carepoint/portal-api/pkg/errors"
	"github.com/carepoint/portal-api/pkg/httputil"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler serves the admin surface: account management and portal-wide
// views across every doctor and patient.
type Handler struct {
	users        *user.Service
	appointments *appointment.Service
	waitlists    *waitlist.Service
	emergencies  *emergency.Service
	reports      *report.Service
}

func NewHandler(
	users *user.Service,
	appointments *appointment.Service,
	waitlists *waitlist.Service,
	emergencies *emergency.Service,
	reports *report.Service,
) *Handler {
	return &Handler{
		users:        users,
		appointments: appointments,
		waitlists:    waitlists,
		emergencies:  emergencies,
		reports:      reports,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	group := r.Group("/admin")
	{
		group.GET("/users", h.ListUsers)
		group.PATCH("/users/:id/role", h.ChangeRole)
		group.PATCH("/users/:id/active", h.SetActive)

		group.GET("/appointments", h.ListAppointments)
		group.GET("/waitlists", h.ListWaitlists)
		group.GET("/emergencies", h.ListEmergencies)

		group.GET("/reports/appointments", h.AppointmentsReport)
	}
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context(), c.Query("role"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, users)
}

func (h *Handler) ChangeRole(c *gin.Context) {
	var req model.ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	u, err := h.users.ChangeRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, u.Public())
}

func (h *Handler) SetActive(c *gin.Context) {
	var req model.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	u, err := h.users.SetActive(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, u.Public())
}

// ListAppointments returns appointments portal-wide, optionally
// narrowed by ?doctorId= and ?status=.
func (h *Handler) ListAppointments(c *gin.Context) {
	appts, err := h.appointments.List(c.Request.Context(), c.Query("doctorId"), c.Query("status"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appts)
}

func (h *Handler) ListWaitlists(c *gin.Context) {
	entries, err := h.waitlists.List(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, entries)
}

func (h *Handler) ListEmergencies(c *gin.Context) {
	requests, err := h.emergencies.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, requests)
}

// AppointmentsReport streams an XLSX export of appointments between
// ?from= and ?to= (inclusive).
func (h *Handler) AppointmentsReport(c *gin.Context) {
	from := c.Query("from")
	to := c.Query("to")

	workbook, err := h.reports.AppointmentsWorkbook(c.Request.Context(), from, to)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(from, to)))
	c.Data(http.StatusOK, xlsxContentType, workbook)
}
