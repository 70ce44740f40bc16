package profile

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carepoint/portal-api/internal/blob"
	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/internal/service/user"
	"github.com/carepoint/portal-api/internal/session"
	apperrors "github.com/carepoint/portal-api/pkg/errors"
	"github.com/carepoint/portal-api/pkg/httputil"
)

// Handler serves the caller's own profile regardless of role.
type Handler struct {
	users *user.Service
	blobs blob.Store
}

func NewHandler(users *user.Service, blobs blob.Store) *Handler {
	return &Handler{users: users, blobs: blobs}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	me := r.Group("/me")
	{
		me.GET("", h.Get)
		me.PATCH("", h.Update)
		me.POST("/avatar", h.UploadAvatar)
	}
}

func (h *Handler) Get(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	u, err := h.users.Get(c.Request.Context(), sess.UserID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, u.Public())
}

func (h *Handler) Update(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	var req model.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	u, err := h.users.UpdateProfile(c.Request.Context(), sess.UserID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, u.Public())
}

// UploadAvatar stores the picture in the blob store and points the
// profile's photoURL at its download path.
func (h *Handler) UploadAvatar(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	fileHeader, err := c.FormFile("file")
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("file is required", err))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("could not read upload", err))
		return
	}
	defer f.Close()

	path := blob.ObjectPath("avatars", sess.UserID, fileHeader.Filename, time.Now())
	if _, err := h.blobs.Save(c.Request.Context(), path, f); err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}

	u, err := h.users.SetPhoto(c.Request.Context(), sess.UserID, "/api/v1/files/"+path)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, u.Public())
}
