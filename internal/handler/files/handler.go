package files

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carepoint/portal-api/internal/blob"
	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/internal/session"
	apperrors "github.com/carepoint/portal-api/pkg/errors"
	"github.com/carepoint/portal-api/pkg/httputil"
)

// Handler serves uploads and downloads backed by the blob store.
// Downloading needs only a session: object paths circulate through
// documents the caller is already authorized to read, and carry an
// unguessable timestamp prefix. Deleting and listing are restricted to
// the owner, with an admin override.
type Handler struct {
	blobs blob.Store
}

func NewHandler(blobs blob.Store) *Handler {
	return &Handler{blobs: blobs}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	group := r.Group("/files")
	{
		group.POST("", h.Upload)
		group.GET("/*path", h.DownloadOrList)
		group.DELETE("/*path", h.Delete)
	}
}

// Upload stores a multipart file under the caller's own prefix. The
// optional "folder" field groups uploads (attachments, avatars); it
// defaults to "attachments".
func (h *Handler) Upload(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	fileHeader, err := c.FormFile("file")
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("file is required", err))
		return
	}

	folder := c.PostForm("folder")
	if folder == "" {
		folder = "attachments"
	}
	if strings.ContainsAny(folder, "/\\.") {
		httputil.RespondWithError(c, apperrors.BadRequest("folder must be a single path segment", nil))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("could not read upload", err))
		return
	}
	defer f.Close()

	objectPath := blob.ObjectPath(folder, sess.UserID, fileHeader.Filename, time.Now())
	info, err := h.blobs.Save(c.Request.Context(), objectPath, f)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}

	httputil.RespondWithCreated(c, gin.H{
		"path": info.Path,
		"url":  "/api/v1/files/" + info.Path,
		"name": info.Name,
		"size": info.Size,
	})
}

// DownloadOrList streams one object, or lists the caller's files when
// no object path is given.
func (h *Handler) DownloadOrList(c *gin.Context) {
	objectPath := strings.TrimPrefix(c.Param("path"), "/")
	if objectPath == "" {
		h.list(c)
		return
	}

	reader, info, err := h.blobs.Open(c.Request.Context(), objectPath)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			httputil.RespondWithError(c, apperrors.NotFound("file", err))
			return
		}
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}
	defer reader.Close()

	contentType := mime.TypeByExtension(path.Ext(info.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Header("Content-Disposition", `inline; filename="`+info.Name+`"`)
	c.DataFromReader(http.StatusOK, info.Size, contentType, reader, nil)
}

// list returns the caller's uploads. Admins may pass ?prefix= to browse
// any folder.
func (h *Handler) list(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	folder := c.Query("folder")
	if folder == "" {
		folder = "attachments"
	}
	prefix := folder + "/" + sess.UserID + "/"
	if sess.Role == model.RoleAdmin {
		if p := c.Query("prefix"); p != "" {
			prefix = p
		}
	}

	infos, err := h.blobs.List(c.Request.Context(), prefix)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}
	httputil.RespondWithSuccess(c, infos)
}

// Delete removes an object. Only the owner and admins may delete.
func (h *Handler) Delete(c *gin.Context) {
	sess, _ := session.FromContext(c.Request.Context())

	objectPath := strings.TrimPrefix(c.Param("path"), "/")
	if objectPath == "" {
		httputil.RespondWithError(c, apperrors.BadRequest("file path is required", nil))
		return
	}

	if !ownedBy(objectPath, sess.UserID) && sess.Role != model.RoleAdmin {
		httputil.RespondWithError(c, apperrors.Forbidden("you do not have access to this file"))
		return
	}

	if err := h.blobs.Delete(c.Request.Context(), objectPath); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			httputil.RespondWithError(c, apperrors.NotFound("file", err))
			return
		}
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"message": "file deleted"})
}

// ownedBy checks the <folder>/<userID>/<name> convention.
func ownedBy(objectPath, userID string) bool {
	parts := strings.Split(objectPath, "/")
	return len(parts) >= 3 && parts[1] == userID
}
