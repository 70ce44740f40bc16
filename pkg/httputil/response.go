package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carepoint/portal-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithCreated sends a 201 response with the created resource.
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

// StatusOf maps an application error code to its HTTP status.
func StatusOf(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrBadRequest:
		return http.StatusBadRequest
	case errors.ErrUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrForbidden:
		return http.StatusForbidden
	case errors.ErrConflict:
		return http.StatusConflict
	case errors.ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithError sends an error response. Messages from AppErrors are
// passed through; anything else is flattened to a generic failure so
// internal detail never leaks past the handler boundary.
func RespondWithError(c *gin.Context, err error) {
	status := StatusOf(err)
	message := "internal server error"
	if appErr, ok := errors.AsAppError(err); ok {
		message = appErr.Message
	}

	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    status,
			Message: message,
		},
	})
}
