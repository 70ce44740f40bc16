package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/session"
	"github.com/carepoint/portal-api/pkg/auth"
	apperrors "github.com/carepoint/portal-api/pkg/errors"
	"github.com/carepoint/portal-api/pkg/httputil"
)

// AuthMiddleware authenticates requests and enforces role access. The
// effective role is resolved server side on every request; clients never
// pick their own role.
type AuthMiddleware struct {
	tokens auth.JWTService
	store  docstore.Store
}

func NewAuthMiddleware(tokens auth.JWTService, store docstore.Store) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, store: store}
}

// Authenticate validates the bearer token and stores the caller's
// session in the request context. The role comes from the token claim,
// falling back to the profile document for tokens minted before roles
// were stamped in. Deactivated accounts are rejected outright.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c, "invalid authorization format")
			return
		}

		claims, err := m.tokens.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}

		profileRole := ""
		doc, err := m.store.Get(c.Request.Context(), docstore.CollectionUsers, claims.UserID)
		if err == nil {
			if active, ok := doc["active"].(bool); ok && !active {
				abortUnauthorized(c, "account is deactivated")
				return
			}
			profileRole = doc.Str("role")
		}

		sess := session.Session{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   session.ResolveRole(claims.Role, profileRole),
		}
		c.Request = c.Request.WithContext(session.WithContext(c.Request.Context(), sess))
		c.Next()
	}
}

// RequireRole allows only callers whose resolved role is in the list.
// Admin access to non-admin groups must be granted explicitly by
// listing the role.
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := session.FromContext(c.Request.Context())
		if !ok {
			abortUnauthorized(c, "not authenticated")
			return
		}
		for _, role := range roles {
			if sess.Role == role {
				c.Next()
				return
			}
		}
		httputil.RespondWithError(c, apperrors.Forbidden("insufficient role"))
		c.Abort()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	httputil.RespondWithError(c, apperrors.Unauthorized(message, nil))
	c.Abort()
}
