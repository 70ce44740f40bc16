// Package session carries the authenticated caller through request
// contexts. State is passed explicitly; there is no package-level
// current-user variable.
package session

import (
	"context"

	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/pkg/fallback"
)

// Session identifies the authenticated caller for one request.
type Session struct {
	UserID string
	Email  string
	Role   string
}

type ctxKey struct{}

// WithContext returns a context carrying s.
func WithContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext extracts the session, reporting whether one is present.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}

// ResolveRole picks the effective role: the token claim when valid,
// else the profile document's role field, else the default. Values
// outside the closed role set are skipped, never trusted.
func ResolveRole(claimRole, profileRole string) string {
	return fallback.Resolve(model.DefaultRole,
		validRoleSource(claimRole),
		validRoleSource(profileRole),
	)
}

func validRoleSource(role string) fallback.Source {
	return func() string {
		if model.ValidRole(role) {
			return role
		}
		return ""
	}
}
