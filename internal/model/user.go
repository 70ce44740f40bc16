package model

// User role constants
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
	RoleAdmin   = "admin"
)

// DefaultRole is assumed when neither the session nor the profile
// document carries a role.
const DefaultRole = RolePatient

// ValidRole reports whether role belongs to the closed role set.
func ValidRole(role string) bool {
	switch role {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// User represents a portal account profile. Accounts are never
// hard-deleted; admins deactivate them instead.
//
// PasswordHash lives in the stored document (documents serialize via
// JSON), so handlers must return Public() copies, never the raw record.
type User struct {
	Base
	UID           string  `json:"uid,omitempty"`
	Email         string  `json:"email"`
	DisplayName   string  `json:"displayName"`
	PhotoURL      string  `json:"photoURL,omitempty"`
	Role          string  `json:"role"`
	Active        bool    `json:"active"`
	Specialty     string  `json:"specialty,omitempty"`
	Phone         string  `json:"phone,omitempty"`
	PasswordHash  string  `json:"passwordHash,omitempty"`
	EmailVerified bool    `json:"emailVerified"`
	Settings      JSONMap `json:"settings,omitempty"`
}

// Public returns a copy safe to serialize in API responses.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// UpdateProfileRequest represents self-service profile edits.
type UpdateProfileRequest struct {
	DisplayName *string `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
	Phone       *string `json:"phone"`
	Specialty   *string `json:"specialty"`
	Settings    JSONMap `json:"settings"`
}

// ChangeRoleRequest represents an admin role assignment.
type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=patient doctor admin"`
}

// SetActiveRequest represents an admin activating or deactivating an
// account.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}
