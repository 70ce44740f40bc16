package model

import "errors"

// Auth errors. Authentication failures are surfaced to clients with
// these exact messages; data-layer failures are not.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrAccountDisabled    = errors.New("this account has been deactivated")
)

// Auth token kinds stored in the authTokens collection.
const (
	TokenKindEmailVerification = "email_verification"
	TokenKindPasswordReset     = "password_reset"
	// TokenKindRefreshRevocation denylists a refresh token at logout.
	// Access tokens stay stateless and simply age out.
	TokenKindRefreshRevocation = "refresh_revocation"
)

// AuthToken is a single-use token persisted for email verification and
// password reset flows. ExpiresAt is an RFC 3339 timestamp; expired
// rows are swept by the background worker.
type AuthToken struct {
	Base
	UserID    string `json:"userId"`
	Kind      string `json:"kind"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	Used      bool   `json:"used"`
}

// AuthRequest types
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"displayName" binding:"required"`
	Role        string `json:"role" binding:"omitempty,oneof=patient doctor"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// AuthResponse types
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
}
