package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/email"
	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/pkg/auth"
	apperrors "github.com/carepoint/portal-api/pkg/errors"
	"github.com/carepoint/portal-api/pkg/logger"
	"github.com/carepoint/portal-api/pkg/security"
)

const (
	resetTokenExpiry  = 1 * time.Hour
	verifyTokenExpiry = 24 * time.Hour
)

// Service implements the account flows: registration, login, token
// refresh and revocation, password reset and email verification.
// Credential failures surface their exact message; store failures never
// do.
type Service struct {
	store    docstore.Store
	jwtSvc   auth.JWTService
	hasher   security.PasswordHasher
	emailSvc email.Service
	logger   *logger.Logger
}

func NewService(store docstore.Store, jwtSvc auth.JWTService, hasher security.PasswordHasher, emailSvc email.Service, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		jwtSvc:   jwtSvc,
		hasher:   hasher,
		emailSvc: emailSvc,
		logger:   log.WithComponent("auth"),
	}
}

// Register creates an account and signs it in. The verification email is
// best-effort; a mail failure never fails the registration.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.TokenResponse, error) {
	emailAddr := normalizeEmail(req.Email)

	existing, err := s.findByEmail(ctx, emailAddr)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if existing != nil {
		return nil, apperrors.Conflict(model.ErrEmailTaken.Error(), model.ErrEmailTaken)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooWeak) {
			return nil, apperrors.BadRequest(err.Error(), err)
		}
		return nil, apperrors.Internal(err)
	}

	role := req.Role
	if role == "" {
		role = model.DefaultRole
	}

	fields, err := docstore.Encode(&model.User{
		Email:         emailAddr,
		DisplayName:   req.DisplayName,
		Role:          role,
		Active:        true,
		PasswordHash:  hash,
		EmailVerified: false,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	doc, err := s.store.Create(ctx, docstore.CollectionUsers, fields)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	var user model.User
	if err := docstore.Decode(doc, &user); err != nil {
		return nil, apperrors.Internal(err)
	}

	if err := s.sendVerification(ctx, &user); err != nil {
		s.logger.Error(err, "failed to send verification email", "user_id", user.ID)
	}

	return s.issueTokens(&user)
}

// Login checks credentials and returns a fresh token pair.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.findByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if user == nil {
		return nil, apperrors.Unauthorized(model.ErrInvalidCredentials.Error(), model.ErrInvalidCredentials)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, apperrors.Unauthorized(model.ErrInvalidCredentials.Error(), model.ErrInvalidCredentials)
	}

	if !user.Active {
		return nil, apperrors.Unauthorized(model.ErrAccountDisabled.Error(), model.ErrAccountDisabled)
	}

	return s.issueTokens(user)
}

// RefreshToken exchanges a live refresh token for a new pair. Revoked
// tokens (logout) and disabled accounts are rejected.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.jwtSvc.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token", err)
	}

	revoked, err := s.isRevoked(ctx, refreshToken)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if revoked {
		return nil, apperrors.Unauthorized("invalid refresh token", nil)
	}

	doc, err := s.store.Get(ctx, docstore.CollectionUsers, claims.UserID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid refresh token", err)
		}
		return nil, apperrors.Internal(err)
	}

	var user model.User
	if err := docstore.Decode(doc, &user); err != nil {
		return nil, apperrors.Internal(err)
	}
	if !user.Active {
		return nil, apperrors.Unauthorized(model.ErrAccountDisabled.Error(), model.ErrAccountDisabled)
	}

	return s.issueTokens(&user)
}

// Logout revokes the refresh token so it can no longer mint access
// tokens. Unknown or already-expired tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.jwtSvc.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil
	}

	revoked, err := s.isRevoked(ctx, refreshToken)
	if err != nil {
		return apperrors.Internal(err)
	}
	if revoked {
		return nil
	}

	expiresAt := docstore.Now()
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.UTC().Format(docstore.TimeLayout)
	}

	fields, err := docstore.Encode(&model.AuthToken{
		UserID:    claims.UserID,
		Kind:      model.TokenKindRefreshRevocation,
		Token:     refreshToken,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return apperrors.Internal(err)
	}
	if _, err := s.store.Create(ctx, docstore.CollectionAuthTokens, fields); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// ForgotPassword issues a reset token and mails it. Unknown addresses
// return success so the endpoint cannot be used to enumerate accounts.
func (s *Service) ForgotPassword(ctx context.Context, emailAddr string) error {
	user, err := s.findByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		return apperrors.Internal(err)
	}
	if user == nil {
		return nil
	}

	token, err := s.createToken(ctx, user.ID, model.TokenKindPasswordReset, resetTokenExpiry)
	if err != nil {
		return apperrors.Internal(err)
	}

	if err := s.emailSvc.SendPasswordReset(ctx, user.Email, token); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// ResetPassword consumes a reset token and stores the new hash.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	userID, err := s.consumeToken(ctx, token, model.TokenKindPasswordReset)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooWeak) {
			return apperrors.BadRequest(err.Error(), err)
		}
		return apperrors.Internal(err)
	}

	if _, err := s.store.Update(ctx, docstore.CollectionUsers, userID, docstore.Document{
		"passwordHash": hash,
	}); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// VerifyEmail consumes a verification token and marks the account
// verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.consumeToken(ctx, token, model.TokenKindEmailVerification)
	if err != nil {
		return err
	}

	if _, err := s.store.Update(ctx, docstore.CollectionUsers, userID, docstore.Document{
		"emailVerified": true,
	}); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// ResendVerification issues a fresh verification token. Unknown
// addresses return success, mirroring ForgotPassword.
func (s *Service) ResendVerification(ctx context.Context, emailAddr string) error {
	user, err := s.findByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		return apperrors.Internal(err)
	}
	if user == nil {
		return nil
	}
	if user.EmailVerified {
		return apperrors.Conflict("email already verified", nil)
	}

	return s.sendVerificationOrErr(ctx, user)
}

func (s *Service) sendVerification(ctx context.Context, user *model.User) error {
	token, err := s.createToken(ctx, user.ID, model.TokenKindEmailVerification, verifyTokenExpiry)
	if err != nil {
		return err
	}
	return s.emailSvc.SendVerification(ctx, user.Email, token)
}

func (s *Service) sendVerificationOrErr(ctx context.Context, user *model.User) error {
	if err := s.sendVerification(ctx, user); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

func (s *Service) issueTokens(user *model.User) (*model.TokenResponse, error) {
	accessToken, err := s.jwtSvc.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	refreshToken, err := s.jwtSvc.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return &model.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Public(),
	}, nil
}

// findByEmail returns nil without error when no account matches.
func (s *Service) findByEmail(ctx context.Context, emailAddr string) (*model.User, error) {
	docs, err := s.store.FindEquals(ctx, docstore.CollectionUsers, "email", emailAddr)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}

	var user model.User
	if err := docstore.Decode(docs[0], &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) createToken(ctx context.Context, userID, kind string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	fields, err := docstore.Encode(&model.AuthToken{
		UserID:    userID,
		Kind:      kind,
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(ttl).Format(docstore.TimeLayout),
	})
	if err != nil {
		return "", err
	}
	if _, err := s.store.Create(ctx, docstore.CollectionAuthTokens, fields); err != nil {
		return "", err
	}
	return token, nil
}

// consumeToken resolves a single-use token to its user and marks it
// used. Expiry compares stored timestamps as strings; the fixed-width
// layout keeps that ordering correct.
func (s *Service) consumeToken(ctx context.Context, token, kind string) (string, error) {
	docs, err := s.store.FindEquals(ctx, docstore.CollectionAuthTokens, "token", token)
	if err != nil {
		return "", apperrors.Internal(err)
	}

	now := docstore.Now()
	for _, doc := range docs {
		var t model.AuthToken
		if err := docstore.Decode(doc, &t); err != nil {
			continue
		}
		if t.Kind != kind || t.Used || t.ExpiresAt <= now {
			continue
		}

		if _, err := s.store.Update(ctx, docstore.CollectionAuthTokens, t.ID, docstore.Document{
			"used": true,
		}); err != nil {
			return "", apperrors.Internal(err)
		}
		return t.UserID, nil
	}

	return "", apperrors.BadRequest("invalid or expired token", nil)
}

func (s *Service) isRevoked(ctx context.Context, refreshToken string) (bool, error) {
	docs, err := s.store.FindEquals(ctx, docstore.CollectionAuthTokens, "token", refreshToken)
	if err != nil {
		return false, err
	}
	for _, doc := range docs {
		if doc.Str("kind") == model.TokenKindRefreshRevocation {
			return true, nil
		}
	}
	return false, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
