package auth

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/docstore/memory"
	"github.com/carepoint/portal-api/internal/email"
	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/pkg/auth"
	apperrors "github.com/carepoint/portal-api/pkg/errors"
	"github.com/carepoint/portal-api/pkg/logger"
	"github.com/carepoint/portal-api/pkg/security"
)

func newTestService(t *testing.T) (*Service, *memory.Store, *email.Recorder) {
	t.Helper()
	store := memory.NewStore()
	mailer := email.NewRecorder()
	jwtSvc := auth.NewJWTService(auth.Config{Secret: "test-secret"})
	hasher := security.NewBcryptHasher(4)
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})

	return NewService(store, jwtSvc, hasher, mailer, log), store, mailer
}

func register(t *testing.T, svc *Service, emailAddr string) *model.TokenResponse {
	t.Helper()
	resp, err := svc.Register(context.Background(), &model.RegisterRequest{
		Email:       emailAddr,
		Password:    "s3cret-pass",
		DisplayName: "Pat Doe",
	})
	require.NoError(t, err)
	return resp
}

func TestRegister(t *testing.T) {
	svc, store, mailer := newTestService(t)
	ctx := context.Background()

	resp := register(t, svc, "Pat@Example.com")

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "pat@example.com", resp.User.Email)
	assert.Equal(t, model.RolePatient, resp.User.Role)
	assert.True(t, resp.User.Active)
	assert.Empty(t, resp.User.PasswordHash)

	// A verification token was persisted and mailed.
	call, ok := mailer.Last()
	require.True(t, ok)
	assert.Equal(t, "pat@example.com", call.To)
	assert.Equal(t, "verification", call.Subject)
	assert.NotEmpty(t, call.Token)

	docs, err := store.FindEquals(ctx, docstore.CollectionAuthTokens, "token", call.Token)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, model.TokenKindEmailVerification, docs[0].Str("kind"))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)

	register(t, svc, "pat@example.com")

	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Email:       "PAT@example.com",
		Password:    "s3cret-pass",
		DisplayName: "Imposter",
	})
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrConflict, appErr.Code)
	assert.Equal(t, model.ErrEmailTaken.Error(), appErr.Message)
}

func TestRegister_WeakPassword(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Email:       "pat@example.com",
		Password:    "short",
		DisplayName: "Pat",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))
}

func TestRegister_MailFailureDoesNotFailRegistration(t *testing.T) {
	svc, _, mailer := newTestService(t)
	mailer.ShouldFail = true

	resp, err := svc.Register(context.Background(), &model.RegisterRequest{
		Email:       "pat@example.com",
		Password:    "s3cret-pass",
		DisplayName: "Pat",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestLogin(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, "pat@example.com")

	resp, err := svc.Login(context.Background(), &model.LoginRequest{
		Email:    "pat@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "pat@example.com", resp.User.Email)
}

func TestLogin_BadCredentialsShareOneMessage(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, "pat@example.com")

	wrongPass := loginMessage(t, svc, "pat@example.com", "wrong-pass")
	unknown := loginMessage(t, svc, "ghost@example.com", "s3cret-pass")

	assert.Equal(t, model.ErrInvalidCredentials.Error(), wrongPass)
	assert.Equal(t, wrongPass, unknown)
}

// loginMessage returns the surfaced failure message for a bad login.
func loginMessage(t *testing.T, svc *Service, emailAddr, password string) string {
	t.Helper()
	_, err := svc.Login(context.Background(), &model.LoginRequest{Email: emailAddr, Password: password})
	require.Error(t, err)
	return errMessage(err)
}

func errMessage(err error) string {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}

func TestLogin_DisabledAccount(t *testing.T) {
	svc, store, _ := newTestService(t)
	resp := register(t, svc, "pat@example.com")

	_, err := store.Update(context.Background(), docstore.CollectionUsers, resp.User.ID, docstore.Document{
		"active": false,
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), &model.LoginRequest{
		Email:    "pat@example.com",
		Password: "s3cret-pass",
	})
	require.Error(t, err)
	assert.Equal(t, model.ErrAccountDisabled.Error(), errMessage(err))
}

func TestRefreshToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	resp := register(t, svc, "pat@example.com")

	refreshed, err := svc.RefreshToken(context.Background(), resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Equal(t, resp.User.ID, refreshed.User.ID)
}

func TestRefreshToken_Garbage(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.RefreshToken(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))
}

func TestLogout_RevokesRefreshToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	resp := register(t, svc, "pat@example.com")

	require.NoError(t, svc.Logout(context.Background(), resp.RefreshToken))

	_, err := svc.RefreshToken(context.Background(), resp.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))

	// Logging out twice is fine.
	assert.NoError(t, svc.Logout(context.Background(), resp.RefreshToken))
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _, mailer := newTestService(t)
	register(t, svc, "pat@example.com")
	ctx := context.Background()

	require.NoError(t, svc.ForgotPassword(ctx, "pat@example.com"))
	call, ok := mailer.Last()
	require.True(t, ok)
	require.Equal(t, "password-reset", call.Subject)

	require.NoError(t, svc.ResetPassword(ctx, call.Token, "brand-new-pass"))

	// Old password no longer works, new one does.
	_, err := svc.Login(ctx, &model.LoginRequest{Email: "pat@example.com", Password: "s3cret-pass"})
	require.Error(t, err)
	_, err = svc.Login(ctx, &model.LoginRequest{Email: "pat@example.com", Password: "brand-new-pass"})
	require.NoError(t, err)

	// Reset tokens are single use.
	err = svc.ResetPassword(ctx, call.Token, "another-pass-123")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))
}

func TestForgotPassword_UnknownEmailSucceeds(t *testing.T) {
	svc, _, mailer := newTestService(t)

	require.NoError(t, svc.ForgotPassword(context.Background(), "ghost@example.com"))
	_, ok := mailer.Last()
	assert.False(t, ok)
}

func TestVerifyEmailFlow(t *testing.T) {
	svc, store, mailer := newTestService(t)
	resp := register(t, svc, "pat@example.com")
	ctx := context.Background()

	call, ok := mailer.Last()
	require.True(t, ok)

	require.NoError(t, svc.VerifyEmail(ctx, call.Token))

	doc, err := store.Get(ctx, docstore.CollectionUsers, resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, true, doc["emailVerified"])

	// The token cannot verify twice.
	require.Error(t, svc.VerifyEmail(ctx, call.Token))
}

func TestVerifyEmail_ExpiredToken(t *testing.T) {
	svc, store, _ := newTestService(t)
	resp := register(t, svc, "pat@example.com")
	ctx := context.Background()

	expired, err := docstore.Encode(&model.AuthToken{
		UserID:    resp.User.ID,
		Kind:      model.TokenKindEmailVerification,
		Token:     "expired-token",
		ExpiresAt: time.Now().UTC().Add(-time.Hour).Format(docstore.TimeLayout),
	})
	require.NoError(t, err)
	_, err = store.Create(ctx, docstore.CollectionAuthTokens, expired)
	require.NoError(t, err)

	err = svc.VerifyEmail(ctx, "expired-token")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrBadRequest, apperrors.CodeOf(err))
}

func TestResendVerification(t *testing.T) {
	svc, _, mailer := newTestService(t)
	register(t, svc, "pat@example.com")
	ctx := context.Background()

	before := len(mailer.Calls())
	require.NoError(t, svc.ResendVerification(ctx, "pat@example.com"))
	assert.Len(t, mailer.Calls(), before+1)

	// Verified accounts cannot resend.
	call, _ := mailer.Last()
	require.NoError(t, svc.VerifyEmail(ctx, call.Token))
	err := svc.ResendVerification(ctx, "pat@example.com")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrConflict, apperrors.CodeOf(err))
}
