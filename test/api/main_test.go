package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/carepoint/portal-api/internal/blob"
	"github.com/carepoint/portal-api/internal/docstore"
	"github.com/carepoint/portal-api/internal/docstore/memory"
	"github.com/carepoint/portal-api/internal/email"
	adminhandler "github.com/carepoint/portal-api/internal/handler/admin"
	authhandler "github.com/carepoint/portal-api/internal/handler/auth"
	doctorhandler "github.com/carepoint/portal-api/internal/handler/doctor"
	fileshandler "github.com/carepoint/portal-api/internal/handler/files"
	healthhandler "github.com/carepoint/portal-api/internal/handler/health"
	patienthandler "github.com/carepoint/portal-api/internal/handler/patient"
	profilehandler "github.com/carepoint/portal-api/internal/handler/profile"
	wshandler "github.com/carepoint/portal-api/internal/handler/ws"
	"github.com/carepoint/portal-api/internal/middleware"
	"github.com/carepoint/portal-api/internal/model"
	"github.com/carepoint/portal-api/internal/query"
	"github.com/carepoint/portal-api/internal/realtime"
	"github.com/carepoint/portal-api/internal/roster"
	"github.com/carepoint/portal-api/internal/router"
	appointmentsvc "github.com/carepoint/portal-api/internal/service/appointment"
	authsvc "github.com/carepoint/portal-api/internal/service/auth"
	emergencysvc "github.com/carepoint/portal-api/internal/service/emergency"
	notesvc "github.com/carepoint/portal-api/internal/service/note"
	reportsvc "github.com/carepoint/portal-api/internal/service/report"
	schedulesvc "github.com/carepoint/portal-api/internal/service/schedule"
	usersvc "github.com/carepoint/portal-api/internal/service/user"
	waitlistsvc "github.com/carepoint/portal-api/internal/service/waitlist"
	"github.com/carepoint/portal-api/internal/subscription"
	"github.com/carepoint/portal-api/pkg/auth"
	"github.com/carepoint/portal-api/pkg/logger"
	"github.com/carepoint/portal-api/pkg/metrics"
	"github.com/carepoint/portal-api/pkg/security"
)

const testPassword = "correct-horse-42"

// testApp runs the whole API in-process against the in-memory store so
// the suite exercises real routing, middleware, handlers and services
// without a database or a listening socket.
type testApp struct {
	engine http.Handler
	store  *memory.Store
	blobs  blob.Store
	mail   *email.Recorder
	hasher security.PasswordHasher
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	store := memory.NewStore()
	m := metrics.New("test")
	composer := query.NewComposer(store, m)

	hub := realtime.NewHub(log, m)
	manager := subscription.NewManager(composer, store, log, m)
	bridge := realtime.NewBridge(ctx, hub, manager, log)
	t.Cleanup(bridge.Close)

	blobs := blob.NewMemoryStore(0)
	mail := email.NewRecorder()
	jwtSvc := auth.NewJWTService(auth.Config{Secret: "api-test-secret"})
	hasher := security.NewBcryptHasher(bcrypt.MinCost)

	rosterSvc := roster.NewService(store, composer, log, m)
	authService := authsvc.NewService(store, jwtSvc, hasher, mail, log)
	userService := usersvc.NewService(store, composer)
	appointmentService := appointmentsvc.NewService(store, composer)
	waitlistService := waitlistsvc.NewService(store, composer)
	emergencyService := emergencysvc.NewService(store, composer)
	scheduleService := schedulesvc.NewService(store, composer)
	noteService := notesvc.NewService(store, composer, nil)
	reportService := reportsvc.NewService(composer)

	handlers := router.Handlers{
		Health: healthhandler.NewHandler(map[string]healthhandler.Pinger{
			"store": func(context.Context) error { return nil },
		}),
		Auth:    authhandler.NewHandler(authService),
		Profile: profilehandler.NewHandler(userService, blobs),
		Patient: patienthandler.NewHandler(
			appointmentService, waitlistService, emergencyService,
			scheduleService, noteService, userService,
		),
		Doctor: doctorhandler.NewHandler(
			rosterSvc, appointmentService, waitlistService,
			emergencyService, scheduleService, noteService,
		),
		Admin: adminhandler.NewHandler(
			userService, appointmentService, waitlistService,
			emergencyService, reportService,
		),
		Files: fileshandler.NewHandler(blobs),
		WS:    wshandler.NewHandler(hub, log),
	}

	r := router.NewRouter(log, middleware.NewAuthMiddleware(jwtSvc, store), handlers, router.Config{})
	r.Setup()

	return &testApp{
		engine: r.Engine(),
		store:  store,
		blobs:  blobs,
		mail:   mail,
		hasher: hasher,
	}
}

// request sends a JSON request to a path under /api/v1.
func (a *testApp) request(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

// upload sends a multipart request with one file part plus extra fields.
func (a *testApp) upload(t *testing.T, path, fileName string, content []byte, fields map[string]string, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// decodeData requires a success envelope and unmarshals its data.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	require.True(t, env.Success, "expected success, body: %s", rec.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
}

// errorMessage requires an error envelope and returns its message.
func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	return env.Error.Message
}

type authSession struct {
	Token        string
	RefreshToken string
	UserID       string
	Email        string
}

// register creates an account through the public endpoint and returns
// its session. role may be empty (patient), "patient" or "doctor".
func (a *testApp) register(t *testing.T, email, displayName, role string) authSession {
	t.Helper()

	rec := a.request(t, http.MethodPost, "/auth/register", map[string]string{
		"email":       email,
		"password":    testPassword,
		"displayName": displayName,
		"role":        role,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, "register failed: %s", rec.Body.String())

	var tokens model.TokenResponse
	decodeData(t, rec, &tokens)
	return authSession{
		Token:        tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		UserID:       tokens.User.ID,
		Email:        email,
	}
}

// login signs an existing account in.
func (a *testApp) login(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	return a.request(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
}

// seedAdmin writes an admin account straight into the store, since
// registration only hands out patient and doctor roles, then signs in.
func (a *testApp) seedAdmin(t *testing.T, email string) authSession {
	t.Helper()

	hash, err := a.hasher.Hash(testPassword)
	require.NoError(t, err)

	fields, err := docstore.Encode(&model.User{
		Email:        email,
		DisplayName:  "Portal Admin",
		Role:         model.RoleAdmin,
		Active:       true,
		PasswordHash: hash,
	})
	require.NoError(t, err)
	_, err = a.store.Create(context.Background(), docstore.CollectionUsers, fields)
	require.NoError(t, err)

	rec := a.login(t, email, testPassword)
	require.Equal(t, http.StatusOK, rec.Code, "admin login failed: %s", rec.Body.String())

	var tokens model.TokenResponse
	decodeData(t, rec, &tokens)
	return authSession{
		Token:        tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		UserID:       tokens.User.ID,
		Email:        email,
	}
}

// mailToken returns the most recent token mailed to addr with the given
// subject, or "".
func mailToken(rec *email.Recorder, subject, addr string) string {
	calls := rec.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].To == addr && calls[i].Subject == subject {
			return calls[i].Token
		}
	}
	return ""
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, emailSeq())
}

var (
	seqMu sync.Mutex
	seq   int
)

func emailSeq() int {
	seqMu.Lock()
	defer seqMu.Unlock()
	seq++
	return seq
}
