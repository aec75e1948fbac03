package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingG4e/web-control-panel/cryptoutils"
	"github.com/kingG4e/web-control-panel/interfaces"
	"github.com/kingG4e/web-control-panel/notify"
	"github.com/kingG4e/web-control-panel/orchestrator"
	"github.com/kingG4e/web-control-panel/storage"
	"github.com/kingG4e/web-control-panel/store"
	"github.com/kingG4e/web-control-panel/vault"
)

type fakeRunner struct {
	mu       sync.Mutex
	outcome  interfaces.Outcome
	err      error
	provided []uint
	started  chan uint
}

func (f *fakeRunner) Provision(_ context.Context, requestID uint) (interfaces.Outcome, error) {
	f.mu.Lock()
	f.provided = append(f.provided, requestID)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- requestID
	}
	return f.outcome, f.err
}

func (f *fakeRunner) Retry(ctx context.Context, requestID uint) (interfaces.Outcome, error) {
	return f.Provision(ctx, requestID)
}

type testEnv struct {
	store   *store.Store
	runner  *fakeRunner
	broker  *notify.Broker
	handler *Handler
	router  chi.Router
}

func newTestEnv(t *testing.T, archive interfaces.ArchiveBackend) *testEnv {
	t.Helper()

	key, err := cryptoutils.NewRandomKey()
	require.NoError(t, err)
	cv, err := vault.New(key)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := store.Open(filepath.Join(t.TempDir(), "panel.db"), cv, logger)
	require.NoError(t, err)

	runner := &fakeRunner{outcome: interfaces.OutcomeFullyProvisioned}
	broker := notify.NewBroker(logger)
	handler := NewHandler(s, runner, broker, archive, logger)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	return &testEnv{store: s, runner: runner, broker: broker, handler: handler, router: router}
}

func (env *testEnv) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) createUsers(t *testing.T) (admin, user *store.User) {
	t.Helper()
	admin, err := env.store.CreateUser("admin", "admin@example.net", "admin-pass", true)
	require.NoError(t, err)
	user, err = env.store.CreateUser("alice", "alice@example.net", "alice-pass", false)
	require.NoError(t, err)
	return admin, user
}

func signupBody(userID uint, domain string) map[string]interface{} {
	return map[string]interface{}{
		"user_id":         userID,
		"domain":          domain,
		"server_password": "s3cret",
		"want_ssl":        true,
	}
}

func TestHandleCreateSignup(t *testing.T) {
	env := newTestEnv(t, nil)
	_, user := env.createUsers(t)

	rec := env.do(t, http.MethodPost, "/api/signup", signupBody(user.ID, "example.com"))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created store.SignupRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "example.com", created.Domain)
	assert.Equal(t, store.SignupPending, created.Status)
	assert.NotEmpty(t, created.PublicID)

	// Credentials never leave the server, encrypted or otherwise.
	assert.NotContains(t, rec.Body.String(), "s3cret")
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestHandleCreateSignupValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	_, user := env.createUsers(t)

	rec := env.do(t, http.MethodPost, "/api/signup", signupBody(user.ID, "not a domain"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/signup", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateSignupDuplicateDomain(t *testing.T) {
	env := newTestEnv(t, nil)
	_, user := env.createUsers(t)

	rec := env.do(t, http.MethodPost, "/api/signup", signupBody(user.ID, "example.com"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/signup", signupBody(user.ID, "example.com"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleGetSignup(t *testing.T) {
	env := newTestEnv(t, nil)
	_, user := env.createUsers(t)

	record, err := env.store.CreateSignupRequest(store.NewSignupRequest{
		UserID: user.ID, Domain: "example.com", ServerPassword: "x",
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/signup/%d", record.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/signup/9999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/signup/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListSignupsByStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	admin, user := env.createUsers(t)

	first, err := env.store.CreateSignupRequest(store.NewSignupRequest{
		UserID: user.ID, Domain: "one.example.com", ServerPassword: "x",
	})
	require.NoError(t, err)
	_, err = env.store.CreateSignupRequest(store.NewSignupRequest{
		UserID: user.ID, Domain: "two.example.com", ServerPassword: "x",
	})
	require.NoError(t, err)
	_, err = env.store.RejectSignup(first.ID, admin.ID, "no")
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/signup?status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed []store.SignupRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "two.example.com", listed[0].Domain)
}

func TestHandleApproveStartsProvisioning(t *testing.T) {
	env := newTestEnv(t, nil)
	admin, user := env.createUsers(t)
	env.runner.started = make(chan uint, 1)

	record, err := env.store.CreateSignupRequest(store.NewSignupRequest{
		UserID: user.ID, Domain: "example.com", ServerPassword: "x",
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/signup/%d/approve", record.ID),
		map[string]interface{}{"admin_id": admin.ID, "comment": "ok"})
	require.Equal(t, http.StatusOK, rec.Code)

	var approved store.SignupRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &approved))
	assert.Equal(t, store.SignupApproved, approved.Status)

	select {
	case id := <-env.runner.started:
		assert.Equal(t, record.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("provisioning was not started")
	}
}

func TestHandleApproveNonPending(t *testing.T) {
	env := newTestEnv(t, nil)
	admin, user := env.createUsers(t)

	record, err := env.store.CreateSignupRequest(store.NewSignupRequest{
		UserID: user.ID, Domain: "example.com", ServerPassword: "x",
	})
	require.NoError(t, err)
	_, err = env.store.RejectSignup(record.ID, admin.ID, "no")
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/signup/%d/approve", record.ID),
		map[string]interface{}{"admin_id": admin.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRetry(t *testing.T) {
	env := newTestEnv(t, nil)
	_, user := env.createUsers(t)

	record, err := env.store.CreateSignupRequest(store.NewSignupRequest{
		UserID: user.ID, Domain: "example.com", ServerPassword: "x",
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/signup/%d/retry", record.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(interfaces.OutcomeFullyProvisioned))

	env.runner.err = orchestrator.ErrAlreadyRunning
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/signup/%d/retry", record.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlePurgeArchivesFirst(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	archiveDir := t.TempDir()
	archive, err := storage.NewFileBackend(archiveDir, logger)
	require.NoError(t, err)

	env := newTestEnv(t, archive)
	admin, user := env.createUsers(t)

	record, err := env.store.CreateSignupRequest(store.NewSignupRequest{
		UserID: user.ID, Domain: "example.com", ServerPassword: "x",
	})
	require.NoError(t, err)

	// Pending requests cannot be purged.
	rec := env.do(t, http.MethodDelete, fmt.Sprintf("/api/signup/%d?admin_id=%d", record.ID, admin.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, err = env.store.RejectSignup(record.ID, admin.ID, "spam")
	require.NoError(t, err)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/signup/%d?admin_id=%d", record.ID, admin.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The record is gone and a backup artifact exists.
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/signup/%d", record.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	backups, err := filepath.Glob(filepath.Join(archiveDir, string(interfaces.BackupArtifact), "*"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestHandlePurgeRequiresAdminID(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodDelete, "/api/signup/1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleNotificationsPollDrainsQueue(t *testing.T) {
	env := newTestEnv(t, nil)

	env.broker.Acquire(7)
	env.broker.Publish(interfaces.Notification{ID: "n1", Title: "first", UserID: 7})
	env.broker.Publish(interfaces.Notification{ID: "n2", Title: "second", UserID: 7})

	rec := env.do(t, http.MethodGet, "/api/notifications?user_id=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var notifications []interfaces.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notifications))
	require.Len(t, notifications, 2)
	assert.Equal(t, "first", notifications[0].Title)
	assert.Equal(t, "second", notifications[1].Title)
}

func TestHandleNotificationsPollRequiresUserID(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/notifications", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleNotificationsClose(t *testing.T) {
	env := newTestEnv(t, nil)

	env.broker.Acquire(7)
	rec := env.do(t, http.MethodDelete, "/api/notifications?user_id=7", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, env.broker.ActiveQueues())
}
