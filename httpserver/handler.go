package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kingG4e/web-control-panel/interfaces"
	"github.com/kingG4e/web-control-panel/notify"
	"github.com/kingG4e/web-control-panel/orchestrator"
	"github.com/kingG4e/web-control-panel/store"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// notificationPollTimeout bounds one long-poll cycle. Clients reconnect
// after an empty response.
const notificationPollTimeout = 25 * time.Second

// RequestError provides structured error information for HTTP responses.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error returns the error message from the underlying error.
func (e *RequestError) Error() string {
	return e.Err.Error()
}

// ProvisioningRunner triggers provisioning runs. Implemented by
// orchestrator.Orchestrator.
type ProvisioningRunner interface {
	Provision(ctx context.Context, requestID uint) (interfaces.Outcome, error)
	Retry(ctx context.Context, requestID uint) (interfaces.Outcome, error)
}

// Handler processes the control panel API requests.
type Handler struct {
	store   *store.Store
	runner  ProvisioningRunner
	broker  *notify.Broker
	archive interfaces.ArchiveBackend
	log     *slog.Logger
}

// NewHandler creates the API handler. The archive backend is optional;
// without it purges skip the pre-delete backup.
func NewHandler(s *store.Store, runner ProvisioningRunner, broker *notify.Broker, archive interfaces.ArchiveBackend, log *slog.Logger) *Handler {
	return &Handler{
		store:   s,
		runner:  runner,
		broker:  broker,
		archive: archive,
		log:     log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/signup", h.HandleCreateSignup)
	r.Get("/api/signup", h.HandleListSignups)
	r.Get("/api/signup/{id}", h.HandleGetSignup)
	r.Post("/api/signup/{id}/approve", h.HandleApprove)
	r.Post("/api/signup/{id}/reject", h.HandleReject)
	r.Post("/api/signup/{id}/retry", h.HandleRetry)
	r.Delete("/api/signup/{id}", h.HandlePurge)
	r.Get("/api/notifications", h.HandleNotificationsPoll)
	r.Delete("/api/notifications", h.HandleNotificationsClose)
}

// signupPayload is the request body for POST /api/signup.
type signupPayload struct {
	UserID         uint   `json:"user_id"`
	Domain         string `json:"domain"`
	ServerPassword string `json:"server_password"`
	WantSSL        bool   `json:"want_ssl"`
	WantDNS        bool   `json:"want_dns"`
	StorageQuotaMB int    `json:"storage_quota_mb"`

	Email *struct {
		Username string `json:"username"`
		QuotaMB  int    `json:"quota_mb"`
		Password string `json:"password"`
	} `json:"email,omitempty"`

	Database *struct {
		Name     string `json:"name"`
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"database,omitempty"`
}

// reviewPayload is the request body for approve and reject.
type reviewPayload struct {
	AdminID uint   `json:"admin_id"`
	Comment string `json:"comment"`
}

// HandleCreateSignup processes new hosting account requests.
//
// URL format: POST /api/signup
//
// Response: the created request as JSON, credentials omitted.
func (h *Handler) HandleCreateSignup(w http.ResponseWriter, r *http.Request) {
	var payload signupPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	req := store.NewSignupRequest{
		UserID:         payload.UserID,
		Domain:         payload.Domain,
		ServerPassword: payload.ServerPassword,
		WantSSL:        payload.WantSSL,
		WantDNS:        payload.WantDNS,
		StorageQuotaMB: payload.StorageQuotaMB,
	}
	if payload.Email != nil {
		req.Email = &store.NewEmailFeature{
			Username: payload.Email.Username,
			QuotaMB:  payload.Email.QuotaMB,
			Password: payload.Email.Password,
		}
	}
	if payload.Database != nil {
		req.Database = &store.NewDatabaseFeature{
			Name:     payload.Database.Name,
			Username: payload.Database.Username,
			Password: payload.Database.Password,
		}
	}

	record, err := h.store.CreateSignupRequest(req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.log.Info("Signup request created",
		slog.Uint64("request_id", uint64(record.ID)),
		slog.String("domain", record.Domain))

	h.writeJSON(w, http.StatusCreated, record)
}

// HandleListSignups lists requests, optionally filtered by ?status=.
func (h *Handler) HandleListSignups(w http.ResponseWriter, r *http.Request) {
	status := store.SignupStatus(r.URL.Query().Get("status"))
	records, err := h.store.ListSignupRequests(status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, records)
}

// HandleGetSignup returns one request with its feature sub-records.
func (h *Handler) HandleGetSignup(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	record, err := h.store.GetSignupRequest(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

// HandleApprove transitions a pending request to approved and starts
// provisioning in the background. The response carries the approved
// record; provisioning progress is reported through notifications and
// the audit log.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var payload reviewPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	record, err := h.store.ApproveSignup(id, payload.AdminID, payload.Comment)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.log.Info("Signup request approved",
		slog.Uint64("request_id", uint64(id)),
		slog.Uint64("admin_id", uint64(payload.AdminID)))

	go func() {
		if _, err := h.runner.Provision(context.Background(), id); err != nil {
			h.log.Error("Provisioning run failed to start", "err", err,
				slog.Uint64("request_id", uint64(id)))
		}
	}()

	h.writeJSON(w, http.StatusOK, record)
}

// HandleReject transitions a pending request to rejected.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var payload reviewPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	record, err := h.store.RejectSignup(id, payload.AdminID, payload.Comment)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

// HandleRetry re-runs provisioning for an approved request and waits for
// the outcome. A run already in flight yields 409.
func (h *Handler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	outcome, err := h.runner.Retry(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interfaces.Outcome{"outcome": outcome})
}

// HandlePurge hard-deletes a terminal request. With an archive backend
// configured, a JSON snapshot of the request and its audit trail is
// archived first; a failed backup aborts the purge.
func (h *Handler) HandlePurge(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	adminID, err := strconv.ParseUint(r.URL.Query().Get("admin_id"), 10, 32)
	if err != nil {
		http.Error(w, "Missing or invalid admin_id", http.StatusBadRequest)
		return
	}

	if h.archive != nil {
		if err := h.backupBeforePurge(r.Context(), id); err != nil {
			h.writeError(w, &RequestError{
				StatusCode: http.StatusBadGateway,
				Err:        fmt.Errorf("pre-purge backup failed: %w", err),
			})
			return
		}
	}

	if err := h.store.PurgeSignup(id, uint(adminID)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) backupBeforePurge(ctx context.Context, id uint) error {
	record, err := h.store.GetSignupRequest(id)
	if err != nil {
		return err
	}
	trail, err := h.store.ListProvisionLog(id)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(struct {
		Request *store.SignupRequest `json:"request"`
		Trail   []store.ProvisionLog `json:"trail"`
	}{record, trail})
	if err != nil {
		return err
	}

	artifactID, err := h.archive.Store(ctx, payload, interfaces.BackupArtifact)
	if err != nil {
		return err
	}
	h.log.Info("Request archived before purge",
		slog.Uint64("request_id", uint64(id)),
		slog.String("artifact_id", fmt.Sprintf("%x", artifactID[:8])))
	return nil
}

// HandleNotificationsPoll long-polls the caller's notification queue.
//
// URL format: GET /api/notifications?user_id=N
//
// Response: a JSON array of notifications. Empty after the poll window
// passes without any arriving. The session queue survives between polls
// until DELETE /api/notifications.
func (h *Handler) HandleNotificationsPoll(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseUint(r.URL.Query().Get("user_id"), 10, 32)
	if err != nil {
		http.Error(w, "Missing or invalid user_id", http.StatusBadRequest)
		return
	}

	queue := h.broker.Acquire(uint(userID))

	// Drain whatever is already queued.
	var notifications []interfaces.Notification
	for {
		n, ok := queue.TryDequeue()
		if !ok {
			break
		}
		notifications = append(notifications, n)
	}

	if len(notifications) == 0 {
		ctx, cancel := context.WithTimeout(r.Context(), notificationPollTimeout)
		defer cancel()

		n, err := queue.Dequeue(ctx)
		switch {
		case err == nil:
			notifications = append(notifications, n)
		case errors.Is(err, notify.ErrQueueClosed):
			http.Error(w, "Session closed", http.StatusGone)
			return
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			// Empty poll window.
		default:
			h.writeError(w, err)
			return
		}
	}

	if notifications == nil {
		notifications = []interfaces.Notification{}
	}
	h.writeJSON(w, http.StatusOK, notifications)
}

// HandleNotificationsClose ends the caller's notification session and
// discards its queue.
func (h *Handler) HandleNotificationsClose(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseUint(r.URL.Query().Get("user_id"), 10, 32)
	if err != nil {
		http.Error(w, "Missing or invalid user_id", http.StatusBadRequest)
		return
	}
	h.broker.Remove(uint(userID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, &RequestError{
			StatusCode: http.StatusBadRequest,
			Err:        fmt.Errorf("invalid request id %q", raw),
		}
	}
	return uint(id), nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

// writeError maps the error taxonomy to HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		reqErr        *RequestError
		validationErr *interfaces.ValidationError
		conflictErr   *interfaces.ConflictError
		cryptoErr     *interfaces.CryptoError
		toolErr       *interfaces.ExternalToolError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &reqErr):
		status = reqErr.StatusCode
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &conflictErr):
		status = http.StatusConflict
	case errors.Is(err, interfaces.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, orchestrator.ErrAlreadyRunning):
		status = http.StatusConflict
	case errors.As(err, &cryptoErr):
		status = http.StatusInternalServerError
	case errors.As(err, &toolErr):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "err", err, slog.Int("status", status))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
