package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"EYE_MONITOR/go-backend/internal/models"
	"EYE_MONITOR/go-backend/internal/repository"
	"EYE_MONITOR/go-backend/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

const Version = "1.0.0"

// LatestResult exposes the most recent frame result of the running session.
type LatestResult interface {
	Latest() (models.FrameResult, bool)
}

type SessionStore interface {
	ListSessions(ctx context.Context, limit int) ([]models.Session, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListEvents(ctx context.Context, sessionID string) ([]models.Event, error)
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// API serves the dashboard endpoints. Store, Landmarks and DBPing may be nil.
type API struct {
	Hub       *Hub
	Latest    LatestResult
	Store     SessionStore
	Landmarks HealthChecker
	DBPing    func(ctx context.Context) bool
	Metrics   *services.Metrics

	// PasswordHash is a bcrypt hash guarding everything except /api/health.
	PasswordHash string

	started time.Time
}

func NewRouter(api *API) *mux.Router {
	if api.Metrics == nil {
		api.Metrics = services.GetMetrics()
	}
	api.started = time.Now()

	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/api/health", api.handleHealth).Methods(http.MethodGet)

	protected := r.NewRoute().Subrouter()
	protected.Use(api.basicAuth)
	protected.HandleFunc("/api/metrics", api.handleMetrics).Methods(http.MethodGet)
	protected.HandleFunc("/api/session/latest", api.handleLatest).Methods(http.MethodGet)
	protected.HandleFunc("/api/sessions", api.handleSessions).Methods(http.MethodGet)
	protected.HandleFunc("/api/sessions/{id}/events", api.handleEvents).Methods(http.MethodGet)
	if api.Hub != nil {
		protected.HandleFunc("/ws", api.Hub.ServeWS)
	}

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		next.ServeHTTP(w, r)
	})
}

func (a *API) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.PasswordHash == "" {
			next.ServeHTTP(w, r)
			return
		}

		_, password, ok := r.BasicAuth()
		if !ok || bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="drowsiness-monitor"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{
		Error:     msg,
		Timestamp: time.Now().Unix(),
	})
}

func (a *API) clientCount() int {
	if a.Hub == nil {
		return 0
	}
	return a.Hub.ClientCount()
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatus{
		Status:        "healthy",
		ActiveClients: a.clientCount(),
		UptimeSec:     int64(time.Since(a.started).Seconds()),
		Version:       Version,
	}
	if a.Landmarks != nil {
		status.LandmarkService = a.Landmarks.HealthCheck(r.Context())
		if !status.LandmarkService {
			status.Status = "degraded"
		}
	}
	if a.DBPing != nil {
		status.Database = a.DBPing(r.Context())
		if !status.Database {
			status.Status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, status)
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	payload := a.Metrics.Snapshot()
	payload["active_clients"] = a.clientCount()
	payload["system_uptime_sec"] = int64(time.Since(a.started).Seconds())
	if a.Hub != nil {
		payload["dropped_results"] = a.Hub.Dropped()
	}
	payload["timestamp"] = time.Now().Format(time.RFC3339)

	writeJSON(w, http.StatusOK, payload)
}

func (a *API) handleLatest(w http.ResponseWriter, r *http.Request) {
	if a.Latest == nil {
		writeError(w, http.StatusServiceUnavailable, "no session running")
		return
	}
	result, ok := a.Latest.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no frame processed yet")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "session persistence disabled")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	sessions, err := a.Store.ListSessions(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "session persistence disabled")
		return
	}

	id := mux.Vars(r)["id"]
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	if _, err := a.Store.GetSession(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		slog.Error("failed to get session", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	events, err := a.Store.ListEvents(r.Context(), id)
	if err != nil {
		slog.Error("failed to list events", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, events)
}
