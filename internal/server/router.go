package server

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"

	accountservice "zetsuserv/internal/account/service"
	"zetsuserv/internal/devcode"
	orderservice "zetsuserv/internal/order/service"
	"zetsuserv/internal/security"
	"zetsuserv/internal/telemetry"
)

// Deps holds everything the HTTP server needs. DevCodes must be nil outside
// dev environments; leaving it nil removes the /api/dev/code route entirely.
type Deps struct {
	Accounts *accountservice.AccountService
	Tracking *orderservice.TrackingService
	Grants   *security.GrantProvider
	DB       *sql.DB
	Emitter  telemetry.EventEmitter
	DevCodes devcode.Store
}

// Server is the HTTP layer over the account and tracking services.
type Server struct {
	accounts *accountservice.AccountService
	tracking *orderservice.TrackingService
	grants   *security.GrantProvider
	db       *sql.DB
	emitter  telemetry.EventEmitter
	devCodes devcode.Store
}

// New returns a Server over the given dependencies.
func New(d Deps) *Server {
	return &Server{
		accounts: d.Accounts,
		tracking: d.Tracking,
		grants:   d.Grants,
		db:       d.DB,
		emitter:  d.Emitter,
		devCodes: d.DevCodes,
	}
}

// Router builds the route table with session and telemetry middleware applied
// to every route. The health check is excluded from telemetry.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(WithSession)
	r.Use(RequestTelemetry(s.emitter, map[string]bool{"/api/healthz": true}))

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	api.HandleFunc("/orders", s.handleCreateOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/regenerate-key", s.handleRegenerateKey).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/progress", s.handleProgress).Methods(http.MethodPost)

	api.HandleFunc("/track/auth", s.handleTrackAuth).Methods(http.MethodPost)
	api.HandleFunc("/track/{code}", s.handleGetTracking).Methods(http.MethodGet)

	api.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/verify-email", s.handleVerifyEmail).Methods(http.MethodPost)
	api.HandleFunc("/verify-email/resend", s.handleResendVerification).Methods(http.MethodPost)

	if s.devCodes != nil {
		api.HandleFunc("/dev/code", s.handleDevCode).Methods(http.MethodGet)
	}

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDevCode exposes the last plaintext code or key issued to a
// destination. Dev-only; the route is not registered when DevCodes is nil.
func (s *Server) handleDevCode(w http.ResponseWriter, r *http.Request) {
	destination := r.URL.Query().Get("destination")
	if destination == "" {
		writeError(w, http.StatusBadRequest, "destination query parameter is required")
		return
	}
	code, ok := s.devCodes.Get(r.Context(), destination)
	if !ok {
		writeError(w, http.StatusNotFound, "no code for destination")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"destination": destination, "code": code})
}
