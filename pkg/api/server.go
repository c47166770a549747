package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"

	"github.com/installkit/installkit/pkg/account"
	"github.com/installkit/installkit/pkg/installer"
	"github.com/installkit/installkit/pkg/mailer"
	"github.com/installkit/installkit/pkg/setup"
	"github.com/installkit/installkit/pkg/stores"
)

// Source returns the installer serving the current request. It is called
// per request so a reloaded definition takes effect without a restart.
type Source func() *installer.Installer

// Server routes installer API requests.
type Server struct {
	source  Source
	router  *mux.Router
	logger  zerolog.Logger
	metrics http.Handler
}

// NewServer builds the router under prefix + "/api". A nil metrics handler
// disables GET /metrics.
func NewServer(prefix string, source Source, metrics http.Handler, logger zerolog.Logger) *Server {
	s := &Server{
		source:  source,
		router:  mux.NewRouter(),
		logger:  logger.With().Str("component", "api").Logger(),
		metrics: metrics,
	}
	s.routes("/" + strings.Trim(prefix, "/"))
	return s
}

func (s *Server) routes(prefix string) {
	s.router.Use(s.recoverMiddleware, s.loggingMiddleware)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix(strings.TrimRight(prefix, "/") + "/api").Subrouter()
	api.HandleFunc("/system-check", s.handleSystemCheck).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/fields", s.handleFields).Methods(http.MethodGet)

	mutating := api.NewRoute().Subrouter()
	mutating.Use(s.installedGate)
	mutating.HandleFunc("/database-config", s.handleDatabaseConfig).Methods(http.MethodPost)
	mutating.HandleFunc("/install-tables", s.handleInstallTables).Methods(http.MethodPost)
	mutating.HandleFunc("/create-admin", s.handleCreateAdmin).Methods(http.MethodPost)
	mutating.HandleFunc("/smtp-config", s.handleSMTPConfig).Methods(http.MethodPost)
	mutating.HandleFunc("/app-config", s.handleAppConfig).Methods(http.MethodPost)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// StatusCode maps a result to its HTTP status.
func StatusCode(res setup.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.Outcome {
	case setup.OutcomeValidation, setup.OutcomePrecondition, setup.OutcomeConnectivity:
		return http.StatusBadRequest
	case setup.OutcomeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleSystemCheck(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.source().CheckEnvironment(r.Context()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.source().Status(r.Context()))
}

func (s *Server) handleFields(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, s.source().AccountFields())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter stores.Filter
	if step := q.Get("step"); step != "" {
		filter.Step = &step
	}
	if outcome := q.Get("outcome"); outcome != "" {
		o := setup.Outcome(outcome)
		filter.Outcome = &o
	}
	s.respond(w, s.source().History(r.Context(), filter, cast.ToInt(q.Get("limit")), cast.ToInt(q.Get("offset"))))
}

func (s *Server) handleDatabaseConfig(w http.ResponseWriter, r *http.Request) {
	var req installer.ConnectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, s.source().SaveConnection(r.Context(), req))
}

func (s *Server) handleInstallTables(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.source().InstallSchema(r.Context()))
}

func (s *Server) handleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	var data account.Data
	if !s.decode(w, r, &data) {
		return
	}
	s.respond(w, s.source().CreateAccount(r.Context(), data))
}

// smtpRequest carries transport settings and an optional target account.
type smtpRequest struct {
	mailer.Settings
	AdminEmail string `json:"adminEmail"`
}

func (s *Server) handleSMTPConfig(w http.ResponseWriter, r *http.Request) {
	var req smtpRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, s.source().SaveTransport(r.Context(), req.Settings, req.AdminEmail))
}

func (s *Server) handleAppConfig(w http.ResponseWriter, r *http.Request) {
	params := map[string]interface{}{}
	if !s.decode(w, r, &params) {
		return
	}
	s.respond(w, s.source().SaveAppParameters(r.Context(), params))
}

// decode reads a JSON body into v, answering 400 when it is not a JSON object.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respond(w, setup.Failed(setup.NewValidationError("", "Invalid JSON data")))
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, res setup.Result) {
	writeJSON(w, StatusCode(res), res)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// installedGate rejects mutating requests once the installation completed.
func (s *Server) installedGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.source().Installed() {
			writeJSON(w, http.StatusForbidden, map[string]interface{}{
				"success": false,
				"message": "Application is already installed",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("Handler panicked")
				writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
					"success": false,
					"message": "Internal server error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter captures the status code for request logging
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", path).
			Int("status", wrapped.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
