// Package httpapi exposes the kiosk's HTTP/SSE surface: two server-sent
// event streams (kiosk commands, staff snapshots) replacing the teacher's
// per-session websocket, plus the PTT/consent/audio control endpoints and
// the staff review console, grounded throughout on the teacher's
// httpapi/server.go chi router and JSON envelope helpers.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/antoniostano/kiosk/internal/acl"
	"github.com/antoniostano/kiosk/internal/config"
	"github.com/antoniostano/kiosk/internal/kiosk"
	"github.com/antoniostano/kiosk/internal/observability"
	"github.com/antoniostano/kiosk/internal/preflight"
	"github.com/antoniostano/kiosk/internal/providers/tts"
	"github.com/antoniostano/kiosk/internal/staffauth"
	"github.com/antoniostano/kiosk/internal/store"
)

const staffCookieName = "kiosk_staff_session"

type Server struct {
	cfg     config.Config
	machine *kiosk.Machine
	store   store.Store
	staff   *staffauth.Manager
	acl     *acl.Allowlist
	tts     tts.Provider
	metrics *observability.Metrics
	logger  zerolog.Logger
	static  http.Handler
}

func New(cfg config.Config, machine *kiosk.Machine, st store.Store, staff *staffauth.Manager, allow *acl.Allowlist, ttsProvider tts.Provider, metrics *observability.Metrics, logger zerolog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		machine: machine,
		store:   st,
		staff:   staff,
		acl:     allow,
		tts:     ttsProvider,
		metrics: metrics,
		logger:  logger,
		static:  newStaticHandler(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/kiosk/", http.StatusTemporaryRedirect)
	})
	r.Handle("/ui/*", http.StripPrefix("/ui/", s.static))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/preflight", s.handlePreflight)
	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Post("/v1/perf/latency/reset", s.handlePerfLatencyReset)

	r.Get("/v1/kiosk/events", s.handleKioskEvents)
	r.Post("/v1/kiosk/ptt/down", s.handleKioskPTTDown)
	r.Post("/v1/kiosk/ptt/up", s.handleKioskPTTUp)
	r.Post("/v1/kiosk/consent", s.handleKioskConsent)
	r.Post("/v1/kiosk/audio", s.handleKioskAudio)
	r.Post("/v1/tts/speak", s.handleTTSSpeak)

	r.Post("/v1/staff/login", s.handleStaffLogin)

	r.Group(func(g chi.Router) {
		if s.acl != nil {
			g.Use(s.acl.Middleware)
		}
		g.Use(s.requireStaffSession)

		g.Get("/v1/staff/events", s.handleStaffEvents)
		g.Post("/v1/staff/logout", s.handleStaffLogout)
		g.Post("/v1/staff/ptt/down", s.handleStaffPTTDown)
		g.Post("/v1/staff/ptt/up", s.handleStaffPTTUp)
		g.Post("/v1/staff/reset", s.handleStaffReset)
		g.Post("/v1/staff/emergency_stop", s.handleStaffEmergencyStop)
		g.Post("/v1/staff/resume", s.handleStaffResume)

		g.Get("/v1/staff/pending/memories", s.handleListPendingMemories)
		g.Post("/v1/staff/pending/memories/{id}/confirm", s.handleConfirmPendingMemory)
		g.Post("/v1/staff/pending/memories/{id}/deny", s.handleDenyPendingMemory)
		g.Get("/v1/staff/pending/summaries", s.handleListPendingSummaries)
		g.Post("/v1/staff/pending/summaries/{id}/confirm", s.handleConfirmPendingSummary)
		g.Post("/v1/staff/pending/summaries/{id}/deny", s.handleDenyPendingSummary)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	checks := preflight.Run(preflight.Config{
		STTProvider:      s.cfg.STTProvider,
		WhisperModelPath: s.cfg.WhisperModelPath,
		LLMProvider:      s.cfg.LLMProvider,
		AnthropicAPIKey:  s.cfg.AnthropicAPIKey,
		StorePath:        s.cfg.StorePath,
	})
	respondJSON(w, http.StatusOK, map[string]any{"checks": checks})
}

// requireStaffSession validates the staff cookie before any route in the
// staff-only group runs; the LAN allowlist middleware above it runs first.
func (s *Server) requireStaffSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(staffCookieName)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "not_authenticated", "missing staff session cookie")
			return
		}
		if _, err := s.staff.Validate(cookie.Value); err != nil {
			respondError(w, http.StatusUnauthorized, "invalid_session", "staff session expired or unknown")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
