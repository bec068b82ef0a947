package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/antoniostano/kiosk/internal/orchestrator"
)

type staffLoginRequest struct {
	StaffID string `json:"staff_id"`
}

// handleStaffLogin issues a cookie-backed staff session. The login route
// sits outside the allowlist-gated route group, so the handler checks the
// allowlist itself; past that, the only gate is naming a staff ID.
func (s *Server) handleStaffLogin(w http.ResponseWriter, r *http.Request) {
	if s.acl != nil && !s.acl.AllowsRemoteAddr(r.RemoteAddr) {
		respondError(w, http.StatusForbidden, "lan_only", "staff endpoints are LAN-only")
		return
	}

	var req staffLoginRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.StaffID) == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "expected a JSON body with a staff_id field")
		return
	}

	session, err := s.staff.Login(req.StaffID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "login_failed", err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     staffCookieName,
		Value:    session.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  session.CreatedAt.Add(s.cfg.StaffSessionTTL),
	})
	respondJSON(w, http.StatusOK, map[string]any{"staff_id": session.StaffID})
}

func (s *Server) handleStaffLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(staffCookieName); err == nil {
		s.staff.Logout(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     staffCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Unix(0, 0),
	})
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleStaffPTTDown(w http.ResponseWriter, r *http.Request) {
	s.machine.Enqueue(orchestrator.PTTDown{Source: orchestrator.PTTSourceStaff})
	respondJSON(w, http.StatusAccepted, map[string]any{"status": "ok"})
}

func (s *Server) handleStaffPTTUp(w http.ResponseWriter, r *http.Request) {
	s.machine.Enqueue(orchestrator.PTTUp{Source: orchestrator.PTTSourceStaff})
	respondJSON(w, http.StatusAccepted, map[string]any{"status": "ok"})
}

func (s *Server) handleStaffReset(w http.ResponseWriter, r *http.Request) {
	s.machine.Enqueue(orchestrator.StaffResetSession{})
	respondJSON(w, http.StatusAccepted, map[string]any{"status": "ok"})
}

func (s *Server) handleStaffEmergencyStop(w http.ResponseWriter, r *http.Request) {
	s.machine.Enqueue(orchestrator.StaffEmergencyStop{})
	respondJSON(w, http.StatusAccepted, map[string]any{"status": "ok"})
}

func (s *Server) handleStaffResume(w http.ResponseWriter, r *http.Request) {
	s.machine.Enqueue(orchestrator.StaffResume{})
	respondJSON(w, http.StatusAccepted, map[string]any{"status": "ok"})
}

func (s *Server) handleListPendingMemories(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListPendingMemories(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"memories": items})
}

func (s *Server) handleConfirmPendingMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.ConfirmPendingMemory(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleDenyPendingMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DenyPendingMemory(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleListPendingSummaries(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListPendingSessionSummaries(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"summaries": items})
}

func (s *Server) handleConfirmPendingSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.ConfirmPendingSessionSummary(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleDenyPendingSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DenyPendingSessionSummary(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
