package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/antoniostano/kiosk/internal/orchestrator"
	"github.com/antoniostano/kiosk/internal/providers/tts"
)

// handleKioskEvents streams outbound kiosk commands (kiosk.command.record_start,
// kiosk.command.speak, kiosk.command.play_motion, ...) as server-sent events; the kiosk console keeps exactly
// one of these connections open for its whole lifetime.
func (s *Server) handleKioskEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "sse_unsupported", "streaming not supported")
		return
	}
	writeSSEPreamble(w, flusher)

	ch, cancel := s.machine.SubscribeKiosk()
	defer cancel()

	if s.metrics != nil {
		s.metrics.ActiveKioskConnections.Inc()
		defer s.metrics.ActiveKioskConnections.Dec()
	}

	keepalive := time.NewTicker(s.cfg.SSEKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			if !s.writeSSEComment(w, flusher, "kiosk") {
				return
			}
		case env, open := <-ch:
			if !open {
				return
			}
			if !s.writeSSEEvent(w, flusher, "kiosk", string(env.Type), env) {
				return
			}
		}
	}
}

// handleStaffEvents streams orchestrator state snapshots to the staff
// console after every event the reducer consumes.
func (s *Server) handleStaffEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "sse_unsupported", "streaming not supported")
		return
	}
	writeSSEPreamble(w, flusher)

	ch, cancel := s.machine.SubscribeStaff()
	defer cancel()

	if s.metrics != nil {
		s.metrics.ActiveStaffConnections.Inc()
		defer s.metrics.ActiveStaffConnections.Dec()
	}

	if !s.writeSSEEvent(w, flusher, "staff", "staff.snapshot", s.machine.Snapshot()) {
		return
	}

	keepalive := time.NewTicker(s.cfg.SSEKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			if !s.writeSSEComment(w, flusher, "staff") {
				return
			}
		case snap, open := <-ch:
			if !open {
				return
			}
			if !s.writeSSEEvent(w, flusher, "staff", "staff.snapshot", snap) {
				return
			}
		}
	}
}

func writeSSEPreamble(w http.ResponseWriter, flusher http.Flusher) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
}

// writeSSEComment writes a keepalive comment; stream names the SSE stream
// ("kiosk"/"staff") for the write-error counter.
func (s *Server) writeSSEComment(w http.ResponseWriter, flusher http.Flusher, stream string) bool {
	if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
		if s.metrics != nil {
			s.metrics.ObserveSSEWriteError(stream)
		}
		return false
	}
	flusher.Flush()
	return true
}

// writeSSEEvent marshals and writes one SSE data frame, observing an
// outbound-message metric keyed by msgType and recording any write failure
// against the SSE write-error counter keyed by stream.
func (s *Server) writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, stream, msgType string, v any) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		return true
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		if s.metrics != nil {
			s.metrics.ObserveSSEWriteError(stream)
			s.metrics.ObserveOutboundMessage(msgType, "error")
		}
		return false
	}
	flusher.Flush()
	if s.metrics != nil {
		s.metrics.ObserveOutboundMessage(msgType, "ok")
	}
	return true
}

func (s *Server) handleKioskPTTDown(w http.ResponseWriter, r *http.Request) {
	s.machine.Enqueue(orchestrator.PTTDown{Source: orchestrator.PTTSourceKiosk})
	respondJSON(w, http.StatusAccepted, map[string]any{"status": "ok"})
}

func (s *Server) handleKioskPTTUp(w http.ResponseWriter, r *http.Request) {
	s.machine.Enqueue(orchestrator.PTTUp{Source: orchestrator.PTTSourceKiosk})
	respondJSON(w, http.StatusAccepted, map[string]any{"status": "ok"})
}

type consentRequest struct {
	Answer string `json:"answer"`
}

func (s *Server) handleKioskConsent(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "expected a JSON body with an answer field")
		return
	}
	answer := orchestrator.ConsentNo
	if req.Answer == string(orchestrator.ConsentYes) {
		answer = orchestrator.ConsentYes
	}
	s.machine.Enqueue(orchestrator.UIConsentButton{Answer: answer})
	respondJSON(w, http.StatusAccepted, map[string]any{"status": "ok"})
}

// handleKioskAudio accepts a single recorded utterance as a multipart
// upload (field name "audio", WAV bytes) and hands it to the executor's
// STT path; the resulting transcript re-enters as an STTResult event.
func (s *Server) handleKioskAudio(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "expected a multipart/form-data body")
		return
	}
	file, _, err := r.FormFile("audio")
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "missing audio field")
		return
	}
	defer file.Close()

	wav, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "could not read audio upload")
		return
	}

	requestID := uuid.NewString()
	mode := string(s.machine.Snapshot().Mode)
	s.machine.TranscribeAudio(r.Context(), requestID, mode, wav)

	respondJSON(w, http.StatusAccepted, map[string]any{"request_id": requestID})
}

type ttsSpeakRequest struct {
	VoiceID string `json:"voice_id"`
	Text    string `json:"text"`
}

// handleTTSSpeak lets staff preview how a line of text sounds without
// routing it through the orchestrator's conversation turn.
func (s *Server) handleTTSSpeak(w http.ResponseWriter, r *http.Request) {
	var req ttsSpeakRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "expected a JSON body with a text field")
		return
	}
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "text must not be empty")
		return
	}
	out, err := s.tts.Synthesize(r.Context(), tts.SynthesizeInput{VoiceID: req.VoiceID, Text: req.Text})
	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveProviderError("tts", "synthesize")
		}
		respondError(w, http.StatusBadGateway, "tts_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", out.Format)
	_, _ = w.Write(out.Audio)
}
