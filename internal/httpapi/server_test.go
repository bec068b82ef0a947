package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/antoniostano/kiosk/internal/acl"
	"github.com/antoniostano/kiosk/internal/config"
	"github.com/antoniostano/kiosk/internal/correlation"
	"github.com/antoniostano/kiosk/internal/executor"
	"github.com/antoniostano/kiosk/internal/kiosk"
	"github.com/antoniostano/kiosk/internal/orchestrator"
	"github.com/antoniostano/kiosk/internal/providers/llm"
	"github.com/antoniostano/kiosk/internal/providers/stt"
	"github.com/antoniostano/kiosk/internal/providers/tts"
	"github.com/antoniostano/kiosk/internal/staffauth"
	"github.com/antoniostano/kiosk/internal/store"
)

type fakeStore struct{}

func (fakeStore) CreatePendingMemory(ctx context.Context, kind, value, sourceQuote string) (string, error) {
	return "mem-1", nil
}
func (fakeStore) CreatePendingSessionSummary(ctx context.Context, title, summary string, topics, staffNotes []string) (string, error) {
	return "sum-1", nil
}
func (fakeStore) ListPendingSessionSummaries(ctx context.Context) ([]store.PendingSessionSummary, error) {
	return nil, nil
}
func (fakeStore) ListPendingMemories(ctx context.Context) ([]store.PendingMemory, error) { return nil, nil }
func (fakeStore) ConfirmPendingMemory(ctx context.Context, id string) error               { return nil }
func (fakeStore) DenyPendingMemory(ctx context.Context, id string) error                  { return nil }
func (fakeStore) ConfirmPendingSessionSummary(ctx context.Context, id string) error        { return nil }
func (fakeStore) DenyPendingSessionSummary(ctx context.Context, id string) error           { return nil }
func (fakeStore) Close() error                                                             { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Config{
		SSEKeepaliveInterval: time.Hour,
		StaffSessionTTL:      time.Minute,
	}

	m := kiosk.New(orchestrator.DefaultConfig(), zerolog.Nop(), func() int64 { return 1000 })
	exec := executor.New(executor.Deps{
		STT:         &stt.MockProvider{Text: "hello"},
		LLM:         &llm.MockProvider{Reply: llm.ChatOutput{Text: "hi there"}},
		Correlation: correlation.New(),
		Sink:        m,
		Logger:      zerolog.Nop(),
		NowMs:       func() int64 { return 1000 },
	})
	m.AttachExecutor(exec)
	m.Run(context.Background())

	allow, err := acl.New("")
	if err != nil {
		t.Fatalf("acl.New: %v", err)
	}

	return New(cfg, m, fakeStore{}, staffauth.NewManager(time.Minute), allow, tts.MockProvider{}, nil, zerolog.Nop())
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestKioskPTTDownAcceptsRequest(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/kiosk/ptt/down", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
}

func TestKioskConsentRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/kiosk/consent", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStaffEndpointsRejectOutsideLAN(t *testing.T) {
	cfg := config.Config{SSEKeepaliveInterval: time.Hour, StaffSessionTTL: time.Minute}
	m := kiosk.New(orchestrator.DefaultConfig(), zerolog.Nop(), func() int64 { return 1000 })
	m.Run(context.Background())
	allow, err := acl.New("10.0.0.0/8")
	if err != nil {
		t.Fatalf("acl.New: %v", err)
	}
	s := New(cfg, m, fakeStore{}, staffauth.NewManager(time.Minute), allow, tts.MockProvider{}, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/v1/staff/events", nil)
	req.RemoteAddr = "203.0.113.5:1234"
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized && rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 401 or 403", rec.Code)
	}
}

func TestStaffLoginSetsCookie(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/staff/login", strings.NewReader(`{"staff_id":"alice"}`))
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 || cookies[0].Name != staffCookieName {
		t.Fatalf("expected a %s cookie, got %v", staffCookieName, cookies)
	}
}

func TestPendingMemoriesRequiresStaffSession(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/staff/pending/memories", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
