// Package kiosk owns the single process-wide orchestrator instance and fans
// its outbound kiosk commands and staff snapshots out to every connected SSE
// subscriber, the same singleton-with-Subscribe(id) shape the teacher's
// taskruntime.Service uses for task events — except this service has no
// per-session key at all, since the whole kiosk is one conversation.
package kiosk

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/antoniostano/kiosk/internal/eventqueue"
	"github.com/antoniostano/kiosk/internal/executor"
	"github.com/antoniostano/kiosk/internal/kioskcmd"
	"github.com/antoniostano/kiosk/internal/orchestrator"
)

// Snapshot is the staff console's view of orchestrator state, broadcast
// after every event the reducer consumes.
type Snapshot struct {
	Mode                Mode   `json:"mode"`
	PersonalName        string `json:"personal_name,omitempty"`
	Phase               string `json:"phase"`
	IsEmergencyStopped  bool   `json:"is_emergency_stopped"`
	IsKioskPTTHeld      bool   `json:"is_kiosk_ptt_held"`
	IsStaffPTTHeld      bool   `json:"is_staff_ptt_held"`
	ConsentDeadlineAtMs *int64 `json:"consent_deadline_at_ms,omitempty"`
	HasMemoryCandidate  bool   `json:"has_memory_candidate"`
	SessionBufferLen    int    `json:"session_buffer_len"`
}

// Mode mirrors orchestrator.Mode so the JSON wire shape does not leak the
// internal package's type identity.
type Mode string

func snapshotFrom(s orchestrator.State) Snapshot {
	return Snapshot{
		Mode:                Mode(s.Mode),
		PersonalName:        s.PersonalName,
		Phase:                string(s.Phase),
		IsEmergencyStopped:  s.IsEmergencyStopped,
		IsKioskPTTHeld:      s.IsKioskPTTHeld,
		IsStaffPTTHeld:      s.IsStaffPTTHeld,
		ConsentDeadlineAtMs: s.ConsentDeadlineAtMs,
		HasMemoryCandidate:  s.MemoryCandidate != nil,
		SessionBufferLen:    len(s.SessionBuffer),
	}
}

type kioskSub struct {
	ch chan kioskcmd.Envelope
}

type staffSub struct {
	ch chan Snapshot
}

// Machine is the single orchestrator instance for the whole process. It is
// safe for concurrent use.
type Machine struct {
	cfg    orchestrator.Config
	nowMs  func() int64
	logger zerolog.Logger

	queue *eventqueue.Queue

	mu    sync.RWMutex
	state orchestrator.State
	exec  *executor.Executor
	ctx   context.Context

	kioskMu      sync.Mutex
	kioskSubs    map[int]kioskSub
	nextKioskID  int

	staffMu     sync.Mutex
	staffSubs   map[int]staffSub
	nextStaffID int
}

// New builds a Machine in the initial idle/ROOM state. AttachExecutor must be
// called before any event produces effects, and Run must be called once to
// give the machine a background context for async provider calls.
func New(cfg orchestrator.Config, logger zerolog.Logger, nowMs func() int64) *Machine {
	if nowMs == nil {
		nowMs = func() int64 { return time.Now().UnixMilli() }
	}
	m := &Machine{
		cfg:       cfg,
		nowMs:     nowMs,
		logger:    logger,
		state:     orchestrator.NewState(),
		ctx:       context.Background(),
		kioskSubs: make(map[int]kioskSub),
		staffSubs: make(map[int]staffSub),
	}
	m.queue = eventqueue.New(m.handle)
	return m
}

// AttachExecutor wires the effect executor built with this Machine as its
// kioskcmd.Sink (Machine implements Send itself).
func (m *Machine) AttachExecutor(exec *executor.Executor) {
	m.mu.Lock()
	m.exec = exec
	m.mu.Unlock()
}

// Run installs ctx as the scope used for every async provider call the
// effect executor spawns from here on; cancelling ctx aborts any in-flight
// CALL_CHAT/CALL_INNER_TASK work.
func (m *Machine) Run(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()
}

// StartTicker drives WF_TICK_INTERVAL_MS-cadenced Tick events into the
// queue until ctx is cancelled, for the reducer's consent/inactivity timeout
// checks.
func (m *Machine) StartTicker(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Enqueue(orchestrator.Tick{})
			}
		}
	}()
}

// Enqueue is the executor.EnqueueFunc the Machine hands to its own executor;
// it also satisfies ad-hoc calls from HTTP handlers (PTT, consent button,
// staff controls).
func (m *Machine) Enqueue(event orchestrator.Event, nowMs ...int64) {
	now := m.nowMs()
	if len(nowMs) > 0 {
		now = nowMs[0]
	}
	m.queue.Enqueue(event, now)
}

func (m *Machine) handle(event any, nowMs int64) {
	ev, ok := event.(orchestrator.Event)
	if !ok {
		m.logger.Warn().Msgf("kiosk: dropping non-event value %T off the queue", event)
		return
	}

	m.mu.Lock()
	next, effects := orchestrator.Reduce(m.state, ev, nowMs, m.cfg)
	m.state = next
	exec := m.exec
	ctx := m.ctx
	m.mu.Unlock()

	m.broadcastSnapshot(snapshotFrom(next))

	if len(effects) > 0 && exec != nil {
		exec.Execute(ctx, effects, func(e orchestrator.Event, t int64) { m.Enqueue(e, t) })
	}
}

// Snapshot returns the current staff-facing view of orchestrator state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return snapshotFrom(m.state)
}

// TranscribeAudio hands a kiosk PTT recording to the attached executor's STT
// path; the resulting STTResult/STTFailed event re-enters through Enqueue.
func (m *Machine) TranscribeAudio(ctx context.Context, requestID, mode string, wav []byte) {
	m.mu.RLock()
	exec := m.exec
	m.mu.RUnlock()
	if exec == nil {
		return
	}
	exec.TranscribeSTT(ctx, requestID, mode, wav, func(e orchestrator.Event, t int64) { m.Enqueue(e, t) })
}

// Send implements kioskcmd.Sink by fanning an outbound command out to every
// connected kiosk SSE subscriber; a subscriber whose buffer is full has the
// envelope dropped rather than blocking the executor goroutine.
func (m *Machine) Send(env kioskcmd.Envelope) {
	m.kioskMu.Lock()
	defer m.kioskMu.Unlock()
	for _, sub := range m.kioskSubs {
		select {
		case sub.ch <- env:
		default:
		}
	}
}

func (m *Machine) broadcastSnapshot(s Snapshot) {
	m.staffMu.Lock()
	defer m.staffMu.Unlock()
	for _, sub := range m.staffSubs {
		select {
		case sub.ch <- s:
		default:
		}
	}
}

// SubscribeKiosk registers an SSE subscriber for outbound kiosk commands.
// The returned function must be called exactly once to unregister.
func (m *Machine) SubscribeKiosk() (<-chan kioskcmd.Envelope, func()) {
	ch := make(chan kioskcmd.Envelope, 64)
	m.kioskMu.Lock()
	m.nextKioskID++
	id := m.nextKioskID
	m.kioskSubs[id] = kioskSub{ch: ch}
	m.kioskMu.Unlock()

	return ch, func() {
		m.kioskMu.Lock()
		defer m.kioskMu.Unlock()
		if sub, ok := m.kioskSubs[id]; ok {
			delete(m.kioskSubs, id)
			close(sub.ch)
		}
	}
}

// SubscribeStaff registers an SSE subscriber for staff state snapshots.
func (m *Machine) SubscribeStaff() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 16)
	m.staffMu.Lock()
	m.nextStaffID++
	id := m.nextStaffID
	m.staffSubs[id] = staffSub{ch: ch}
	m.staffMu.Unlock()

	return ch, func() {
		m.staffMu.Lock()
		defer m.staffMu.Unlock()
		if sub, ok := m.staffSubs[id]; ok {
			delete(m.staffSubs, id)
			close(sub.ch)
		}
	}
}
