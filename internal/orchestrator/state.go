// Package orchestrator implements the kiosk's conversational state machine
// as a pure reducer: Reduce(state, event, now, config) -> (state', effects).
// Nothing in this package performs I/O, reads a clock, or blocks; every time
// value is injected by the caller so that tests can replay exact schedules.
package orchestrator

// Mode selects whether the kiosk is addressing a generic room or a single
// recognized individual.
type Mode string

const (
	ModeRoom     Mode = "ROOM"
	ModePersonal Mode = "PERSONAL"
)

// Phase is the top-level conversational state.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseListening        Phase = "listening"
	PhaseWaitingSTT       Phase = "waiting_stt"
	PhaseWaitingChat      Phase = "waiting_chat"
	PhaseAskingConsent    Phase = "asking_consent"
	PhaseWaitingInnerTask Phase = "waiting_inner_task"
)

// MemoryKind enumerates the only candidate kinds the reducer accepts.
// Arbitrary strings from an LLM's inner-task output are rejected.
type MemoryKind string

const (
	MemoryKindLikes MemoryKind = "likes"
	MemoryKindFood  MemoryKind = "food"
	MemoryKindPlay  MemoryKind = "play"
	MemoryKindHobby MemoryKind = "hobby"
)

func validMemoryKind(k MemoryKind) bool {
	switch k {
	case MemoryKindLikes, MemoryKindFood, MemoryKindPlay, MemoryKindHobby:
		return true
	default:
		return false
	}
}

// motionAllowlist is consulted for motions forwarded on a CHAT_RESULT;
// "thinking" is reserved for the pre-chat PLAY_MOTION and is never allowed
// here, per the allowlist-with-default-idle policy documented in DESIGN.md.
var motionAllowlist = map[string]bool{
	"idle":     true,
	"greeting": true,
	"cheer":    true,
}

func allowedResultMotion(motionID string) string {
	if motionAllowlist[motionID] {
		return motionID
	}
	return "idle"
}

// MemoryCandidate is the PERSONAL-mode memory fact awaiting staff/consent
// disposition.
type MemoryCandidate struct {
	Kind        MemoryKind
	Value       string
	SourceQuote string
}

// BufferMessage is one turn held in the rolling session buffer (component A).
type BufferMessage struct {
	Role string // "user" or "assistant"
	Text string
}

// InFlight tracks at most one outstanding request id per async operation
// kind. Ids are never reused; a result event whose id does not match the
// live slot is stale and is dropped.
type InFlight struct {
	STT            string
	Chat           string
	ConsentInner   string
	MemoryExtract  string
	SessionSummary string
}

// PTTSource distinguishes which console is holding push-to-talk. Both can
// hold concurrently; listening only exits once both release.
type PTTSource string

const (
	PTTSourceKiosk PTTSource = "kiosk"
	PTTSourceStaff PTTSource = "staff"
)

// State is the orchestrator's full immutable snapshot between events. A
// State value is never mutated in place; Reduce always returns a new one.
type State struct {
	Mode         Mode
	PersonalName string

	Phase          Phase
	LastActionAtMs int64

	SessionBuffer []BufferMessage

	ConsentDeadlineAtMs *int64
	MemoryCandidate     *MemoryCandidate

	InFlight InFlight

	IsEmergencyStopped bool
	IsKioskPTTHeld     bool
	IsStaffPTTHeld     bool

	RequestSeq int64
}

// NewState returns the initial idle/ROOM state.
func NewState() State {
	return State{
		Mode:  ModeRoom,
		Phase: PhaseIdle,
	}
}

func (s State) pttHeld(source PTTSource) bool {
	if source == PTTSourceStaff {
		return s.IsStaffPTTHeld
	}
	return s.IsKioskPTTHeld
}

func (s State) withPTTHeld(source PTTSource, held bool) State {
	if source == PTTSourceStaff {
		s.IsStaffPTTHeld = held
	} else {
		s.IsKioskPTTHeld = held
	}
	return s
}

func (s State) anyPTTHeld() bool {
	return s.IsKioskPTTHeld || s.IsStaffPTTHeld
}

func (s State) mintID(prefix string) (State, string) {
	s.RequestSeq++
	return s, formatID(prefix, s.RequestSeq)
}

func (s State) appendBuffer(role, text string) State {
	next := make([]BufferMessage, len(s.SessionBuffer), len(s.SessionBuffer)+1)
	copy(next, s.SessionBuffer)
	s.SessionBuffer = append(next, BufferMessage{Role: role, Text: text})
	return s
}

func (s State) clearBuffer() State {
	s.SessionBuffer = nil
	return s
}

func (s State) clearConsent() State {
	s.ConsentDeadlineAtMs = nil
	s.MemoryCandidate = nil
	return s
}

func (s State) resetForRoom() State {
	s.Mode = ModeRoom
	s.PersonalName = ""
	s.Phase = PhaseIdle
	s.SessionBuffer = nil
	s.ConsentDeadlineAtMs = nil
	s.MemoryCandidate = nil
	s.InFlight = InFlight{}
	s.IsKioskPTTHeld = false
	s.IsStaffPTTHeld = false
	return s
}
