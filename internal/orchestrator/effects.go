package orchestrator

// Effect is the sum type of declarative instructions the reducer returns for
// the executor to interpret. The reducer never performs the work itself.
type Effect interface{ isEffect() }

type KioskRecordStart struct{}

// KioskRecordStop carries the STT request id the recording feeds, when one
// was minted; it is empty for a staff-forced stop.
type KioskRecordStop struct{ STTRequestID string }

type CallSTT struct{ RequestID string }

// ChatInput is the payload handed to llm.chat.call/stream.
type ChatInput struct {
	Mode         Mode
	PersonalName string
	Messages     []BufferMessage
}

type CallChat struct {
	RequestID string
	Input     ChatInput
}

// InnerTaskKind discriminates the three auxiliary LLM-driven JSON tasks.
type InnerTaskKind string

const (
	InnerTaskConsentDecision InnerTaskKind = "consent_decision"
	InnerTaskMemoryExtract   InnerTaskKind = "memory_extract"
	InnerTaskSessionSummary  InnerTaskKind = "session_summary"
)

// InnerTaskInput carries only the fields relevant to the dispatched Kind.
type InnerTaskInput struct {
	ConsentUtterance string
	ChatContext      []BufferMessage
	SessionMessages  []BufferMessage
}

type CallInnerTask struct {
	RequestID string
	Task      InnerTaskKind
	Input     InnerTaskInput
}

// Say asks the executor to speak text, optionally attributed to a chat
// request id already streamed by the executor (see the Stream Correlation
// Table). An empty ChatRequestID means there is no streamed antecedent.
type Say struct {
	Text          string
	ChatRequestID string
}

type KioskToolCalls struct{ ToolCalls []ToolCall }

type SetExpression struct{ Expression string }

type PlayMotion struct {
	MotionID   string
	InstanceID string
}

type SetMode struct{ Mode Mode }

type ShowConsentUI struct{ Visible bool }

// StoreWritePending is the legacy direct-write path; the executor fails hard
// if no legacy handler is registered (see §7 error handling).
type StoreWritePending struct{ Candidate MemoryCandidate }

// SessionSummaryInput is the normalized, length-clamped, PII-masked DTO
// written to the pending-session-summary store.
type SessionSummaryInput struct {
	Title      string
	Summary    string
	Topics     []string
	StaffNotes []string
}

type StoreWriteSessionSummaryPending struct{ Input SessionSummaryInput }

func (KioskRecordStart) isEffect()                {}
func (KioskRecordStop) isEffect()                 {}
func (CallSTT) isEffect()                         {}
func (CallChat) isEffect()                        {}
func (CallInnerTask) isEffect()                   {}
func (Say) isEffect()                             {}
func (KioskToolCalls) isEffect()                  {}
func (SetExpression) isEffect()                   {}
func (PlayMotion) isEffect()                      {}
func (SetMode) isEffect()                         {}
func (ShowConsentUI) isEffect()                   {}
func (StoreWritePending) isEffect()               {}
func (StoreWriteSessionSummaryPending) isEffect() {}
