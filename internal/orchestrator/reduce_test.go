package orchestrator

import (
	"reflect"
	"testing"
)

func TestScenarioS1PTTHappyPathInRoom(t *testing.T) {
	cfg := DefaultConfig()
	state := NewState()

	state, effects := Reduce(state, PTTDown{Source: PTTSourceStaff}, 100, cfg)
	wantEffects(t, effects, KioskRecordStart{})

	state, effects = Reduce(state, PTTUp{Source: PTTSourceStaff}, 200, cfg)
	wantEffects(t, effects,
		KioskRecordStop{STTRequestID: "stt-1"},
		CallSTT{RequestID: "stt-1"},
	)

	state, effects = Reduce(state, STTResult{RequestID: "stt-1", Text: "こんにちは"}, 210, cfg)
	wantEffects(t, effects,
		PlayMotion{MotionID: "thinking", InstanceID: "motion-chat-2-thinking"},
		CallChat{RequestID: "chat-2", Input: ChatInput{Mode: ModeRoom, Messages: []BufferMessage{{Role: "user", Text: "こんにちは"}}}},
	)

	state, effects = Reduce(state, ChatResult{RequestID: "chat-2", Text: "やあ", Expression: "neutral"}, 220, cfg)
	wantEffects(t, effects,
		SetExpression{Expression: "neutral"},
		PlayMotion{MotionID: "idle", InstanceID: "motion-chat-2"},
		Say{Text: "やあ", ChatRequestID: "chat-2"},
	)
	if state.Phase != PhaseIdle {
		t.Fatalf("final phase = %q, want idle", state.Phase)
	}
}

func TestScenarioS2ConsentFlowViaInnerTaskThenUIYes(t *testing.T) {
	cfg := DefaultConfig()
	state := State{
		Mode:       ModePersonal,
		Phase:      PhaseWaitingChat,
		InFlight:   InFlight{Chat: "chat-1"},
		RequestSeq: 1,
	}

	state, effects := Reduce(state, ChatResult{RequestID: "chat-1", Text: "いいね", Expression: "neutral"}, 10, cfg)
	wantEffects(t, effects,
		SetExpression{Expression: "neutral"},
		PlayMotion{MotionID: "idle", InstanceID: "motion-chat-1"},
		Say{Text: "いいね", ChatRequestID: "chat-1"},
		CallInnerTask{RequestID: "inner-2", Task: InnerTaskMemoryExtract, Input: InnerTaskInput{ChatContext: state.SessionBuffer}},
	)
	if state.Phase != PhaseWaitingInnerTask {
		t.Fatalf("phase = %q, want waiting_inner_task", state.Phase)
	}

	state, effects = Reduce(state, InnerTaskResult{
		RequestID: "inner-2",
		JSON:      `{"kind":"likes","value":"dinosaurs"}`,
	}, 11, cfg)
	wantEffects(t, effects, Say{Text: consentAskText}, ShowConsentUI{Visible: true})
	if state.Phase != PhaseAskingConsent {
		t.Fatalf("phase = %q, want asking_consent", state.Phase)
	}
	if state.MemoryCandidate == nil || state.MemoryCandidate.Value != "dinosaurs" {
		t.Fatalf("MemoryCandidate = %+v, want dinosaurs candidate", state.MemoryCandidate)
	}

	state, effects = Reduce(state, UIConsentButton{Answer: ConsentYes}, 12, cfg)
	wantEffects(t, effects,
		StoreWritePending{Candidate: MemoryCandidate{Kind: MemoryKindLikes, Value: "dinosaurs"}},
		ShowConsentUI{Visible: false},
	)
	if state.Phase != PhaseIdle || state.MemoryCandidate != nil || state.ConsentDeadlineAtMs != nil {
		t.Fatalf("state not cleared: %+v", state)
	}
}

func TestScenarioS5ConsentTimeoutMidConsent(t *testing.T) {
	cfg := DefaultConfig()
	deadline := int64(1000)
	state := State{
		Phase:               PhaseAskingConsent,
		ConsentDeadlineAtMs: &deadline,
		MemoryCandidate:     &MemoryCandidate{Kind: MemoryKindLikes, Value: "trains"},
	}

	_, effects := Reduce(state, Tick{}, 1000, cfg)
	wantEffects(t, effects, Say{Text: consentForgetText}, ShowConsentUI{Visible: false})

	listening := state
	listening.Phase = PhaseListening
	_, effects = Reduce(listening, Tick{}, 1000, cfg)
	if len(effects) != 0 {
		t.Fatalf("effects = %#v, want none while listening", effects)
	}
}

func TestScenarioS6EmergencyStopAndResume(t *testing.T) {
	cfg := DefaultConfig()
	state := State{Phase: PhaseListening, IsKioskPTTHeld: true}

	state, effects := Reduce(state, StaffEmergencyStop{}, 50, cfg)
	wantEffects(t, effects,
		KioskRecordStop{},
		PlayMotion{MotionID: "idle", InstanceID: "motion-emergency-stop"},
		SetMode{Mode: ModeRoom},
		ShowConsentUI{Visible: false},
	)
	if !state.IsEmergencyStopped {
		t.Fatalf("IsEmergencyStopped = false, want true")
	}

	_, effects = Reduce(state, PTTDown{Source: PTTSourceKiosk}, 60, cfg)
	if len(effects) != 0 {
		t.Fatalf("effects = %#v, want dropped while emergency-stopped", effects)
	}

	state, effects = Reduce(state, StaffResume{}, 70, cfg)
	if state.IsEmergencyStopped {
		t.Fatalf("IsEmergencyStopped = true after resume, want false")
	}
	if len(effects) != 0 {
		t.Fatalf("effects = %#v, want none on resume", effects)
	}
}

func TestInvariantConsentDeadlineAndCandidateTravelTogether(t *testing.T) {
	cfg := DefaultConfig()
	state := State{
		Mode:       ModePersonal,
		Phase:      PhaseWaitingChat,
		InFlight:   InFlight{Chat: "chat-1"},
		RequestSeq: 1,
	}
	state, _ = Reduce(state, ChatResult{RequestID: "chat-1", Text: "hi"}, 0, cfg)
	state, _ = Reduce(state, InnerTaskResult{RequestID: state.InFlight.MemoryExtract, JSON: `{"kind":"food","value":"apples"}`}, 1, cfg)

	if (state.ConsentDeadlineAtMs == nil) != (state.MemoryCandidate == nil) {
		t.Fatalf("consent deadline and memory candidate diverged: %+v", state)
	}
}

func TestUnknownRequestIDIsIgnored(t *testing.T) {
	cfg := DefaultConfig()
	state := State{Phase: PhaseWaitingSTT, InFlight: InFlight{STT: "stt-1"}}
	next, effects := Reduce(state, STTResult{RequestID: "stt-999", Text: "stale"}, 0, cfg)
	if !reflect.DeepEqual(next, state) {
		t.Fatalf("state mutated on stale id: %+v vs %+v", next, state)
	}
	if len(effects) != 0 {
		t.Fatalf("effects = %#v, want none for stale id", effects)
	}
}

func TestEmptySessionBufferSkipsSummaryDispatch(t *testing.T) {
	cfg := DefaultConfig()
	state := State{Phase: PhaseIdle, LastActionAtMs: 0}
	_, effects := Reduce(state, Tick{}, cfg.InactivityTimeoutMs, cfg)
	if len(effects) != 0 {
		t.Fatalf("effects = %#v, want none for empty buffer", effects)
	}
}

func TestInactivityDispatchesSummaryAtExactBoundary(t *testing.T) {
	cfg := DefaultConfig()
	state := State{
		Phase:          PhaseIdle,
		LastActionAtMs: 0,
		SessionBuffer:  []BufferMessage{{Role: "user", Text: "hello"}},
	}
	next, effects := Reduce(state, Tick{}, cfg.InactivityTimeoutMs, cfg)
	if len(effects) != 1 {
		t.Fatalf("effects = %#v, want exactly one CALL_INNER_TASK", effects)
	}
	call, ok := effects[0].(CallInnerTask)
	if !ok || call.Task != InnerTaskSessionSummary {
		t.Fatalf("effects[0] = %#v, want session_summary inner task", effects[0])
	}
	if len(next.SessionBuffer) != 0 {
		t.Fatalf("SessionBuffer = %#v, want cleared", next.SessionBuffer)
	}
}

func TestLegacyPersonalWakePhraseOffByDefault(t *testing.T) {
	cfg := DefaultConfig()
	state := State{Phase: PhaseWaitingSTT, InFlight: InFlight{STT: "stt-1"}}

	next, effects := Reduce(state, STTResult{RequestID: "stt-1", Text: "パーソナル、ゆうと"}, 10, cfg)
	if next.Mode != ModeRoom {
		t.Fatalf("mode = %q, want ROOM when LegacyPersonalWakeup is off", next.Mode)
	}
	call, ok := effects[len(effects)-1].(CallChat)
	if !ok {
		t.Fatalf("effects = %#v, want the wake phrase treated as ordinary chat input", effects)
	}
	if call.Input.Messages[len(call.Input.Messages)-1].Text != "パーソナル、ゆうと" {
		t.Fatalf("chat input = %#v, wake phrase text was not passed through", call.Input.Messages)
	}
}

func TestLegacyPersonalWakePhraseSwitchesModeWhenEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LegacyPersonalWakeup = true
	state := State{Phase: PhaseWaitingSTT, InFlight: InFlight{STT: "stt-1"}}

	next, effects := Reduce(state, STTResult{RequestID: "stt-1", Text: "パーソナル、ゆうと"}, 10, cfg)
	if next.Mode != ModePersonal || next.PersonalName != "ゆうと" {
		t.Fatalf("state = %+v, want PERSONAL mode with name ゆうと", next)
	}
	if next.Phase != PhaseIdle {
		t.Fatalf("phase = %q, want idle (no chat call dispatched for the wake phrase itself)", next.Phase)
	}
	wantEffects(t, effects,
		SetExpression{Expression: "neutral"},
		Say{Text: "ゆうとさん、こんにちは"},
	)
}

func wantEffects(t *testing.T, got []Effect, want ...Effect) {
	t.Helper()
	if !reflect.DeepEqual(got, []Effect(want)) {
		t.Fatalf("effects = %#v, want %#v", got, want)
	}
}
