package orchestrator

// Reduce advances state by exactly one event. It never performs I/O, reads a
// clock, or generates randomness; nowMs and cfg are the reducer's only
// inputs besides state and event, which makes it deterministic and safe to
// replay in tests.
func Reduce(state State, event Event, nowMs int64, cfg Config) (State, []Effect) {
	if state.IsEmergencyStopped {
		if _, ok := event.(StaffResume); !ok {
			return state, nil
		}
	}

	switch ev := event.(type) {
	case PTTDown:
		return reducePTTDown(state, ev, nowMs)
	case PTTUp:
		return reducePTTUp(state, ev, nowMs)
	case STTResult:
		return reduceSTTResult(state, ev, nowMs, cfg)
	case STTFailed:
		return reduceSTTFailed(state, ev)
	case ChatResult:
		return reduceChatResult(state, ev, nowMs)
	case ChatFailed:
		return reduceChatFailed(state, ev)
	case InnerTaskResult:
		return reduceInnerTaskResult(state, ev, nowMs, cfg)
	case InnerTaskFailed:
		return reduceInnerTaskFailed(state, ev)
	case UIConsentButton:
		return reduceUIConsentButton(state, ev)
	case StaffEmergencyStop:
		return reduceStaffReset(state, nowMs, true)
	case StaffResetSession:
		return reduceStaffReset(state, nowMs, false)
	case StaffResume:
		state.IsEmergencyStopped = false
		return state, nil
	case Tick:
		return reduceTick(state, nowMs, cfg)
	default:
		return state, nil
	}
}

func reducePTTDown(state State, ev PTTDown, nowMs int64) (State, []Effect) {
	switch state.Phase {
	case PhaseIdle, PhaseAskingConsent:
		state = state.withPTTHeld(ev.Source, true)
		state.LastActionAtMs = nowMs
		state.Phase = PhaseListening
		return state, []Effect{KioskRecordStart{}}
	case PhaseListening:
		state = state.withPTTHeld(ev.Source, true)
		state.LastActionAtMs = nowMs
		return state, nil
	default:
		return state, nil
	}
}

func reducePTTUp(state State, ev PTTUp, nowMs int64) (State, []Effect) {
	if state.Phase != PhaseListening {
		return state, nil
	}
	state = state.withPTTHeld(ev.Source, false)
	state.LastActionAtMs = nowMs
	if state.anyPTTHeld() {
		return state, nil
	}

	var sttID string
	state, sttID = state.mintID("stt")
	state.InFlight.STT = sttID
	state.Phase = PhaseWaitingSTT
	return state, []Effect{
		KioskRecordStop{STTRequestID: sttID},
		CallSTT{RequestID: sttID},
	}
}

func reduceSTTResult(state State, ev STTResult, nowMs int64, cfg Config) (State, []Effect) {
	if ev.RequestID == "" || ev.RequestID != state.InFlight.STT {
		return state, nil
	}
	state.InFlight.STT = ""
	state.LastActionAtMs = nowMs

	if cfg.LegacyPersonalWakeup && state.ConsentDeadlineAtMs == nil {
		if name, ok := parseLegacyPersonalWakePhrase(ev.Text); ok {
			state.Mode = ModePersonal
			state.PersonalName = name
			state.Phase = PhaseIdle
			return state, []Effect{
				SetExpression{Expression: "neutral"},
				Say{Text: personalWakeAckText(name)},
			}
		}
	}

	if state.ConsentDeadlineAtMs != nil {
		var innerID string
		state, innerID = state.mintID("inner")
		state.InFlight.ConsentInner = innerID
		state.Phase = PhaseWaitingInnerTask
		return state, []Effect{
			CallInnerTask{
				RequestID: innerID,
				Task:      InnerTaskConsentDecision,
				Input:     InnerTaskInput{ConsentUtterance: ev.Text},
			},
		}
	}

	state = state.appendBuffer("user", ev.Text)
	var chatID string
	state, chatID = state.mintID("chat")
	state.InFlight.Chat = chatID
	state.Phase = PhaseWaitingChat
	return state, []Effect{
		PlayMotion{MotionID: "thinking", InstanceID: motionInstanceID(chatID, "thinking")},
		CallChat{
			RequestID: chatID,
			Input: ChatInput{
				Mode:         state.Mode,
				PersonalName: state.PersonalName,
				Messages:     state.SessionBuffer,
			},
		},
	}
}

func reduceSTTFailed(state State, ev STTFailed) (State, []Effect) {
	if ev.RequestID == "" || ev.RequestID != state.InFlight.STT {
		return state, nil
	}
	state.InFlight.STT = ""
	if state.ConsentDeadlineAtMs != nil {
		state.Phase = PhaseAskingConsent
	} else {
		state.Phase = PhaseIdle
	}
	return state, []Effect{Say{Text: sttFallbackText}}
}

func reduceChatResult(state State, ev ChatResult, nowMs int64) (State, []Effect) {
	if ev.RequestID == "" || ev.RequestID != state.InFlight.Chat {
		return state, nil
	}
	state.InFlight.Chat = ""
	state.LastActionAtMs = nowMs
	state = state.appendBuffer("assistant", ev.Text)

	effects := []Effect{
		SetExpression{Expression: ev.Expression},
		PlayMotion{MotionID: allowedResultMotion(ev.MotionID), InstanceID: motionInstanceID(ev.RequestID, "")},
	}
	if len(ev.ToolCalls) > 0 {
		effects = append(effects, KioskToolCalls{ToolCalls: ev.ToolCalls})
	}
	effects = append(effects, Say{Text: ev.Text, ChatRequestID: ev.RequestID})

	if state.Mode == ModePersonal && state.MemoryCandidate == nil {
		var innerID string
		state, innerID = state.mintID("inner")
		state.InFlight.MemoryExtract = innerID
		state.Phase = PhaseWaitingInnerTask
		effects = append(effects, CallInnerTask{
			RequestID: innerID,
			Task:      InnerTaskMemoryExtract,
			Input:     InnerTaskInput{ChatContext: state.SessionBuffer},
		})
		return state, effects
	}

	state.Phase = PhaseIdle
	return state, effects
}

func reduceChatFailed(state State, ev ChatFailed) (State, []Effect) {
	if ev.RequestID == "" || ev.RequestID != state.InFlight.Chat {
		return state, nil
	}
	state.InFlight.Chat = ""
	state.Phase = PhaseIdle
	return state, []Effect{
		PlayMotion{MotionID: "idle", InstanceID: motionInstanceID(ev.RequestID, "fallback")},
		Say{Text: chatFallbackText, ChatRequestID: ev.RequestID},
	}
}

func reduceInnerTaskResult(state State, ev InnerTaskResult, nowMs int64, cfg Config) (State, []Effect) {
	switch ev.RequestID {
	case state.InFlight.ConsentInner:
		state.InFlight.ConsentInner = ""
		answer, ok := parseConsentDecision(ev.JSON)
		if !ok || answer == "unknown" {
			state.Phase = PhaseAskingConsent
			return state, nil
		}
		return applyConsentDecision(state, answer == string(ConsentYes))

	case state.InFlight.MemoryExtract:
		state.InFlight.MemoryExtract = ""
		candidate, ok := parseMemoryCandidate(ev.JSON)
		if !ok {
			state.Phase = PhaseIdle
			return state, nil
		}
		state.MemoryCandidate = candidate
		deadline := nowMs + cfg.ConsentTimeoutMs
		state.ConsentDeadlineAtMs = &deadline
		state.Phase = PhaseAskingConsent
		return state, []Effect{
			Say{Text: consentAskText},
			ShowConsentUI{Visible: true},
		}

	case state.InFlight.SessionSummary:
		state.InFlight.SessionSummary = ""
		input := parseSessionSummary(ev.JSON)
		return state, []Effect{StoreWriteSessionSummaryPending{Input: input}}

	default:
		return state, nil
	}
}

func reduceInnerTaskFailed(state State, ev InnerTaskFailed) (State, []Effect) {
	switch ev.RequestID {
	case state.InFlight.ConsentInner:
		state.InFlight.ConsentInner = ""
		state.Phase = PhaseAskingConsent
		return state, nil
	case state.InFlight.MemoryExtract:
		state.InFlight.MemoryExtract = ""
		state.Phase = PhaseIdle
		return state, nil
	case state.InFlight.SessionSummary:
		state.InFlight.SessionSummary = ""
		return state, nil
	default:
		return state, nil
	}
}

// applyConsentDecision implements the shared "yes/no" disposition used by
// both a resolved consent_decision inner task and a direct UI button press.
func applyConsentDecision(state State, approved bool) (State, []Effect) {
	var effects []Effect
	if approved && state.MemoryCandidate != nil {
		effects = append(effects, StoreWritePending{Candidate: *state.MemoryCandidate})
	}
	effects = append(effects, ShowConsentUI{Visible: false})
	state = state.clearConsent()
	state.Phase = PhaseIdle
	return state, effects
}

func reduceUIConsentButton(state State, ev UIConsentButton) (State, []Effect) {
	if state.Phase == PhaseListening {
		return state, nil
	}
	if state.Phase == PhaseWaitingInnerTask && state.InFlight.ConsentInner != "" {
		state.InFlight.ConsentInner = ""
		return applyConsentDecision(state, ev.Answer == ConsentYes)
	}
	if state.Phase == PhaseAskingConsent {
		return applyConsentDecision(state, ev.Answer == ConsentYes)
	}
	return state, nil
}

func reduceStaffReset(state State, nowMs int64, emergency bool) (State, []Effect) {
	var effects []Effect
	if state.Phase == PhaseListening {
		effects = append(effects, KioskRecordStop{})
	}
	motionID := "motion-reset-session"
	if emergency {
		motionID = "motion-emergency-stop"
	}
	effects = append(effects,
		PlayMotion{MotionID: "idle", InstanceID: motionID},
		SetMode{Mode: ModeRoom},
		ShowConsentUI{Visible: false},
	)

	state = state.resetForRoom()
	state.LastActionAtMs = nowMs
	state.IsEmergencyStopped = emergency
	return state, effects
}

func reduceTick(state State, nowMs int64, cfg Config) (State, []Effect) {
	var effects []Effect

	if state.ConsentDeadlineAtMs != nil && nowMs >= *state.ConsentDeadlineAtMs && state.Phase != PhaseListening {
		state = state.clearConsent()
		state.InFlight.ConsentInner = ""
		if state.Phase == PhaseAskingConsent || state.Phase == PhaseWaitingInnerTask {
			state.Phase = PhaseIdle
		}
		effects = append(effects,
			Say{Text: consentForgetText},
			ShowConsentUI{Visible: false},
		)
	}

	if state.Phase == PhaseIdle && state.InFlight.SessionSummary == "" &&
		nowMs-state.LastActionAtMs >= cfg.InactivityTimeoutMs && len(state.SessionBuffer) > 0 {
		var innerID string
		state, innerID = state.mintID("inner")
		state.InFlight.SessionSummary = innerID
		messages := state.SessionBuffer
		state = state.clearBuffer()
		effects = append(effects, CallInnerTask{
			RequestID: innerID,
			Task:      InnerTaskSessionSummary,
			Input:     InnerTaskInput{SessionMessages: messages},
		})
	}

	return state, effects
}
