// Package executor is the impure side of the kiosk: it interprets the
// orchestrator's declarative effects, drives STT/LLM providers, and feeds
// result events back through an injected enqueue callback. The streaming
// coordinator in stream.go is the one genuinely hard sub-part — it races a
// non-streaming chat call against an optional streaming one under a shared
// cancellation scope.
package executor

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/antoniostano/kiosk/internal/correlation"
	"github.com/antoniostano/kiosk/internal/kioskcmd"
	"github.com/antoniostano/kiosk/internal/observability"
	"github.com/antoniostano/kiosk/internal/orchestrator"
	"github.com/antoniostano/kiosk/internal/providers/llm"
	"github.com/antoniostano/kiosk/internal/providers/stt"
	"github.com/antoniostano/kiosk/internal/sentence"
	"github.com/antoniostano/kiosk/internal/sessionbuffer"
)

// EnqueueFunc delivers a follow-up event back onto the orchestrator's event
// queue; it must be safe to call from any goroutine.
type EnqueueFunc func(event orchestrator.Event, nowMs int64)

// SessionSummaryWriter persists a normalized session-summary pending input.
type SessionSummaryWriter func(ctx context.Context, input orchestrator.SessionSummaryInput) error

// LegacyPendingWriter is the legacy direct-write path named in the error
// handling design; when it is nil, STORE_WRITE_PENDING fails hard (the
// executor panics) as the contract requires.
type LegacyPendingWriter func(ctx context.Context, candidate orchestrator.MemoryCandidate) error

type Deps struct {
	STT                  stt.Provider
	LLM                  llm.Provider
	Correlation          *correlation.Table
	SessionBuffer        *sessionbuffer.Clamper
	Sink                 kioskcmd.Sink
	Metrics              *observability.Metrics
	SessionSummaryWriter SessionSummaryWriter
	LegacyPendingWriter  LegacyPendingWriter
	Logger               zerolog.Logger
	NowMs                func() int64
}

type Executor struct {
	deps Deps

	mu                sync.Mutex
	sayCounter        int64
	currentExpression string
}

func New(deps Deps) *Executor {
	if deps.NowMs == nil {
		deps.NowMs = func() int64 { return 0 }
	}
	if deps.SessionBuffer == nil {
		deps.SessionBuffer = sessionbuffer.NewClamper(sessionbuffer.DefaultMaxTokens)
	}
	return &Executor{deps: deps}
}

// Execute interprets effects in order. Effects that complete synchronously
// (everything except CALL_CHAT and CALL_INNER_TASK) never touch enqueue;
// the two async effects spawn goroutines that call enqueue once a provider
// responds.
func (e *Executor) Execute(ctx context.Context, effects []orchestrator.Effect, enqueue EnqueueFunc) {
	for _, eff := range effects {
		e.executeOne(ctx, eff, enqueue)
	}
}

func (e *Executor) executeOne(ctx context.Context, eff orchestrator.Effect, enqueue EnqueueFunc) {
	switch v := eff.(type) {
	case orchestrator.KioskRecordStart:
		e.deps.Sink.Send(kioskcmd.Envelope{Type: kioskcmd.TypeRecordStart})

	case orchestrator.KioskRecordStop:
		e.deps.Sink.Send(kioskcmd.Envelope{
			Type: kioskcmd.TypeRecordStop,
			Data: kioskcmd.RecordStopData{STTRequestID: v.STTRequestID},
		})

	case orchestrator.CallSTT:
		// The actual provider call happens out of band, via TranscribeSTT,
		// once the kiosk's multipart upload for this request id arrives.
		// This effect only marks that the reducer is now expecting it.

	case orchestrator.CallChat:
		e.startChatCall(ctx, v, enqueue)

	case orchestrator.CallInnerTask:
		e.startInnerTask(ctx, v, enqueue)

	case orchestrator.Say:
		e.handleSay(v)

	case orchestrator.KioskToolCalls:
		e.deps.Sink.Send(kioskcmd.Envelope{
			Type: kioskcmd.TypeToolCalls,
			Data: kioskcmd.ToolCallsData{ToolCalls: mapToolCalls(v.ToolCalls)},
		})

	case orchestrator.SetExpression:
		e.mu.Lock()
		e.currentExpression = v.Expression
		e.mu.Unlock()

	case orchestrator.PlayMotion:
		e.deps.Sink.Send(kioskcmd.Envelope{
			Type: kioskcmd.TypePlayMotion,
			Data: kioskcmd.PlayMotionData{MotionID: v.MotionID, MotionInstanceID: v.InstanceID},
		})

	case orchestrator.SetMode, orchestrator.ShowConsentUI:
		// State-only; the kiosk observes these through snapshot broadcasts.

	case orchestrator.StoreWriteSessionSummaryPending:
		e.writeSessionSummary(ctx, v)

	case orchestrator.StoreWritePending:
		e.writeLegacyPending(ctx, v)

	default:
		e.deps.Logger.Warn().Msgf("executor: unhandled effect %T", eff)
	}
}

func (e *Executor) writeSessionSummary(ctx context.Context, v orchestrator.StoreWriteSessionSummaryPending) {
	if e.deps.SessionSummaryWriter == nil {
		return
	}
	if err := e.deps.SessionSummaryWriter(ctx, v.Input); err != nil {
		e.deps.Logger.Error().Err(err).Msg("executor: persisting session summary failed")
	}
}

func (e *Executor) writeLegacyPending(ctx context.Context, v orchestrator.StoreWritePending) {
	if e.deps.LegacyPendingWriter == nil {
		// Contract: a legacy write with no registered handler is a fatal
		// configuration error, not a silent drop.
		panic("executor: STORE_WRITE_PENDING emitted with no legacy handler registered")
	}
	if err := e.deps.LegacyPendingWriter(ctx, v.Candidate); err != nil {
		e.deps.Logger.Error().Err(err).Msg("executor: legacy pending write failed")
	}
}

// TranscribeSTT is the entry point reached directly by the HTTP layer once
// a kiosk PTT recording is uploaded, not via an effect dispatch. On
// transcription failure it enqueues STTFailed rather than returning an
// error, since the caller (an HTTP handler) has already accepted the
// upload and cannot surface a synchronous result to the kiosk.
func (e *Executor) TranscribeSTT(ctx context.Context, requestID, mode string, wav []byte, enqueue EnqueueFunc) {
	go func() {
		out, err := e.deps.STT.Transcribe(ctx, stt.TranscribeInput{Mode: mode, WAV: wav})
		now := e.deps.NowMs()
		if err != nil {
			e.deps.Logger.Warn().Err(err).Str("request_id", requestID).Msg("stt transcribe failed")
			if e.deps.Metrics != nil {
				e.deps.Metrics.ObserveProviderError("stt", "transcribe")
			}
			enqueue(orchestrator.STTFailed{RequestID: requestID}, now)
			return
		}
		enqueue(orchestrator.STTResult{RequestID: requestID, Text: out.Text}, now)
	}()
}

func mapToolCalls(in []orchestrator.ToolCall) []kioskcmd.ToolCallSummary {
	out := make([]kioskcmd.ToolCallSummary, len(in))
	for i, tc := range in {
		out[i].ID = tc.ID
		out[i].Function.Name = tc.Function.Name
	}
	return out
}

func nextSayID(counter *int64) string {
	n := atomic.AddInt64(counter, 1)
	return "say-" + strconv.FormatInt(n, 10)
}

// handleSay implements the SAY effect dispatch described in the streaming
// coordinator section: it probes the correlation table first so a chat
// already streamed as speech is not spoken twice.
func (e *Executor) handleSay(v orchestrator.Say) {
	nowMs := e.deps.NowMs()

	streamAlreadyHandled := false
	if v.ChatRequestID != "" && e.deps.Correlation != nil {
		streamAlreadyHandled = e.deps.Correlation.Delete(v.ChatRequestID, nowMs)
	}

	utteranceID := nextSayID(&e.sayCounter)
	effectiveChatID := v.ChatRequestID
	if effectiveChatID == "" {
		effectiveChatID = utteranceID
	}

	if !streamAlreadyHandled {
		segments := sentence.Split(v.Text)
		e.deps.Sink.Send(kioskcmd.Envelope{
			Type: kioskcmd.TypeSpeechStart,
			Data: kioskcmd.SpeechStartData{UtteranceID: utteranceID, ChatRequestID: v.ChatRequestID},
		})
		for i, seg := range segments {
			e.deps.Sink.Send(kioskcmd.Envelope{
				Type: kioskcmd.TypeSpeechSegment,
				Data: kioskcmd.SpeechSegmentData{
					UtteranceID:   utteranceID,
					ChatRequestID: v.ChatRequestID,
					SegmentIndex:  i,
					Text:          seg,
					IsLast:        i == len(segments)-1,
				},
			})
		}
		e.deps.Sink.Send(kioskcmd.Envelope{
			Type: kioskcmd.TypeSpeechEnd,
			Data: kioskcmd.SpeechEndData{UtteranceID: utteranceID, ChatRequestID: v.ChatRequestID},
		})
		// This SAY never streamed (fallback text, STT retry prompt, consent
		// ack, ...), so its segments were all ready at once: TTFA is the
		// effect-dispatch latency itself, not a provider wait.
		if len(segments) > 0 && e.deps.Metrics != nil {
			e.deps.Metrics.ObserveFirstAudioLatency(0)
			e.deps.Metrics.ObserveTurnStage("commit_to_first_audio", 0)
		}
	}

	say := kioskcmd.SpeakData{SayID: effectiveChatID, Text: v.Text}
	e.mu.Lock()
	say.Expression = e.currentExpression
	e.mu.Unlock()
	e.deps.Sink.Send(kioskcmd.Envelope{Type: kioskcmd.TypeSpeak, Data: say})
}

func (e *Executor) startInnerTask(ctx context.Context, v orchestrator.CallInnerTask, enqueue EnqueueFunc) {
	go func() {
		input := llm.InnerTaskInput{Task: string(v.Task)}
		switch v.Task {
		case orchestrator.InnerTaskConsentDecision:
			input.Extra = v.Input.ConsentUtterance
		case orchestrator.InnerTaskMemoryExtract:
			input.Messages = toLLMMessages(e.deps.SessionBuffer.Clamp(v.Input.ChatContext))
		case orchestrator.InnerTaskSessionSummary:
			input.Messages = toLLMMessages(e.deps.SessionBuffer.Clamp(v.Input.SessionMessages))
		}

		jsonText, err := e.deps.LLM.InnerTask(ctx, input)
		now := e.deps.NowMs()
		if err != nil {
			e.deps.Logger.Warn().Err(err).Str("request_id", v.RequestID).Msg("inner task failed")
			if e.deps.Metrics != nil {
				e.deps.Metrics.ObserveProviderError("llm", string(v.Task))
			}
			enqueue(orchestrator.InnerTaskFailed{RequestID: v.RequestID}, now)
			return
		}
		enqueue(orchestrator.InnerTaskResult{RequestID: v.RequestID, JSON: jsonText}, now)
	}()
}

func toLLMMessages(in []orchestrator.BufferMessage) []llm.Message {
	out := make([]llm.Message, len(in))
	for i, m := range in {
		out[i] = llm.Message{Role: m.Role, Text: m.Text}
	}
	return out
}

func (e *Executor) toLLMChatInput(in orchestrator.ChatInput) llm.ChatInput {
	return llm.ChatInput{
		Mode:         string(in.Mode),
		PersonalName: in.PersonalName,
		Messages:     toLLMMessages(e.deps.SessionBuffer.Clamp(in.Messages)),
	}
}
