package executor

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/antoniostano/kiosk/internal/kioskcmd"
	"github.com/antoniostano/kiosk/internal/orchestrator"
	"github.com/antoniostano/kiosk/internal/providers/llm"
	"github.com/antoniostano/kiosk/internal/sentence"
)

// chatCall tracks the mutable state shared between a CALL_CHAT effect's
// streaming goroutine (which emits speech segments as text arrives) and its
// finalize goroutine (which owns the authoritative CHAT_RESULT/CHAT_FAILED
// event). Segments are held back by one so the true last segment can be
// marked is_last only once the stream actually ends; this is the
// "peek-ahead" pattern.
type chatCall struct {
	mu sync.Mutex

	chatRequestID string
	utteranceID   string
	buffer        string

	pendingText string
	hasPending  bool

	segmentIndex        int
	emittedSegmentCount int
	utteranceStarted    bool
	finalized           bool
	startedAtMs         int64
	firstSegmentAtMs    int64

	gate     chan struct{}
	gateOnce sync.Once
}

func (e *Executor) startChatCall(ctx context.Context, eff orchestrator.CallChat, enqueue EnqueueFunc) {
	call := &chatCall{
		chatRequestID: eff.RequestID,
		utteranceID:   "chat-" + eff.RequestID,
		gate:          make(chan struct{}),
		startedAtMs:   e.deps.NowMs(),
	}

	streamCtx, cancelStream := context.WithCancel(ctx)
	input := e.toLLMChatInput(eff.Input)

	var streamGroup *errgroup.Group
	if llm.SupportsStreaming(e.deps.LLM) {
		streamGroup = &errgroup.Group{}
		streamGroup.Go(func() error {
			err := e.deps.LLM.Stream(streamCtx, input, func(delta string) error {
				e.onChatDelta(call, delta)
				return nil
			})
			e.finishStream(call, err)
			return err
		})
	} else {
		close(call.gate)
	}

	go func() {
		out, err := e.deps.LLM.Call(ctx, input)

		select {
		case <-call.gate:
		case <-time.After(0):
		}

		call.mu.Lock()
		call.finalized = true
		call.mu.Unlock()

		cancelStream()
		if streamGroup != nil {
			_ = streamGroup.Wait()
		}

		// Read the count only after the stream has finished, so a held-back
		// segment released by finishStream is counted as emitted.
		call.mu.Lock()
		emitted := call.emittedSegmentCount
		call.mu.Unlock()

		now := e.deps.NowMs()
		if emitted > 0 && e.deps.Correlation != nil {
			e.deps.Correlation.Set(call.chatRequestID, now)
		}

		if err != nil {
			e.deps.Logger.Warn().Err(err).Str("request_id", eff.RequestID).Msg("chat call failed")
			if e.deps.Metrics != nil {
				e.deps.Metrics.ObserveProviderError("llm", "chat")
			}
			enqueue(orchestrator.ChatFailed{RequestID: eff.RequestID}, now)
			return
		}

		enqueue(orchestrator.ChatResult{
			RequestID:  eff.RequestID,
			Text:       out.Text,
			Expression: out.Expression,
			MotionID:   out.MotionID,
			ToolCalls:  fromLLMToolCalls(out.ToolCalls),
		}, now)
	}()
}

func (e *Executor) onChatDelta(call *chatCall, delta string) {
	if delta == "" {
		return
	}

	call.mu.Lock()
	if call.finalized && call.emittedSegmentCount == 0 {
		call.mu.Unlock()
		return
	}
	call.buffer += delta
	complete, rest, ok := sentence.ExtractCompleteSentencePrefix(call.buffer)
	if !ok {
		call.mu.Unlock()
		return
	}
	call.buffer = rest
	segments := sentence.Split(complete)
	call.mu.Unlock()

	for _, seg := range segments {
		e.queueSegment(call, seg)
	}
}

// queueSegment releases any previously held-back segment (never the last
// one) and stores seg as the new pending segment.
func (e *Executor) queueSegment(call *chatCall, seg string) {
	call.mu.Lock()
	if !call.utteranceStarted {
		call.utteranceStarted = true
		e.deps.Sink.Send(kioskcmd.Envelope{
			Type: kioskcmd.TypeSpeechStart,
			Data: kioskcmd.SpeechStartData{UtteranceID: call.utteranceID, ChatRequestID: call.chatRequestID},
		})
	}
	prevText, hadPending := call.pendingText, call.hasPending
	call.pendingText, call.hasPending = seg, true
	firstSegment := call.emittedSegmentCount == 0 && !hadPending
	call.mu.Unlock()

	if hadPending {
		e.emitSegment(call, prevText, false)
	}
	if firstSegment {
		call.gateOnce.Do(func() { close(call.gate) })
	}
}

func (e *Executor) emitSegment(call *chatCall, text string, isLast bool) {
	call.mu.Lock()
	idx := call.segmentIndex
	call.segmentIndex++
	call.emittedSegmentCount++
	if call.emittedSegmentCount == 1 {
		call.firstSegmentAtMs = e.deps.NowMs()
	}
	call.mu.Unlock()

	e.deps.Sink.Send(kioskcmd.Envelope{
		Type: kioskcmd.TypeSpeechSegment,
		Data: kioskcmd.SpeechSegmentData{
			UtteranceID:   call.utteranceID,
			ChatRequestID: call.chatRequestID,
			SegmentIndex:  idx,
			Text:          text,
			IsLast:        isLast,
		},
	})
}

// releasePending flushes the held-back segment, if any, marking it isLast.
func (e *Executor) releasePending(call *chatCall, isLast bool) {
	call.mu.Lock()
	text, has := call.pendingText, call.hasPending
	call.hasPending = false
	call.pendingText = ""
	call.mu.Unlock()
	if has {
		e.emitSegment(call, text, isLast)
	}
}

// finishStream runs once the streaming goroutine's Stream call returns, by
// whatever cause: natural completion, provider error, or cancellation from
// a finalize that already has a full non-streaming result.
func (e *Executor) finishStream(call *chatCall, streamErr error) {
	call.mu.Lock()
	skippedFlush := call.finalized && call.emittedSegmentCount == 0 && !call.hasPending && call.buffer == ""
	remaining := call.buffer
	call.buffer = ""
	call.mu.Unlock()

	if !skippedFlush && remaining != "" {
		for _, seg := range sentence.Split(remaining) {
			e.queueSegment(call, seg)
		}
	}

	e.releasePending(call, true)

	call.mu.Lock()
	emitted := call.emittedSegmentCount
	started := call.utteranceStarted
	firstAt := call.firstSegmentAtMs
	startedAt := call.startedAtMs
	call.mu.Unlock()

	if started {
		e.deps.Sink.Send(kioskcmd.Envelope{
			Type: kioskcmd.TypeSpeechEnd,
			Data: kioskcmd.SpeechEndData{UtteranceID: call.utteranceID, ChatRequestID: call.chatRequestID},
		})
		if emitted > 0 && e.deps.Metrics != nil && firstAt >= startedAt {
			ttfa := time.Duration(firstAt-startedAt) * time.Millisecond
			e.deps.Metrics.ObserveFirstAudioLatency(ttfa)
			e.deps.Metrics.ObserveTurnStage("commit_to_first_audio", ttfa)
		}
	}

	if streamErr != nil && emitted == 0 {
		e.deps.Logger.Debug().Err(streamErr).Msg("chat stream ended without emitting any speech")
	}
}

func fromLLMToolCalls(in []llm.ToolCall) []orchestrator.ToolCall {
	out := make([]orchestrator.ToolCall, len(in))
	for i, tc := range in {
		out[i].ID = tc.ID
		out[i].Function.Name = tc.FunctionName
	}
	return out
}
