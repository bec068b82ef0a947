package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/antoniostano/kiosk/internal/correlation"
	"github.com/antoniostano/kiosk/internal/kioskcmd"
	"github.com/antoniostano/kiosk/internal/orchestrator"
	"github.com/antoniostano/kiosk/internal/providers/llm"
)

// recordingSink collects every envelope sent to it, in order, safe for
// concurrent use since the executor emits from multiple goroutines.
type recordingSink struct {
	mu   sync.Mutex
	envs []kioskcmd.Envelope
}

func (s *recordingSink) Send(e kioskcmd.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envs = append(s.envs, e)
}

func (s *recordingSink) snapshot() []kioskcmd.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]kioskcmd.Envelope, len(s.envs))
	copy(out, s.envs)
	return out
}

func (s *recordingSink) typesOf() []kioskcmd.Type {
	snap := s.snapshot()
	out := make([]kioskcmd.Type, len(snap))
	for i, e := range snap {
		out[i] = e.Type
	}
	return out
}

// eventCollector gathers events enqueued by the executor and lets tests
// block until one arrives.
type eventCollector struct {
	mu     sync.Mutex
	events []orchestrator.Event
	ch     chan struct{}
}

func newEventCollector() *eventCollector {
	return &eventCollector{ch: make(chan struct{}, 16)}
}

func (c *eventCollector) enqueue(ev orchestrator.Event, nowMs int64) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	c.ch <- struct{}{}
}

func (c *eventCollector) waitForOne(t *testing.T) orchestrator.Event {
	t.Helper()
	select {
	case <-c.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

func newTestExecutor(llmProvider llm.Provider, sink *recordingSink) *Executor {
	var clock int64
	var mu sync.Mutex
	return New(Deps{
		LLM:         llmProvider,
		Correlation: correlation.New(),
		Sink:        sink,
		Logger:      zerolog.Nop(),
		NowMs: func() int64 {
			mu.Lock()
			defer mu.Unlock()
			clock++
			return clock
		},
	})
}

// TestStreamingChatEmitsSegmentsThenFinalEvent covers scenario S3: a
// streaming-capable provider emits speech segments while the call is still
// in flight, and the final CHAT_RESULT still reaches the orchestrator.
func TestStreamingChatEmitsSegmentsThenFinalEvent(t *testing.T) {
	provider := &llm.MockProvider{
		Streaming: true,
		Reply:     llm.ChatOutput{Text: "Hello there. How are you today?", Expression: "happy"},
	}
	sink := &recordingSink{}
	exec := newTestExecutor(provider, sink)
	collector := newEventCollector()

	exec.Execute(context.Background(), []orchestrator.Effect{
		orchestrator.CallChat{RequestID: "chat-1", Input: orchestrator.ChatInput{Mode: orchestrator.ModeRoom}},
	}, collector.enqueue)

	ev := collector.waitForOne(t)
	result, ok := ev.(orchestrator.ChatResult)
	require.True(t, ok, "expected ChatResult, got %T", ev)
	require.Equal(t, "chat-1", result.RequestID)
	require.Equal(t, "Hello there. How are you today?", result.Text)

	types := sink.typesOf()
	require.Contains(t, types, kioskcmd.TypeSpeechStart)
	require.Contains(t, types, kioskcmd.TypeSpeechSegment)
	require.Contains(t, types, kioskcmd.TypeSpeechEnd)

	require.Equal(t, kioskcmd.TypeSpeechStart, types[0])
	require.Equal(t, kioskcmd.TypeSpeechEnd, types[len(types)-1])

	var sawLast bool
	for _, e := range sink.snapshot() {
		if seg, ok := e.Data.(kioskcmd.SpeechSegmentData); ok && seg.IsLast {
			sawLast = true
		}
	}
	require.True(t, sawLast, "expected a segment marked is_last")

	require.Equal(t, 1, exec.deps.Correlation.Len())
}

// partialThenFailProvider lets a test release the stream goroutine only after
// it has already emitted a partial segment, then fails it, reproducing S4.
type partialThenFailProvider struct {
	delivered chan struct{}
}

func (p *partialThenFailProvider) StreamingEnabled() bool { return true }

func (p *partialThenFailProvider) Call(ctx context.Context, input llm.ChatInput) (llm.ChatOutput, error) {
	<-p.delivered
	return llm.ChatOutput{}, context.DeadlineExceeded
}

func (p *partialThenFailProvider) Stream(ctx context.Context, input llm.ChatInput, onDelta llm.DeltaHandler) error {
	if err := onDelta("Partial sentence one."); err != nil {
		return err
	}
	close(p.delivered)
	<-ctx.Done()
	return ctx.Err()
}

func (p *partialThenFailProvider) InnerTask(ctx context.Context, input llm.InnerTaskInput) (string, error) {
	return "{}", nil
}

// TestStreamFailsAfterPartialEmission covers scenario S4: the stream emits
// at least one segment, then the call ultimately fails; the orchestrator
// still receives CHAT_FAILED, and the speech that was already spoken is not
// retracted.
func TestStreamFailsAfterPartialEmission(t *testing.T) {
	provider := &partialThenFailProvider{delivered: make(chan struct{})}
	sink := &recordingSink{}
	exec := newTestExecutor(provider, sink)
	collector := newEventCollector()

	exec.Execute(context.Background(), []orchestrator.Effect{
		orchestrator.CallChat{RequestID: "chat-2", Input: orchestrator.ChatInput{Mode: orchestrator.ModeRoom}},
	}, collector.enqueue)

	<-provider.delivered

	ev := collector.waitForOne(t)
	failed, ok := ev.(orchestrator.ChatFailed)
	require.True(t, ok, "expected ChatFailed, got %T", ev)
	require.Equal(t, "chat-2", failed.RequestID)

	types := sink.typesOf()
	require.Contains(t, types, kioskcmd.TypeSpeechStart)
	require.Contains(t, types, kioskcmd.TypeSpeechSegment)
	require.Contains(t, types, kioskcmd.TypeSpeechEnd)
}

// TestSayWithKnownStreamedChatSkipsResegmentation covers invariant 5: a SAY
// effect whose chat_request_id was already recorded by the streaming
// coordinator emits only kiosk.command.speak, never a second speech.start.
func TestSayWithKnownStreamedChatSkipsResegmentation(t *testing.T) {
	sink := &recordingSink{}
	exec := newTestExecutor(&llm.MockProvider{}, sink)
	exec.deps.Correlation.Set("chat-9", 1)

	exec.Execute(context.Background(), []orchestrator.Effect{
		orchestrator.Say{Text: "already spoken", ChatRequestID: "chat-9"},
	}, func(orchestrator.Event, int64) {})

	types := sink.typesOf()
	require.Equal(t, []kioskcmd.Type{kioskcmd.TypeSpeak}, types)
	require.Equal(t, 0, exec.deps.Correlation.Len())
}

// TestSayWithoutStreamedAntecedentSegmentsNormally covers the ordinary SAY
// path for a reply that was never streamed (e.g. a fallback or inner-task
// driven message).
func TestSayWithoutStreamedAntecedentSegmentsNormally(t *testing.T) {
	sink := &recordingSink{}
	exec := newTestExecutor(&llm.MockProvider{}, sink)

	exec.Execute(context.Background(), []orchestrator.Effect{
		orchestrator.Say{Text: "覚えていい？", ChatRequestID: ""},
	}, func(orchestrator.Event, int64) {})

	types := sink.typesOf()
	require.Equal(t, kioskcmd.TypeSpeechStart, types[0])
	require.Contains(t, types, kioskcmd.TypeSpeechSegment)
	require.Equal(t, kioskcmd.TypeSpeak, types[len(types)-1])
}
