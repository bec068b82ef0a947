// Package llm defines the chat and inner-task provider surface the effect
// executor consumes, mirroring the shape of the teacher's openclaw.Adapter
// (a required synchronous call plus an optional streaming delta callback).
package llm

import (
	"context"
	"errors"
)

// ErrStreamingUnsupported is returned by Stream on a Provider that only
// implements the synchronous Call path; the executor treats this the same
// as a nil stream function.
var ErrStreamingUnsupported = errors.New("llm: streaming not supported by this provider")

type Message struct {
	Role string
	Text string
}

type ChatInput struct {
	Mode         string
	PersonalName string
	Messages     []Message
}

type ToolCall struct {
	ID           string
	FunctionName string
}

type ChatOutput struct {
	Text       string
	Expression string
	MotionID   string
	ToolCalls  []ToolCall
}

// DeltaHandler receives one incremental chunk of streamed assistant text.
// Returning an error aborts the stream.
type DeltaHandler func(delta string) error

type InnerTaskInput struct {
	Task     string
	Messages []Message
	Extra    string
}

// Provider is implemented by every chat/inner-task backend: the mock used in
// tests and the concrete Anthropic-backed adapter.
type Provider interface {
	Call(ctx context.Context, input ChatInput) (ChatOutput, error)
	// Stream runs a streaming chat call, invoking onDelta for each chunk. A
	// Provider with no genuine streaming path returns
	// ErrStreamingUnsupported immediately.
	Stream(ctx context.Context, input ChatInput, onDelta DeltaHandler) error
	InnerTask(ctx context.Context, input InnerTaskInput) (string, error)
}

// SupportsStreaming reports whether calling Stream on p is worth attempting,
// so the executor can skip spawning a stream goroutine entirely for
// Call-only providers.
func SupportsStreaming(p Provider) bool {
	type streamCapable interface{ StreamingEnabled() bool }
	if sc, ok := p.(streamCapable); ok {
		return sc.StreamingEnabled()
	}
	return true
}
