// Package sessionbuffer clamps the orchestrator's rolling (role, text)
// window to a token budget before it is handed to the chat or
// session-summary inner task, so a long-running kiosk conversation never
// grows the outbound LLM payload unbounded.
package sessionbuffer

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/antoniostano/kiosk/internal/orchestrator"
)

// DefaultMaxTokens mirrors the teacher's memoryContextLimit order of
// magnitude, sized for a small local model's context window rather than a
// frontier model's.
const DefaultMaxTokens = 2048

// Clamper trims a session buffer to a token budget, dropping the oldest
// messages first. Building the tiktoken encoder is somewhat expensive, so
// one Clamper is constructed once and reused for the process lifetime.
type Clamper struct {
	maxTokens int
	encoding  *tiktoken.Tiktoken
}

// NewClamper builds a Clamper for maxTokens. If the tokenizer cannot be
// loaded (e.g. no network access to fetch its vocabulary on first use), the
// Clamper falls back to a conservative rune-count approximation instead of
// failing construction — this is a boundary component, not the reducer, so
// it is allowed to degrade gracefully.
func NewClamper(maxTokens int) *Clamper {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}
	return &Clamper{maxTokens: maxTokens, encoding: enc}
}

func (c *Clamper) tokenCount(text string) int {
	if c.encoding != nil {
		return len(c.encoding.Encode(text, nil, nil))
	}
	return len([]rune(text)) / 4
}

// Clamp returns the suffix of messages whose combined token count is within
// budget, keeping the most recent turns.
func (c *Clamper) Clamp(messages []orchestrator.BufferMessage) []orchestrator.BufferMessage {
	if len(messages) == 0 {
		return nil
	}

	total := 0
	cut := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		total += c.tokenCount(messages[i].Text)
		if total > c.maxTokens {
			cut = i + 1
			break
		}
		cut = i
	}
	return messages[cut:]
}
