package sessionbuffer

import (
	"strings"
	"testing"

	"github.com/antoniostano/kiosk/internal/orchestrator"
)

func TestClampKeepsMostRecentMessages(t *testing.T) {
	c := NewClamper(10)
	msgs := []orchestrator.BufferMessage{
		{Role: "user", Text: strings.Repeat("word ", 50)},
		{Role: "assistant", Text: "hi"},
	}
	got := c.Clamp(msgs)
	if len(got) == 0 {
		t.Fatalf("Clamp() returned no messages")
	}
	if got[len(got)-1].Text != "hi" {
		t.Fatalf("Clamp() dropped the most recent message")
	}
}

func TestClampEmptyInput(t *testing.T) {
	c := NewClamper(100)
	if got := c.Clamp(nil); got != nil {
		t.Fatalf("Clamp(nil) = %#v, want nil", got)
	}
}
