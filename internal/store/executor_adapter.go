package store

import (
	"context"
	"strings"

	"github.com/antoniostano/kiosk/internal/orchestrator"
)

// LegacyPendingWriter adapts Store to executor.LegacyPendingWriter, the
// direct-write path for a bare memory candidate with no session-summary
// framing.
func LegacyPendingWriter(s Store) func(ctx context.Context, candidate orchestrator.MemoryCandidate) error {
	return func(ctx context.Context, candidate orchestrator.MemoryCandidate) error {
		_, err := s.CreatePendingMemory(ctx, string(candidate.Kind), candidate.Value, candidate.SourceQuote)
		return err
	}
}

// SessionSummaryWriter adapts Store to executor.SessionSummaryWriter.
func SessionSummaryWriter(s Store) func(ctx context.Context, input orchestrator.SessionSummaryInput) error {
	return func(ctx context.Context, input orchestrator.SessionSummaryInput) error {
		title := strings.TrimSpace(input.Title)
		_, err := s.CreatePendingSessionSummary(ctx, title, input.Summary, input.Topics, input.StaffNotes)
		return err
	}
}
