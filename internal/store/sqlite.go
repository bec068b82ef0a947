// Package store persists the two kinds of staff-reviewable pending record
// the kiosk produces: memory candidates extracted from PERSONAL-mode
// conversation, and end-of-session summaries. Storage is deliberately
// opaque to the orchestrator core, mirroring the teacher's memory.Store
// abstraction, but backed by an embedded SQLite file instead of a Postgres
// server since the kiosk runs as a single LAN-local process.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDenied    Status = "denied"
)

// PendingMemory is a staff-reviewable memory candidate awaiting disposition.
type PendingMemory struct {
	ID          string
	Kind        string
	Value       string
	SourceQuote string
	Status      Status
	CreatedAt   time.Time
}

// PendingSessionSummary is a staff-reviewable end-of-session summary.
type PendingSessionSummary struct {
	ID         string
	Title      string
	Summary    string
	Topics     []string
	StaffNotes []string
	Status     Status
	CreatedAt  time.Time
}

// Store is the persistence surface the kiosk service depends on.
type Store interface {
	CreatePendingMemory(ctx context.Context, kind, value, sourceQuote string) (string, error)
	CreatePendingSessionSummary(ctx context.Context, title, summary string, topics, staffNotes []string) (string, error)
	ListPendingSessionSummaries(ctx context.Context) ([]PendingSessionSummary, error)
	ListPendingMemories(ctx context.Context) ([]PendingMemory, error)
	ConfirmPendingMemory(ctx context.Context, id string) error
	DenyPendingMemory(ctx context.Context, id string) error
	ConfirmPendingSessionSummary(ctx context.Context, id string) error
	DenyPendingSessionSummary(ctx context.Context, id string) error
	Close() error
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store at %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers anyway; avoid SQLITE_BUSY churn.

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pending_memory (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			value TEXT NOT NULL,
			source_quote TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS pending_session_summary (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			summary TEXT NOT NULL,
			topics_json TEXT NOT NULL,
			staff_notes_json TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pending_memory_status ON pending_memory (status, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_pending_summary_status ON pending_session_summary (status, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *SQLiteStore) CreatePendingMemory(ctx context.Context, kind, value, sourceQuote string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_memory (id, kind, value, source_quote, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, kind, value, sourceQuote, StatusPending, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("create pending memory: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) CreatePendingSessionSummary(ctx context.Context, title, summary string, topics, staffNotes []string) (string, error) {
	topicsJSON, err := json.Marshal(topics)
	if err != nil {
		return "", fmt.Errorf("marshal topics: %w", err)
	}
	notesJSON, err := json.Marshal(staffNotes)
	if err != nil {
		return "", fmt.Errorf("marshal staff notes: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pending_session_summary (id, title, summary, topics_json, staff_notes_json, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, title, summary, string(topicsJSON), string(notesJSON), StatusPending, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("create pending session summary: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) ListPendingSessionSummaries(ctx context.Context) ([]PendingSessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, summary, topics_json, staff_notes_json, status, created_at
		 FROM pending_session_summary WHERE status = ? ORDER BY created_at ASC`,
		StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending session summaries: %w", err)
	}
	defer rows.Close()

	var out []PendingSessionSummary
	for rows.Next() {
		var (
			rec                           PendingSessionSummary
			topicsJSON, notesJSON, created string
		)
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Summary, &topicsJSON, &notesJSON, &rec.Status, &created); err != nil {
			return nil, fmt.Errorf("scan pending session summary: %w", err)
		}
		if err := json.Unmarshal([]byte(topicsJSON), &rec.Topics); err != nil {
			return nil, fmt.Errorf("unmarshal topics: %w", err)
		}
		if err := json.Unmarshal([]byte(notesJSON), &rec.StaffNotes); err != nil {
			return nil, fmt.Errorf("unmarshal staff notes: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListPendingMemories(ctx context.Context) ([]PendingMemory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, value, source_quote, status, created_at
		 FROM pending_memory WHERE status = ? ORDER BY created_at ASC`,
		StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending memories: %w", err)
	}
	defer rows.Close()

	var out []PendingMemory
	for rows.Next() {
		var rec PendingMemory
		var created string
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Value, &rec.SourceQuote, &rec.Status, &created); err != nil {
			return nil, fmt.Errorf("scan pending memory: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ConfirmPendingMemory(ctx context.Context, id string) error {
	return s.setMemoryStatus(ctx, id, StatusConfirmed)
}

func (s *SQLiteStore) DenyPendingMemory(ctx context.Context, id string) error {
	return s.setMemoryStatus(ctx, id, StatusDenied)
}

func (s *SQLiteStore) setMemoryStatus(ctx context.Context, id string, status Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE pending_memory SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update pending memory %q: %w", id, err)
	}
	return requireRowAffected(res, id)
}

func (s *SQLiteStore) ConfirmPendingSessionSummary(ctx context.Context, id string) error {
	return s.setSummaryStatus(ctx, id, StatusConfirmed)
}

func (s *SQLiteStore) DenyPendingSessionSummary(ctx context.Context, id string) error {
	return s.setSummaryStatus(ctx, id, StatusDenied)
}

func (s *SQLiteStore) setSummaryStatus(ctx context.Context, id string, status Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE pending_session_summary SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update pending session summary %q: %w", id, err)
	}
	return requireRowAffected(res, id)
}

func requireRowAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no pending record with id %q", id)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
