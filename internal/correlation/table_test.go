package correlation

import (
	"testing"
	"time"
)

func TestSetThenDeleteReturnsTrueOnce(t *testing.T) {
	tbl := New()
	tbl.Set("chat-1", 1_000)

	if !tbl.Delete("chat-1", 1_100) {
		t.Fatalf("Delete() = false, want true on first call")
	}
	if tbl.Delete("chat-1", 1_100) {
		t.Fatalf("Delete() = true, want false after removal")
	}
}

func TestDeleteMissingReturnsFalse(t *testing.T) {
	tbl := New()
	if tbl.Delete("chat-missing", 0) {
		t.Fatalf("Delete() = true, want false for unknown id")
	}
}

func TestDeleteExpiredEntryReturnsFalse(t *testing.T) {
	tbl := NewWithLimits(64, 5*time.Minute)
	tbl.Set("chat-1", 0)
	if tbl.Delete("chat-1", 5*60_000) {
		t.Fatalf("Delete() = true for an entry past its TTL boundary, want false")
	}
}

func TestCapacityEvictsOldestEntries(t *testing.T) {
	tbl := NewWithLimits(2, 5*time.Minute)
	tbl.Set("chat-1", 0)
	tbl.Set("chat-2", 1)
	tbl.Set("chat-3", 2)

	if tbl.Len() > 2 {
		t.Fatalf("Len() = %d, want at most capacity 2", tbl.Len())
	}
	if tbl.Delete("chat-1", 3) {
		t.Fatalf("Delete(chat-1) = true, want evicted")
	}
}
