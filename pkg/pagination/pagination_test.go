package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTrip(t *testing.T) {
	want := Cursor{CreatedAt: time.Date(2026, 8, 3, 10, 30, 0, 0, time.UTC), ID: uuid.New()}

	got, err := ParseCursor(EncodeCursor(want))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestParseCursorEmptyAndInvalid(t *testing.T) {
	if c, err := ParseCursor(""); err != nil || c != nil {
		t.Fatalf("empty cursor should parse to nil, got %+v err=%v", c, err)
	}
	if _, err := ParseCursor("not-base64!!"); err == nil {
		t.Fatal("expected error for invalid cursor")
	}
}

func TestTrimPage(t *testing.T) {
	type row struct {
		at time.Time
		id uuid.UUID
	}
	keyOf := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	base := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	rows := []row{
		{at: base, id: uuid.New()},
		{at: base.Add(-time.Minute), id: uuid.New()},
		{at: base.Add(-2 * time.Minute), id: uuid.New()},
	}

	page, next := TrimPage(rows, 2, keyOf)
	if len(page) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(page))
	}
	cursor, err := ParseCursor(next)
	if err != nil || cursor == nil {
		t.Fatalf("next cursor should parse: %v", err)
	}
	if cursor.ID != rows[1].id {
		t.Fatalf("cursor should point at the last returned row")
	}

	page, next = TrimPage(rows, 5, keyOf)
	if len(page) != 3 || next != "" {
		t.Fatalf("full fit should return all rows with empty cursor, got %d %q", len(page), next)
	}
}
