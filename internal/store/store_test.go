package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/LouPolish/Red-Read/internal/playback"
	"github.com/LouPolish/Red-Read/internal/tokenizer"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHashText(t *testing.T) {
	a := HashText("some text")
	b := HashText("some text")
	c := HashText("other text")

	if a != b {
		t.Error("same text must hash identically")
	}
	if a == c {
		t.Error("different text must hash differently")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestDocuments(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := Document{
		ID:        uuid.NewString(),
		Title:     "moby-dick.txt",
		SHA256:    HashText("Call me Ishmael."),
		WordCount: 3,
	}

	t.Run("insert and fetch by hash", func(t *testing.T) {
		saved, err := s.UpsertDocument(ctx, doc)
		if err != nil {
			t.Fatalf("UpsertDocument failed: %v", err)
		}
		if saved.ID != doc.ID {
			t.Errorf("expected ID %s, got %s", doc.ID, saved.ID)
		}

		got, err := s.DocumentByHash(ctx, doc.SHA256)
		if err != nil {
			t.Fatalf("DocumentByHash failed: %v", err)
		}
		if got.Title != doc.Title || got.WordCount != doc.WordCount {
			t.Errorf("round-trip mismatch: %+v", got)
		}
	})

	t.Run("upsert dedupes by content hash", func(t *testing.T) {
		dup := doc
		dup.ID = uuid.NewString()
		dup.Title = "renamed.txt"

		saved, err := s.UpsertDocument(ctx, dup)
		if err != nil {
			t.Fatalf("UpsertDocument failed: %v", err)
		}
		if saved.ID != doc.ID {
			t.Errorf("expected the existing document back, got ID %s", saved.ID)
		}
		if saved.Title != doc.Title {
			t.Errorf("expected original title, got %q", saved.Title)
		}
	})

	t.Run("unknown hash returns ErrNoRows", func(t *testing.T) {
		if _, err := s.DocumentByHash(ctx, HashText("never stored")); err != sql.ErrNoRows {
			t.Errorf("expected sql.ErrNoRows, got %v", err)
		}
	})

	t.Run("rejects missing identity", func(t *testing.T) {
		if _, err := s.UpsertDocument(ctx, Document{SHA256: "abc"}); err == nil {
			t.Error("expected error for empty ID")
		}
		if _, err := s.UpsertDocument(ctx, Document{ID: "x"}); err == nil {
			t.Error("expected error for empty hash")
		}
	})
}

func TestSessions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := Document{ID: uuid.NewString(), Title: "t", SHA256: HashText("body")}
	if _, err := s.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("UpsertDocument failed: %v", err)
	}

	t.Run("save and load latest", func(t *testing.T) {
		sess := Session{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Position:   42,
			Rate:       350,
			Mode:       "skim",
		}
		if err := s.SaveSession(ctx, sess); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}

		got, err := s.LatestSession(ctx, doc.ID)
		if err != nil {
			t.Fatalf("LatestSession failed: %v", err)
		}
		if got.Position != 42 || got.Rate != 350 || got.Mode != "skim" {
			t.Errorf("round-trip mismatch: %+v", got)
		}
	})

	t.Run("save updates in place", func(t *testing.T) {
		sess, err := s.LatestSession(ctx, doc.ID)
		if err != nil {
			t.Fatalf("LatestSession failed: %v", err)
		}
		sess.Position = 100
		sess.UpdatedAt = time.Now().UTC().Add(time.Second)
		if err := s.SaveSession(ctx, sess); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}

		got, err := s.LatestSession(ctx, doc.ID)
		if err != nil {
			t.Fatalf("LatestSession failed: %v", err)
		}
		if got.ID != sess.ID {
			t.Errorf("expected the same session row, got %s", got.ID)
		}
		if got.Position != 100 {
			t.Errorf("expected updated position 100, got %d", got.Position)
		}
	})

	t.Run("latest wins when multiple sessions exist", func(t *testing.T) {
		newer := Session{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Position:   7,
			Rate:       300,
			Mode:       "reading",
			UpdatedAt:  time.Now().UTC().Add(time.Hour),
		}
		if err := s.SaveSession(ctx, newer); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}

		got, err := s.LatestSession(ctx, doc.ID)
		if err != nil {
			t.Fatalf("LatestSession failed: %v", err)
		}
		if got.ID != newer.ID {
			t.Errorf("expected newest session, got %s", got.ID)
		}
	})

	t.Run("unknown document returns ErrNoRows", func(t *testing.T) {
		if _, err := s.LatestSession(ctx, "nope"); err != sql.ErrNoRows {
			t.Errorf("expected sql.ErrNoRows, got %v", err)
		}
	})

	t.Run("rejects orphan sessions", func(t *testing.T) {
		err := s.SaveSession(ctx, Session{
			ID:         uuid.NewString(),
			DocumentID: "missing-document",
		})
		if err == nil {
			t.Error("expected foreign key violation")
		}
	})

	t.Run("list joins documents", func(t *testing.T) {
		infos, err := s.ListSessions(ctx)
		if err != nil {
			t.Fatalf("ListSessions failed: %v", err)
		}
		if len(infos) != 2 {
			t.Fatalf("expected 2 sessions, got %d", len(infos))
		}
		if infos[0].Title != "t" {
			t.Errorf("expected joined title, got %q", infos[0].Title)
		}
		if infos[0].UpdatedAt.Before(infos[1].UpdatedAt) {
			t.Error("expected newest-first ordering")
		}
	})
}

func TestSessionSnapshot(t *testing.T) {
	sess := Session{Position: 9, Rate: 275, Mode: "skim"}
	snap := sess.Snapshot()

	want := playback.Snapshot{Position: 9, Rate: 275, Mode: tokenizer.ModeSkim}
	if snap != want {
		t.Errorf("expected %+v, got %+v", want, snap)
	}

	sess.Mode = "garbage"
	if snap = sess.Snapshot(); snap.Mode != tokenizer.ModeReading {
		t.Errorf("expected unknown mode to normalize to reading, got %q", snap.Mode)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	s2.Close()
}
