// Package store provides the SQLite-backed reading progress store. It uses
// modernc.org/sqlite for pure-Go, CGO-free database access. The store is the
// persistence collaborator of the playback engine: it consumes and produces
// playback snapshots keyed by document, and nothing else about playback.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/LouPolish/Red-Read/internal/playback"
	"github.com/LouPolish/Red-Read/internal/tokenizer"
)

//go:embed schema.sql
var schema string

// Document is a stored text identified by the hash of its content.
type Document struct {
	ID        string
	Title     string
	SHA256    string
	WordCount int
	AddedAt   time.Time
}

// Session is one stored reading session: a playback snapshot plus identity.
type Session struct {
	ID         string
	DocumentID string
	Position   int
	Rate       int
	Mode       string
	UpdatedAt  time.Time
}

// Snapshot converts the stored row into the scheduler's restore shape.
func (s Session) Snapshot() playback.Snapshot {
	return playback.Snapshot{
		Position: s.Position,
		Rate:     s.Rate,
		Mode:     tokenizer.ParseMode(s.Mode),
	}
}

// Store provides access to the progress database.
type Store struct {
	db *sql.DB
}

// Open creates the data directory if needed, opens the database, and
// initializes pragmas and schema.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "progress.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug().Str("path", dbPath).Msg("progress store opened")
	return s, nil
}

func (s *Store) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// HashText returns the hex SHA-256 of a document's text, the identity used
// for deduplication across imports.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// UpsertDocument inserts a document or returns the existing row for the same
// content hash.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) (Document, error) {
	if doc.ID == "" {
		return Document{}, fmt.Errorf("document ID cannot be empty")
	}
	if doc.SHA256 == "" {
		return Document{}, fmt.Errorf("document content hash cannot be empty")
	}

	existing, err := s.DocumentByHash(ctx, doc.SHA256)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return Document{}, err
	}

	if doc.AddedAt.IsZero() {
		doc.AddedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, title, content_sha256, word_count, added_at)
		 VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.SHA256, doc.WordCount, doc.AddedAt,
	)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

// DocumentByHash looks a document up by its content hash. Returns
// sql.ErrNoRows when absent.
func (s *Store) DocumentByHash(ctx context.Context, hash string) (Document, error) {
	var doc Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, content_sha256, word_count, added_at
		 FROM documents WHERE content_sha256 = ?`, hash,
	).Scan(&doc.ID, &doc.Title, &doc.SHA256, &doc.WordCount, &doc.AddedAt)
	if err == sql.ErrNoRows {
		return Document{}, err
	}
	if err != nil {
		return Document{}, fmt.Errorf("query document by hash: %w", err)
	}
	return doc, nil
}

// SaveSession inserts or updates a session's snapshot.
func (s *Store) SaveSession(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if sess.DocumentID == "" {
		return fmt.Errorf("session document ID cannot be empty")
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, document_id, position, rate, mode, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   position = excluded.position,
		   rate = excluded.rate,
		   mode = excluded.mode,
		   updated_at = excluded.updated_at`,
		sess.ID, sess.DocumentID, sess.Position, sess.Rate, sess.Mode, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LatestSession returns the most recently updated session for a document.
// Returns sql.ErrNoRows when the document has never been read.
func (s *Store) LatestSession(ctx context.Context, documentID string) (Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, position, rate, mode, updated_at
		 FROM sessions WHERE document_id = ?
		 ORDER BY updated_at DESC LIMIT 1`, documentID,
	).Scan(&sess.ID, &sess.DocumentID, &sess.Position, &sess.Rate, &sess.Mode, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return Session{}, err
	}
	if err != nil {
		return Session{}, fmt.Errorf("query latest session: %w", err)
	}
	return sess, nil
}

// ListSessions returns all sessions joined with their document titles,
// newest first.
func (s *Store) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.document_id, d.title, d.word_count,
		        s.position, s.rate, s.mode, s.updated_at
		 FROM sessions s JOIN documents d ON d.id = s.document_id
		 ORDER BY s.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var infos []SessionInfo
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(
			&info.ID, &info.DocumentID, &info.Title, &info.WordCount,
			&info.Position, &info.Rate, &info.Mode, &info.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// SessionInfo is a session row joined with its document for display.
type SessionInfo struct {
	ID         string
	DocumentID string
	Title      string
	WordCount  int
	Position   int
	Rate       int
	Mode       string
	UpdatedAt  time.Time
}
