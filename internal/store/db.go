package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrStoreUnavailable is returned when the embedded store cannot be opened.
// Every dependent operation is expected to fail fast on it.
var ErrStoreUnavailable = errors.New("store unavailable")

// Store owns the embedded SQLite database file holding all durable entities.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT UNIQUE NOT NULL,
	role TEXT NOT NULL CHECK (role IN ('admin', 'student')),
	password_hash TEXT NOT NULL DEFAULT '',
	student_id TEXT,
	department TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS attendance_sessions (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL REFERENCES users (id),
	start_time TIMESTAMP NOT NULL,
	end_time TIMESTAMP NOT NULL,
	qr_code TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	location TEXT,
	department TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS attendance_records (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES attendance_sessions (id),
	user_id TEXT NOT NULL REFERENCES users (id),
	marked_at TIMESTAMP NOT NULL,
	location TEXT,
	device_info TEXT,
	UNIQUE (session_id, user_id)
);
`

// Open loads the database file at path, creating it with the schema when it
// does not exist yet. Schema creation is idempotent.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	// The sqlite driver serializes access through a single connection;
	// more than one causes table locked errors under write load.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", ErrStoreUnavailable, err)
	}
	return &Store{db: db, path: path}, nil
}

// DB exposes the underlying handle for parameterized statements. Callers must
// never interpolate untrusted values into SQL text.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SeedAdmin inserts the bootstrap admin identity unless a user with that email
// already exists, so a fresh store is usable before any sign-up.
func (s *Store) SeedAdmin(ctx context.Context, id, name, email, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (id, name, email, role, password_hash, created_at)
		VALUES (?, ?, ?, 'admin', ?, ?)
	`, id, name, email, passwordHash, time.Now().UTC())
	return err
}

// Persist flushes all committed state to the durable database file. Called
// after every mutating operation; the store has no autosave beyond WAL.
func (s *Store) Persist(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`)
	return err
}

// Export serializes the whole store to a byte blob.
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("qrattend-export-%d.db", time.Now().UnixNano()))
	defer os.Remove(tmp)
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, tmp); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return os.ReadFile(tmp)
}

// Import overwrites the store's database file with the given blob and reopens
// it. All previous state is lost.
func (s *Store) Import(ctx context.Context, blob []byte) error {
	if err := s.db.Close(); err != nil {
		return err
	}
	// WAL sidecars from the old file must not shadow the imported state.
	_ = os.Remove(s.path + "-wal")
	_ = os.Remove(s.path + "-shm")
	if err := os.WriteFile(s.path, blob, 0o600); err != nil {
		return fmt.Errorf("%w: import: %v", ErrStoreUnavailable, err)
	}
	reopened, err := Open(s.path)
	if err != nil {
		return err
	}
	s.db = reopened.db
	return nil
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// IsUniqueViolation reports whether err stems from a UNIQUE constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
