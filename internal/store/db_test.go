package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpenCreatesSchema(t *testing.T) {
	st := openTestStore(t)
	for _, table := range []string{"users", "attendance_sessions", "attendance_records"} {
		var name string
		err := st.DB().QueryRowContext(context.Background(),
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestSeedAdminIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := st.SeedAdmin(ctx, "admin-1", "Administrator", "admin@attendance.app", "hash"); err != nil {
			t.Fatalf("SeedAdmin run %d: %v", i, err)
		}
	}
	var n int
	if err := st.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one seeded admin, got %d", n)
	}
}

func TestUniqueConstraints(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insertUser := func(id, email string) error {
		_, err := st.DB().ExecContext(ctx, `
			INSERT INTO users (id, name, email, role, password_hash, created_at)
			VALUES (?, ?, ?, 'student', '', ?)
		`, id, "u", email, now)
		return err
	}
	if err := insertUser("u1", "a@b.com"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := insertUser("u2", "a@b.com"); !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation on email, got %v", err)
	}

	if _, err := st.DB().ExecContext(ctx, `
		INSERT INTO attendance_sessions (id, title, created_by, start_time, end_time, qr_code, created_at)
		VALUES ('s1', 'Lecture', 'u1', ?, ?, '{}', ?)
	`, now, now.Add(time.Hour), now); err != nil {
		t.Fatalf("insert session: %v", err)
	}

	insertRecord := func(id string) error {
		_, err := st.DB().ExecContext(ctx, `
			INSERT INTO attendance_records (id, session_id, user_id, marked_at)
			VALUES (?, 's1', 'u1', ?)
		`, id, now)
		return err
	}
	if err := insertRecord("r1"); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := insertRecord("r2"); !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation on (session, user), got %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.SeedAdmin(ctx, "admin-1", "Administrator", "admin@attendance.app", "hash"); err != nil {
		t.Fatalf("SeedAdmin: %v", err)
	}
	if err := st.Persist(ctx); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	blob, err := st.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(blob) == 0 {
		t.Fatal("export produced an empty blob")
	}

	other, err := Open(filepath.Join(t.TempDir(), "other.db"))
	if err != nil {
		t.Fatalf("Open other: %v", err)
	}
	defer other.Close()
	if err := other.Import(ctx, blob); err != nil {
		t.Fatalf("Import: %v", err)
	}

	var email string
	if err := other.DB().QueryRowContext(ctx, `SELECT email FROM users WHERE id = 'admin-1'`).Scan(&email); err != nil {
		t.Fatalf("imported store missing seeded admin: %v", err)
	}
	if email != "admin@attendance.app" {
		t.Fatalf("unexpected email: %s", email)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil) {
		t.Fatal("nil is not a violation")
	}
	if IsUniqueViolation(context.Canceled) {
		t.Fatal("unrelated error reported as violation")
	}
}
