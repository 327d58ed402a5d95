package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var userCols = []string{"id", "name", "email", "role", "password_hash", "student_id", "department", "created_at"}

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func TestFindUserByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u1", "Alice", "a@b.com", "student", "hash", nil, nil, time.Now()))

	u, err := repo.FindUserByEmail(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("FindUserByEmail: %v", err)
	}
	if u.ID != "u1" || u.Role != "student" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindUserByEmailNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
		WithArgs("nobody@b.com").
		WillReturnRows(sqlmock.NewRows(userCols))

	if _, err := repo.FindUserByEmail(context.Background(), "nobody@b.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestInsertUserGeneratesIdentity(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))

	u, err := repo.InsertUser(context.Background(), User{Name: "Bob", Email: "b@b.com", Role: RoleStudent, PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	if u.ID == "" {
		t.Fatal("repository must generate the id")
	}
	if u.CreatedAt.IsZero() {
		t.Fatal("repository must stamp created_at")
	}
}

func TestInsertUserDuplicateEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"))

	if _, err := repo.InsertUser(context.Background(), User{Name: "Bob", Email: "a@b.com", Role: RoleStudent}); !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestInsertSessionGeneratesQRCode(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO attendance_sessions").WillReturnResult(sqlmock.NewResult(1, 1))

	s, err := repo.InsertSession(context.Background(), Session{Title: "Lecture", CreatedBy: "admin-1", IsActive: true})
	if err != nil {
		t.Fatalf("InsertSession: %v", err)
	}
	sessionID, err := DecodeScanPayload(s.QRCode)
	if err != nil {
		t.Fatalf("generated qr payload does not decode: %v", err)
	}
	if sessionID != s.ID {
		t.Fatalf("qr payload must embed the session's own id: %s != %s", sessionID, s.ID)
	}
}

func TestListSessionsOrdering(t *testing.T) {
	repo, mock := newMockRepo(t)
	cols := []string{"id", "title", "description", "created_by", "start_time", "end_time", "qr_code", "is_active", "location", "department", "created_at"}
	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM attendance_sessions ORDER BY created_at DESC").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("s2", "Newer", "", "admin-1", now, now, "{}", true, nil, nil, now).
			AddRow("s1", "Older", "", "admin-1", now, now, "{}", true, nil, nil, now.Add(-time.Hour)))

	sessions, err := repo.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != "s2" {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
}

func TestUpdateSessionActiveMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE attendance_sessions SET is_active").
		WithArgs(false, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdateSessionActive(context.Background(), "ghost", false); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestInsertRecordDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO attendance_records").
		WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: attendance_records.session_id, attendance_records.user_id (2067)"))

	if _, err := repo.InsertRecord(context.Background(), Record{SessionID: "s1", UserID: "u1"}); !errors.Is(err, ErrDuplicateAttendance) {
		t.Fatalf("expected ErrDuplicateAttendance, got %v", err)
	}
}

func TestCountRecords(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("s1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	n, err := repo.CountRecords(context.Background(), "s1", "u1")
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1, got %d", n)
	}
}
