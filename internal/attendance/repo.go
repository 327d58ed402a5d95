package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"qrattend/internal/store"
)

// Repository exposes typed CRUD over users, sessions and attendance records.
// Every insert generates the id and creation timestamp at this boundary;
// callers never supply them.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo over the gateway's handle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, name, email, role, password_hash, student_id, department, created_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.PasswordHash, &u.StudentID, &u.Department, &u.CreatedAt)
	return u, err
}

// FindUserByEmail returns the user with the given email, or ErrUserNotFound.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}

// FindUserByID returns the user with the given id, or ErrUserNotFound.
func (r *Repository) FindUserByID(ctx context.Context, id string) (User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}

// ListUsers returns all users, newest first.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// InsertUser persists a new user. A duplicate email surfaces as
// ErrDuplicateIdentity via the unique constraint.
func (r *Repository) InsertUser(ctx context.Context, u User) (User, error) {
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, password_hash, student_id, department, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Name, u.Email, u.Role, u.PasswordHash, u.StudentID, u.Department, u.CreatedAt)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return User{}, ErrDuplicateIdentity
		}
		return User{}, err
	}
	return u, nil
}

const sessionColumns = `id, title, description, created_by, start_time, end_time, qr_code, is_active, location, department, created_at`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.Title, &s.Description, &s.CreatedBy, &s.StartTime, &s.EndTime, &s.QRCode, &s.IsActive, &s.Location, &s.Department, &s.CreatedAt)
	return s, err
}

// FindSessionByID returns the session with the given id, or ErrSessionNotFound.
func (r *Repository) FindSessionByID(ctx context.Context, id string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM attendance_sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	return s, nil
}

// ListSessions returns all sessions, newest first.
func (r *Repository) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM attendance_sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// InsertSession persists a new session. The id and qr payload are generated
// here, once, and never regenerated.
func (r *Repository) InsertSession(ctx context.Context, s Session) (Session, error) {
	s.ID = uuid.NewString()
	s.CreatedAt = time.Now().UTC()
	s.QRCode = EncodeScanPayload(s.ID, s.CreatedAt)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_sessions (id, title, description, created_by, start_time, end_time, qr_code, is_active, location, department, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Title, s.Description, s.CreatedBy, s.StartTime, s.EndTime, s.QRCode, s.IsActive, s.Location, s.Department, s.CreatedAt)
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

// UpdateSessionActive flips the is_active flag.
func (r *Repository) UpdateSessionActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE attendance_sessions SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

const recordColumns = `id, session_id, user_id, marked_at, location, device_info`

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.UserID, &rec.MarkedAt, &rec.Location, &rec.DeviceInfo)
	return rec, err
}

// ListRecords returns all attendance records, most recently marked first.
func (r *Repository) ListRecords(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM attendance_records ORDER BY marked_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// FindRecordByID returns a single record by id; sql.ErrNoRows passes through.
func (r *Repository) FindRecordByID(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE id = ?`, id)
	return scanRecord(row)
}

// CountRecords returns how many records exist for a (session, user) pair.
// The unique constraint keeps this at 0 or 1.
func (r *Repository) CountRecords(ctx context.Context, sessionID, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_records WHERE session_id = ? AND user_id = ?
	`, sessionID, userID).Scan(&n)
	return n, err
}

// InsertRecord persists a presence proof. The (session_id, user_id) unique
// constraint is the single source of truth for "already marked"; violating it
// surfaces as ErrDuplicateAttendance.
func (r *Repository) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	rec.ID = uuid.NewString()
	rec.MarkedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, session_id, user_id, marked_at, location, device_info)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.SessionID, rec.UserID, rec.MarkedAt, rec.Location, rec.DeviceInfo)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return Record{}, ErrDuplicateAttendance
		}
		return Record{}, err
	}
	return rec, nil
}
