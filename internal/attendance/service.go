package attendance

import (
	"context"
	"errors"
	"log"
	"time"

	"qrattend/internal/auth"
	"qrattend/internal/queue"
)

// Persister flushes the durable store after mutations. Satisfied by
// *store.Store.
type Persister interface {
	Persist(ctx context.Context) error
}

// TokenConfig carries the signing parameters for issued tokens.
type TokenConfig struct {
	Issuer     string
	SigningKey string
	TTL        time.Duration
}

// Service is the session/attendance lifecycle engine. It enforces the
// time-window, activation and uniqueness rules before delegating writes to
// the repository, and persists the store after every mutation.
type Service struct {
	repo       *Repository
	gateway    Persister
	q          queue.Queue
	tokens     TokenConfig
	bcryptCost int
	now        func() time.Time
}

// NewService creates the engine. q may be nil when no event consumer runs.
func NewService(repo *Repository, gateway Persister, q queue.Queue, tokens TokenConfig, bcryptCost int) *Service {
	if tokens.TTL <= 0 {
		tokens.TTL = 7 * 24 * time.Hour
	}
	return &Service{
		repo:       repo,
		gateway:    gateway,
		q:          q,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// Login verifies the credential and issues a signed token. Unknown emails and
// wrong passwords both collapse into ErrAuthenticationFailed.
func (s *Service) Login(ctx context.Context, email, password string) (User, string, error) {
	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, "", ErrAuthenticationFailed
		}
		return User{}, "", err
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		return User{}, "", ErrAuthenticationFailed
	}
	token, err := auth.IssueToken(user.ID, user.Email, user.Role, s.tokens.Issuer, s.tokens.SigningKey, s.tokens.TTL)
	if err != nil {
		return User{}, "", err
	}
	return user, token, nil
}

// SignUpInput is the self-registration form. Role is not part of it; sign-up
// always produces a student.
type SignUpInput struct {
	Name       string
	Email      string
	Password   string
	StudentID  *string
	Department *string
}

// SignUp registers a new student account.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (User, error) {
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return User{}, errors.New("name, email and password required")
	}
	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.InsertUser(ctx, User{
		Name:         in.Name,
		Email:        in.Email,
		Role:         RoleStudent,
		PasswordHash: hash,
		StudentID:    in.StudentID,
		Department:   in.Department,
	})
	if err != nil {
		return User{}, err
	}
	return user, s.gateway.Persist(ctx)
}

// CreateUserInput is the admin-initiated creation form; unlike sign-up the
// role is selectable.
type CreateUserInput struct {
	Name       string
	Email      string
	Password   string
	Role       string
	StudentID  *string
	Department *string
}

// CreateUser registers a user with an explicit role.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return User{}, errors.New("name, email and password required")
	}
	if in.Role != RoleAdmin && in.Role != RoleStudent {
		return User{}, errors.New("role must be admin or student")
	}
	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.InsertUser(ctx, User{
		Name:         in.Name,
		Email:        in.Email,
		Role:         in.Role,
		PasswordHash: hash,
		StudentID:    in.StudentID,
		Department:   in.Department,
	})
	if err != nil {
		return User{}, err
	}
	return user, s.gateway.Persist(ctx)
}

// CreateSessionInput is the session creation form.
type CreateSessionInput struct {
	Title       string
	Description string
	CreatedBy   string
	StartTime   time.Time
	EndTime     time.Time
	Location    *string
	Department  *string
}

// CreateSession creates a new active session owned by an admin. The creator's
// role is re-checked here, not only at the presentation layer.
func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (Session, error) {
	if in.Title == "" {
		return Session{}, errors.New("title required")
	}
	creator, err := s.repo.FindUserByID(ctx, in.CreatedBy)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Session{}, ErrNotAuthorized
		}
		return Session{}, err
	}
	if creator.Role != RoleAdmin {
		return Session{}, ErrNotAuthorized
	}
	session, err := s.repo.InsertSession(ctx, Session{
		Title:       in.Title,
		Description: in.Description,
		CreatedBy:   in.CreatedBy,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		IsActive:    true,
		Location:    in.Location,
		Department:  in.Department,
	})
	if err != nil {
		return Session{}, err
	}
	return session, s.gateway.Persist(ctx)
}

// SetActive flips a session's active flag. Always permitted, independent of
// the time window.
func (s *Service) SetActive(ctx context.Context, sessionID string, active bool) error {
	if err := s.repo.UpdateSessionActive(ctx, sessionID, active); err != nil {
		return err
	}
	return s.gateway.Persist(ctx)
}

// MarkAttendance records a student's presence for a session. The time-window
// and activation checks gate the attempt, but the storage uniqueness
// constraint is the race-free guard for "already marked": the insert is
// attempted regardless of any earlier existence check.
func (s *Service) MarkAttendance(ctx context.Context, sessionID, userID string, location, deviceInfo *string) (Record, error) {
	session, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			rejectedTotal.WithLabelValues("session_not_found").Inc()
		}
		return Record{}, err
	}
	now := s.now()
	if !session.IsActive {
		rejectedTotal.WithLabelValues("session_inactive").Inc()
		return Record{}, ErrSessionInactive
	}
	if now.Before(session.StartTime) {
		rejectedTotal.WithLabelValues("session_not_started").Inc()
		return Record{}, ErrSessionNotStarted
	}
	if now.After(session.EndTime) {
		rejectedTotal.WithLabelValues("session_ended").Inc()
		return Record{}, ErrSessionEnded
	}

	record, err := s.repo.InsertRecord(ctx, Record{
		SessionID:  sessionID,
		UserID:     userID,
		Location:   location,
		DeviceInfo: deviceInfo,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateAttendance) {
			rejectedTotal.WithLabelValues("already_marked").Inc()
			return Record{}, ErrAlreadyMarked
		}
		return Record{}, err
	}
	if err := s.gateway.Persist(ctx); err != nil {
		return Record{}, err
	}
	markedTotal.Inc()
	if s.q != nil {
		if err := s.q.Publish(ctx, queue.Message{Type: queue.TypeAttendanceMarked, Body: []byte(record.ID)}); err != nil {
			// The record is already durable; delivery to the worker is best effort.
			log.Printf("queue publish failed: %v", err)
		}
	}
	return record, nil
}

// MarkByScan resolves a scanned QR payload to a session and marks attendance.
func (s *Service) MarkByScan(ctx context.Context, rawPayload, userID string, location, deviceInfo *string) (Record, error) {
	sessionID, err := DecodeScanPayload(rawPayload)
	if err != nil {
		rejectedTotal.WithLabelValues("invalid_payload").Inc()
		return Record{}, err
	}
	return s.MarkAttendance(ctx, sessionID, userID, location, deviceInfo)
}
