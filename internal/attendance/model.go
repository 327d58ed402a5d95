package attendance

import "time"

// Roles a user can hold. Role is fixed at creation; there is no promotion path.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// User is an identity with a credential and a role. PasswordHash never leaves
// the repository/credential boundary.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	StudentID    *string   `json:"studentId,omitempty"`
	Department   *string   `json:"department,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is a time-boxed event an admin owns. QRCode is generated once at
// creation and never regenerated.
type Session struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"createdBy"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	QRCode      string    `json:"qrCode"`
	IsActive    bool      `json:"isActive"`
	Location    *string   `json:"location,omitempty"`
	Department  *string   `json:"department,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Observable session states derived from is_active and the time window.
const (
	StatusPending       = "pending"
	StatusOpen          = "open"
	StatusClosedByTime  = "closed"
	StatusClosedByAdmin = "inactive"
)

// StatusAt derives the session's observable state at the given instant.
func (s Session) StatusAt(now time.Time) string {
	if !s.IsActive {
		return StatusClosedByAdmin
	}
	if now.Before(s.StartTime) {
		return StatusPending
	}
	if now.After(s.EndTime) {
		return StatusClosedByTime
	}
	return StatusOpen
}

// Record is a single student's presence proof for one session. At most one
// record exists per (session, user) pair.
type Record struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId"`
	MarkedAt   time.Time `json:"markedAt"`
	Location   *string   `json:"location,omitempty"`
	DeviceInfo *string   `json:"deviceInfo,omitempty"`
}
