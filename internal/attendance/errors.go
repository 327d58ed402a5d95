package attendance

import "errors"

var (
	// ErrDuplicateIdentity is surfaced when a user insert trips the unique
	// email constraint.
	ErrDuplicateIdentity = errors.New("attendance: email already registered")

	// ErrDuplicateAttendance is the repository-level signal that the
	// (session, user) uniqueness constraint rejected an insert.
	ErrDuplicateAttendance = errors.New("attendance: attendance already recorded")

	// ErrAlreadyMarked is the engine-level rejection for a repeat scan.
	ErrAlreadyMarked = errors.New("attendance: already marked for this session")

	ErrSessionNotFound   = errors.New("attendance: session not found")
	ErrSessionInactive   = errors.New("attendance: session is not active")
	ErrSessionNotStarted = errors.New("attendance: session has not started yet")
	ErrSessionEnded      = errors.New("attendance: session has ended")

	ErrInvalidScanPayload = errors.New("attendance: invalid scan payload")

	// ErrAuthenticationFailed covers wrong credentials and unparseable or
	// expired tokens alike; callers do not get to distinguish them.
	ErrAuthenticationFailed = errors.New("attendance: authentication failed")

	ErrUserNotFound = errors.New("attendance: user not found")

	// ErrNotAuthorized is returned when the acting identity lacks the admin
	// role for an admin-only mutation.
	ErrNotAuthorized = errors.New("attendance: admin role required")
)
