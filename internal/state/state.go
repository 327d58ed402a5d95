// Package state holds the in-memory cache of the repository's contents. Each
// collection is replaced wholesale after a write, never patched field by
// field, so the cache is never observably stale to the next read.
package state

import (
	"context"
	"sync"

	"qrattend/internal/attendance"
)

// Controller is the single source of truth the presentation layer reads.
type Controller struct {
	repo *attendance.Repository

	mu          sync.RWMutex
	users       []attendance.User
	sessions    []attendance.Session
	records     []attendance.Record
	currentUser *attendance.User
}

// NewController creates an empty controller over the repository.
func NewController(repo *attendance.Repository) *Controller {
	return &Controller{repo: repo}
}

// ReloadAll refreshes every cached collection from the store.
func (c *Controller) ReloadAll(ctx context.Context) error {
	if err := c.ReloadUsers(ctx); err != nil {
		return err
	}
	if err := c.ReloadSessions(ctx); err != nil {
		return err
	}
	return c.ReloadRecords(ctx)
}

// ReloadUsers replaces the cached user collection.
func (c *Controller) ReloadUsers(ctx context.Context) error {
	users, err := c.repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.users = users
	c.mu.Unlock()
	return nil
}

// ReloadSessions replaces the cached session collection.
func (c *Controller) ReloadSessions(ctx context.Context) error {
	sessions, err := c.repo.ListSessions(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.sessions = sessions
	c.mu.Unlock()
	return nil
}

// ReloadRecords replaces the cached attendance record collection.
func (c *Controller) ReloadRecords(ctx context.Context) error {
	records, err := c.repo.ListRecords(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.records = records
	c.mu.Unlock()
	return nil
}

// Users returns the cached users, newest first.
func (c *Controller) Users() []attendance.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]attendance.User, len(c.users))
	copy(out, c.users)
	return out
}

// Sessions returns the cached sessions, newest first.
func (c *Controller) Sessions() []attendance.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]attendance.Session, len(c.sessions))
	copy(out, c.sessions)
	return out
}

// Records returns the cached attendance records, most recently marked first.
func (c *Controller) Records() []attendance.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]attendance.Record, len(c.records))
	copy(out, c.records)
	return out
}

// SetCurrentUser stores the authenticated identity; nil clears it.
func (c *Controller) SetCurrentUser(u *attendance.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if u == nil {
		c.currentUser = nil
		return
	}
	cp := *u
	c.currentUser = &cp
}

// CurrentUser returns the authenticated identity, or nil.
func (c *Controller) CurrentUser() *attendance.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.currentUser == nil {
		return nil
	}
	cp := *c.currentUser
	return &cp
}

// SessionAttendance filters the cached records for one session. Pure filter;
// never touches the store.
func (c *Controller) SessionAttendance(sessionID string) []attendance.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []attendance.Record
	for _, rec := range c.records {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out
}

// SessionsCreatedBy filters the cached sessions for one owner. Pure filter;
// never touches the store.
func (c *Controller) SessionsCreatedBy(userID string) []attendance.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []attendance.Session
	for _, s := range c.sessions {
		if s.CreatedBy == userID {
			out = append(out, s)
		}
	}
	return out
}
