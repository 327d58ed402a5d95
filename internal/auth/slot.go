package auth

import "sync"

// Slot holds the single active token for this client. Login overwrites it,
// logout clears it.
type Slot struct {
	mu    sync.RWMutex
	token string
}

// NewSlot creates an empty token slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Set stores the active token, replacing any previous one.
func (s *Slot) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Get returns the active token, or "" when not logged in.
func (s *Slot) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Clear removes the active token.
func (s *Slot) Clear() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}
