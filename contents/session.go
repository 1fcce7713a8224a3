package contents

import (
	"strings"
	"sync"
)

// Session holds the operator's access token for the lifetime of one login.
// It is created when the token is first captured and cleared on logout or
// process exit. A Client reads the token from its Session on every call.
type Session struct {
	mu    sync.RWMutex
	token string
}

// NewSession returns a Session carrying the trimmed token.
func NewSession(token string) *Session {
	return &Session{token: strings.TrimSpace(token)}
}

// Token returns the current token, or "" after Clear.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Valid reports whether the session carries a token.
func (s *Session) Valid() bool {
	return s.Token() != ""
}

// Clear drops the token.
func (s *Session) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}
