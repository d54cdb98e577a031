// Package session tracks the recording that is currently in progress so
// that log records and stored metadata can be tagged with it.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session describes one recording run.
type Session struct {
	ID        uuid.UUID
	Name      string
	Subject   string
	StartedAt time.Time
}

// New returns a session with a fresh random id.
func New(name, subject string, startedAt time.Time) Session {
	return Session{
		ID:        uuid.New(),
		Name:      name,
		Subject:   subject,
		StartedAt: startedAt,
	}
}

// Context holds the active session
type Context struct {
	mu      sync.RWMutex
	current *Session
}

// NewContext creates a Context with no active session
func NewContext() *Context {
	return &Context{}
}

// Get returns the active session, if any
func (c *Context) Get() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return Session{}, false
	}
	return *c.current, true
}

// Set makes s the active session
func (c *Context) Set(s Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = &s
}

// Clear ends the active session
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
}

// LogAttrs returns the attributes of the active session for log records.
// It matches logging.ContextProvider.
func (c *Context) LogAttrs() []slog.Attr {
	s, ok := c.Get()
	if !ok {
		return nil
	}
	attrs := []slog.Attr{
		slog.String("recording", s.Name),
		slog.String("session", s.ID.String()),
	}
	if s.Subject != "" {
		attrs = append(attrs, slog.String("subject", s.Subject))
	}
	return attrs
}
