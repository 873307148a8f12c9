package mcp

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/CAcquaviva/mcp-konnect/pkg/logging"
)

// SessionState represents the lifecycle state of an MCP session.
type SessionState int

const (
	// SessionPending is a session whose initialize handshake is in progress.
	SessionPending SessionState = iota
	// SessionActive is an initialized session that accepts requests.
	SessionActive
	// SessionClosed is terminal.
	SessionClosed
)

// String returns the string representation of the session state.
func (s SessionState) String() string {
	switch s {
	case SessionPending:
		return "pending"
	case SessionActive:
		return "active"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// eventBuffer bounds queued notifications per session.
const eventBuffer = 64

// Session is one client conversation, addressed by the mcp-session-id header.
type Session struct {
	// ID is the unique session identifier.
	ID string

	// CreatedAt is when the session was created.
	CreatedAt time.Time

	mu              sync.RWMutex
	state           SessionState
	protocolVersion string
	clientInfo      ClientInfo
	lastActiveAt    time.Time

	// ready is closed when the session leaves the pending state.
	ready     chan struct{}
	readyOnce sync.Once

	// reqMu serializes requests on this session against each other and
	// against Close.
	reqMu sync.Mutex

	events    chan *JSONRPCNotification
	streaming atomic.Bool
}

func newSession() *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		state:        SessionPending,
		lastActiveAt: now,
		ready:        make(chan struct{}),
		events:       make(chan *JSONRPCNotification, eventBuffer),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ProtocolVersion returns the negotiated protocol version.
func (s *Session) ProtocolVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocolVersion
}

// ClientInfo returns what the client reported at initialize.
func (s *Session) ClientInfo() ClientInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientInfo
}

// Touch updates the last active timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
}

// IsExpired checks if the session has been idle longer than timeout.
func (s *Session) IsExpired(timeout time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastActiveAt) > timeout
}

// Acquire takes the session's request lock. It fails with ErrInvalidSession
// if the session was closed while waiting; on success the caller must
// Release.
func (s *Session) Acquire() error {
	s.reqMu.Lock()
	if s.State() == SessionClosed {
		s.reqMu.Unlock()
		return ErrInvalidSession
	}
	return nil
}

// Release releases the request lock taken by Acquire.
func (s *Session) Release() {
	s.reqMu.Unlock()
}

// Events returns the notification stream. It is closed when the session
// closes.
func (s *Session) Events() <-chan *JSONRPCNotification {
	return s.events
}

// Notify queues a notification for the session's SSE stream. It returns
// false if the session is closed or the buffer is full.
//
// No tool emits notifications yet; Notify is the hook for server-initiated
// messages, reached via Server.Sessions().Get(id). Queued messages are
// written to the client's GET stream.
func (s *Session) Notify(notif *JSONRPCNotification) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == SessionClosed {
		return false
	}
	select {
	case s.events <- notif:
		return true
	default:
		return false
	}
}

// claimStream marks the single GET stream as open.
func (s *Session) claimStream() bool {
	return s.streaming.CompareAndSwap(false, true)
}

func (s *Session) releaseStream() {
	s.streaming.Store(false)
}

func (s *Session) activate(version string, info ClientInfo) bool {
	s.mu.Lock()
	if s.state != SessionPending {
		s.mu.Unlock()
		return false
	}
	s.state = SessionActive
	s.protocolVersion = version
	s.clientInfo = info
	s.lastActiveAt = time.Now()
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
	return true
}

// markClosed moves the session to closed and ends its event stream.
// Callers hold reqMu unless the session was never handed out.
func (s *Session) markClosed() {
	s.mu.Lock()
	if s.state == SessionClosed {
		s.mu.Unlock()
		return
	}
	s.state = SessionClosed
	close(s.events)
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
}

// SessionManager owns the session map. All mutations go through it.
type SessionManager struct {
	sessions    map[string]*Session
	maxSessions int
	timeout     time.Duration
	mu          sync.RWMutex
	log         *slog.Logger
}

// NewSessionManager creates a new session manager.
func NewSessionManager(cfg *Config) *SessionManager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &SessionManager{
		sessions:    make(map[string]*Session),
		maxSessions: cfg.MaxSessions,
		timeout:     cfg.SessionTimeout,
		log:         logging.Nop(),
	}
}

// SetLogger sets the manager's logger.
func (m *SessionManager) SetLogger(log *slog.Logger) {
	if log == nil {
		log = logging.Nop()
	}
	m.mu.Lock()
	m.log = log
	m.mu.Unlock()
}

func (m *SessionManager) logger() *slog.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.log
}

// Begin creates a pending session and registers it. Requests naming its ID
// wait in Resolve until Activate or Abort.
func (m *SessionManager) Begin() (*Session, error) {
	if m.Count() >= m.maxSessions {
		// Make room by expiring idle sessions first.
		m.Cleanup()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return nil, ErrTooManySessions
	}

	session := newSession()
	m.sessions[session.ID] = session
	return session, nil
}

// Activate completes the handshake for a pending session and wakes any
// request waiting on it.
func (m *SessionManager) Activate(id string, version string, info ClientInfo) error {
	m.mu.RLock()
	session := m.sessions[id]
	m.mu.RUnlock()

	if session == nil || !session.activate(version, info) {
		return ErrInvalidSession
	}
	m.logger().Info("session initialized", "session", id, "client", info.Name, "protocolVersion", version)
	return nil
}

// Abort discards a session whose initialize handshake failed.
func (m *SessionManager) Abort(id string) {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok && session.State() == SessionPending {
		delete(m.sessions, id)
	} else {
		ok = false
	}
	m.mu.Unlock()

	if ok {
		session.markClosed()
	}
}

// Resolve returns the active session for id. It blocks while that session is
// pending and returns ErrInvalidSession for unknown, aborted or closed
// sessions.
func (m *SessionManager) Resolve(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidSession
	}

	m.mu.RLock()
	session := m.sessions[id]
	m.mu.RUnlock()
	if session == nil {
		return nil, ErrInvalidSession
	}

	select {
	case <-session.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if session.State() != SessionActive {
		return nil, ErrInvalidSession
	}
	return session, nil
}

// Get retrieves a session by ID without waiting, in any state.
func (m *SessionManager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Close removes the session, then waits for its in-flight request before
// marking it closed. It reports whether the session existed; closing twice
// is a no-op.
func (m *SessionManager) Close(id string) bool {
	m.mu.Lock()
	session, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return false
	}

	session.reqMu.Lock()
	session.markClosed()
	session.reqMu.Unlock()

	m.logger().Info("session closed", "session", id)
	return true
}

// Cleanup closes sessions idle longer than the session timeout and returns
// how many were removed.
func (m *SessionManager) Cleanup() int {
	if m.timeout <= 0 {
		return 0
	}

	m.mu.RLock()
	var expired []string
	for id, session := range m.sessions {
		if session.IsExpired(m.timeout) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	removed := 0
	for _, id := range expired {
		if m.Close(id) {
			removed++
		}
	}
	if removed > 0 {
		m.logger().Debug("expired idle sessions", "count", removed)
	}
	return removed
}

// Count returns the number of registered sessions, pending included.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns all session IDs.
func (m *SessionManager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// StartCleanupRoutine starts a goroutine that periodically expires idle sessions.
func (m *SessionManager) StartCleanupRoutine(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}

// CloseAll closes every session.
func (m *SessionManager) CloseAll() {
	for _, id := range m.List() {
		m.Close(id)
	}
}
