package chat

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager maintains the registry of all connected chat sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session // accountID → session
	logger   *zap.Logger
}

// NewManager creates a session Manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[int64]*Session),
		logger:   logger,
	}
}

// Register adds a session. If a previous session exists for the same
// account, it is closed first (handles duplicate login / reconnect).
func (m *Manager) Register(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.sessions[s.AccountID]; ok {
		old.Close()
		m.logger.Info("duplicate chat session displaced",
			zap.Int64("account_id", s.AccountID))
	}
	m.sessions[s.AccountID] = s
	m.logger.Info("chat session registered",
		zap.Int64("account_id", s.AccountID),
		zap.String("username", s.Username))
}

// Unregister removes the session for an account.
func (m *Manager) Unregister(accountID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, accountID)
	m.logger.Info("chat session unregistered", zap.Int64("account_id", accountID))
}

// Get returns the session for an account, or nil if not connected.
func (m *Manager) Get(accountID int64) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[accountID]
}

// Count returns the number of currently connected sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// BroadcastAll sends a raw pre-encoded packet to every connected session.
// Uses non-blocking send so a slow connection cannot stall the broadcast.
func (m *Manager) BroadcastAll(data []byte) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		select {
		case s.SendChan <- data:
		default:
			m.logger.Warn("broadcast dropped packet for slow client",
				zap.Int64("account_id", s.AccountID))
		}
	}
}

// CloseAll gracefully closes all connected sessions.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	m.logger.Info("closing all chat sessions", zap.Int("count", len(sessions)))
	for _, s := range sessions {
		s.Close()
	}

	// Wait briefly for disconnect handlers to unregister everyone.
	maxWait := 10 * time.Second
	start := time.Now()
	for time.Since(start) < maxWait {
		m.mu.RLock()
		count := len(m.sessions)
		m.mu.RUnlock()
		if count == 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
}
