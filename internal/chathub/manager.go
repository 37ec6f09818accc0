package chathub

import (
	"context"
	"sync"

	"complaintdesk/backend/internal/logging"
	"complaintdesk/backend/internal/models"

	"go.uber.org/zap"
)

// Manager keeps at most one chat session open. Opening a room closes the
// previous one first.
type Manager struct {
	dialer Dialer
	opts   []SessionOption
	log    *zap.Logger

	// openMu serializes Open so two rooms are never joined at once.
	openMu  sync.Mutex
	mu      sync.Mutex
	current *Session
}

// NewManager creates a manager whose sessions dial through d and are built
// with opts.
func NewManager(d Dialer, log *zap.Logger, opts ...SessionOption) *Manager {
	log = logging.OrNop(log)
	return &Manager{
		dialer: d,
		opts:   append([]SessionOption{WithLogger(log)}, opts...),
		log:    log,
	}
}

// Open returns an open session for id. An open session for the same
// complaint is reused; any other session is closed before the new join.
func (m *Manager) Open(ctx context.Context, id models.ComplaintID) (*Session, error) {
	m.openMu.Lock()
	defer m.openMu.Unlock()

	m.mu.Lock()
	prev := m.current
	m.mu.Unlock()

	if prev != nil {
		if prev.State() == StateOpen && prev.ComplaintID() == id {
			return prev, nil
		}
		if err := prev.Close(); err != nil {
			m.log.Warn("failed to close previous chat session",
				zap.String("complaint_id", string(prev.ComplaintID())), zap.Error(err))
		}
	}

	s := NewSession(m.dialer, m.opts...)
	if err := s.Open(ctx, id); err != nil {
		m.mu.Lock()
		m.current = nil
		m.mu.Unlock()
		return nil, err
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return s, nil
}

// Current returns the last session opened, or nil. It may have closed since.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Close closes the current session, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Close()
}
