package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ManagerConfig contains configuration for the session manager.
type ManagerConfig struct {
	SessionTimeout  time.Duration
	CleanupInterval time.Duration
	Session         Options
}

// Manager owns every live recording session.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	logger   *slog.Logger
	source   MediaSource
	config   ManagerConfig

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a session manager and starts its cleanup routine.
func NewManager(logger *slog.Logger, source MediaSource, config ManagerConfig) *Manager {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		sessions: make(map[string]*Session),
		logger:   logger.With(slog.String("component", "capture")),
		source:   source,
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go m.startCleanupRoutine()
	return m
}

// Create registers a new idle session. onComplete, when set, replaces the
// default completion callback for this session.
func (m *Manager) Create(meta Metadata, mimeType string, onComplete func(ctx context.Context, rec Recording)) (*Session, error) {
	if m.ctx.Err() != nil {
		return nil, ErrClosed
	}
	opts := m.config.Session
	if mimeType != "" {
		opts.MimeType = mimeType
	}
	if onComplete != nil {
		opts.OnComplete = onComplete
	}

	id := uuid.NewString()
	session := NewSession(m.ctx, id, meta, m.source, opts)

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()

	m.logger.Debug("session created",
		slog.String("session_id", id),
		slog.Int64("table_id", meta.TableID),
	)
	return session, nil
}

// Get returns a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove closes and forgets a session.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	s.Close()
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close cancels every session and stops the cleanup routine.
func (m *Manager) Close() {
	m.cancel()
	<-m.done

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Close()
		delete(m.sessions, id)
	}
}

func (m *Manager) startCleanupRoutine() {
	defer close(m.done)
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupExpired()
		case <-m.ctx.Done():
			return
		}
	}
}

// cleanupExpired removes sessions idle for longer than the session timeout.
// Recordings still open are cancelled rather than submitted.
func (m *Manager) cleanupExpired() {
	if m.config.SessionTimeout <= 0 {
		return
	}
	cutoff := time.Now().Add(-m.config.SessionTimeout)

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastActivity().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.logger.Info("expiring idle session",
			slog.String("session_id", s.ID),
			slog.String("state", string(s.State())),
		)
		s.Close()
	}
}
