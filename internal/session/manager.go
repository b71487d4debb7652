package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	derrors "github.com/dygy/drumorb/internal/errors"
	"github.com/dygy/drumorb/internal/hits"
)

// Analyzer is the external drum-detection oracle.
type Analyzer interface {
	Analyze(ctx context.Context, audio []byte, mimeType string) ([]hits.Hit, error)
}

// Manager owns all live sessions and runs their analysis passes.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	analyzer Analyzer
}

// NewManager creates a session manager backed by the given analyzer.
func NewManager(analyzer Analyzer) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		analyzer: analyzer,
	}
}

// Create registers a new idle session.
func (m *Manager) Create() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := newSession(uuid.NewString())
	m.sessions[s.ID] = s
	return s
}

// Get retrieves a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, derrors.ErrSessionNotFound
	}
	return s, nil
}

// Remove tears down and forgets a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if ok {
		s.Close()
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Process runs one analysis pass for an upload. Meant to be called in a
// goroutine from the upload handler. The generation token ensures a
// superseded pass cannot overwrite a newer upload's state, and the
// context is cancelled by the next BeginAnalysis so a superseded oracle
// call is abandoned rather than awaited.
func (m *Manager) Process(ctx context.Context, s *Session, gen uint64, audio []byte, mimeType string) {
	raw, err := m.analyzer.Analyze(ctx, audio, mimeType)
	if err != nil {
		if ctx.Err() != nil {
			return // superseded by a newer upload, result is irrelevant
		}
		s.FailAnalysis(gen, err)
		return
	}
	s.CompleteAnalysis(gen, raw)
}

// Sweep removes sessions idle longer than ttl. Blocks until ctx is
// cancelled; run it in its own goroutine.
func (m *Manager) Sweep(ctx context.Context, ttl time.Duration) {
	ticker := time.NewTicker(ttl / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-ttl)
			m.mu.Lock()
			var expired []*Session
			for id, s := range m.sessions {
				if s.idleSince().Before(cutoff) {
					expired = append(expired, s)
					delete(m.sessions, id)
				}
			}
			m.mu.Unlock()
			for _, s := range expired {
				s.Close()
			}
		}
	}
}
