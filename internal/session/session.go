package session

import (
	"context"
	"sync"
	"time"

	derrors "github.com/dygy/drumorb/internal/errors"
	"github.com/dygy/drumorb/internal/hits"
	"github.com/dygy/drumorb/internal/playback"
)

// Status is the analysis state of a session
type Status string

const (
	StatusIdle      Status = "idle"
	StatusAnalyzing Status = "analyzing"
	StatusReady     Status = "ready"
	StatusError     Status = "error"
)

// Snapshot is a point-in-time view of a session for status responses
type Snapshot struct {
	ID       string            `json:"id"`
	Status   Status            `json:"status"`
	Message  string            `json:"message,omitempty"`
	Filename string            `json:"filename,omitempty"`
	HitCount int               `json:"hit_count"`
	Duration float64           `json:"duration_seconds,omitempty"`
	ByType   map[hits.Type]int `json:"by_type,omitempty"`
}

// Session holds one user's upload, its canonical hit sequence, and the
// playback machinery that fires orb pulses against it. All mutable state
// lives here rather than in package globals so a session can be torn
// down cleanly and tested in isolation.
type Session struct {
	ID        string
	CreatedAt time.Time

	Clock     *playback.Clock
	Scheduler *playback.Scheduler
	Visual    *playback.Visual

	mu         sync.RWMutex
	status     Status
	message    string
	filename   string
	mimeType   string
	audio      []byte
	hits       []hits.Hit
	generation uint64
	cancel     context.CancelFunc
	lastSeen   time.Time
}

func newSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		Clock:     playback.NewClock(),
		Scheduler: playback.NewScheduler(),
		Visual:    playback.NewVisual(),
		status:    StatusIdle,
		lastSeen:  now,
	}
}

// BeginAnalysis starts a new upload pass: it invalidates any in-flight
// analysis, clears the canonical hits, fired set, visual activity and
// playback clock, stores the new audio, and moves to analyzing. The
// returned context and generation token scope the oracle call; a
// response carrying a stale token is ignored (last upload wins).
func (s *Session) BeginAnalysis(filename, mimeType string, audio []byte) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.generation++
	s.status = StatusAnalyzing
	s.message = ""
	s.filename = filename
	s.mimeType = mimeType
	s.audio = audio
	s.hits = nil
	s.lastSeen = time.Now()

	s.Scheduler.Load(nil)
	s.Visual.Reset()
	s.Clock.Clear()

	return ctx, s.generation
}

// CompleteAnalysis cleans the raw oracle output and publishes it as the
// canonical sequence. Returns false without touching state when gen is
// no longer current.
func (s *Session) CompleteAnalysis(gen uint64, raw []hits.Hit) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false
	}

	cleaned := hits.Clean(raw)
	s.hits = cleaned
	s.status = StatusReady
	s.message = ""
	s.lastSeen = time.Now()

	s.Scheduler.Load(cleaned)
	return true
}

// FailAnalysis records an analysis failure with its user-facing message.
// Stale generations are ignored.
func (s *Session) FailAnalysis(gen uint64, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false
	}

	s.status = StatusError
	s.message = derrors.UserMessage(err)
	s.lastSeen = time.Now()
	return true
}

// Hits returns the canonical cleaned sequence, or ErrNotReady before the
// first successful analysis.
func (s *Session) Hits() ([]hits.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != StatusReady {
		return nil, derrors.ErrNotReady
	}
	return s.hits, nil
}

// Audio returns the stored upload for browser playback.
func (s *Session) Audio() (data []byte, mimeType string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.audio) == 0 {
		return nil, "", false
	}
	return s.audio, s.mimeType, true
}

// Status returns the current status and message.
func (s *Session) Status() (Status, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.message
}

// Snapshot builds a status view for API responses.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:       s.ID,
		Status:   s.status,
		Message:  s.message,
		Filename: s.filename,
		HitCount: len(s.hits),
	}
	if len(s.hits) > 0 {
		snap.Duration = hits.Duration(s.hits)
		snap.ByType = hits.CountByType(s.hits)
	}
	return snap
}

// Touch marks the session as recently used.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// Close cancels any in-flight analysis.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}
