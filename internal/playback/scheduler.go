package playback

import (
	"context"
	"sync"
	"time"

	"github.com/dygy/drumorb/internal/hits"
)

// TimeSource exposes the current playback position of an external audio
// element. ok is false when nothing is loaded or no position has been
// reported yet.
type TimeSource interface {
	Position() (seconds float64, ok bool)
}

// Scheduler walks an externally driven playback clock over the canonical
// hit sequence and fires each hit exactly once per playback pass.
//
// Position reports are not assumed monotonic: forward jumps fire every
// hit they skip over, while a drop back to the start of the timeline
// after most hits have fired is taken as a loop and clears the fired set.
// Small backward seeks deliberately do not refire hits that were already
// counted (see Tick).
type Scheduler struct {
	mu    sync.Mutex
	hits  []hits.Hit
	fired []bool
	count int // fired entries, to avoid rescanning on loop checks
}

// Loop-reset heuristic parameters
const (
	// loopResetWindow is how close to the timeline start the position
	// must be to consider a restart.
	loopResetWindow = 0.1

	// tickInterval approximates one rendered frame at 60 Hz.
	tickInterval = 16 * time.Millisecond
)

// NewScheduler creates a scheduler with no hits loaded.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Load replaces the canonical hit sequence and clears the fired set in a
// single critical section. A concurrent Tick sees either the old sequence
// with its old fired set or the new sequence with an empty one, never a
// mix.
func (s *Scheduler) Load(sequence []hits.Hit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = sequence
	s.fired = make([]bool, len(sequence))
	s.count = 0
}

// Reset clears the fired set without touching the hit sequence.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.fired {
		s.fired[i] = false
	}
	s.count = 0
}

// FiredCount returns how many hits have fired in the current pass.
func (s *Scheduler) FiredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Tick advances the scheduler to playback position t and returns the
// hits that became due since the last tick, in sequence order.
//
// If t is within loopResetWindow of the start while more than half of
// all hits have fired, playback is assumed to have looped or been
// rewound to the start and the fired set is cleared first. Forward-only
// time could not produce that state. Backward seeks that do not satisfy
// the heuristic leave already-fired hits un-refired; they fire again
// only once a loop reset occurs.
func (s *Scheduler) Tick(t float64) []hits.Hit {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.hits) == 0 {
		return nil
	}

	if t < loopResetWindow && s.count > len(s.hits)/2 {
		for i := range s.fired {
			s.fired[i] = false
		}
		s.count = 0
	}

	var due []hits.Hit
	for i, h := range s.hits {
		if h.Time > t {
			break // sequence is sorted, nothing further is due
		}
		if s.fired[i] {
			continue
		}
		s.fired[i] = true
		s.count++
		due = append(due, h)
	}
	return due
}

// Sink receives each tick's batch of newly due hits.
type Sink func(batch []hits.Hit)

// Run polls src at a frame-ish cadence and delivers due hits to sink
// until ctx is cancelled. Ticks where the source has no position are
// no-ops; the loop keeps polling so playback can start at any time.
func (s *Scheduler) Run(ctx context.Context, src TimeSource, sink Sink) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t, ok := src.Position()
			if !ok {
				continue
			}
			if batch := s.Tick(t); len(batch) > 0 {
				sink(batch)
			}
		}
	}
}
