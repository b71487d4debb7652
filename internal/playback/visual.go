package playback

import (
	"sync"
	"time"

	"github.com/dygy/drumorb/internal/hits"
)

// Visual decay parameters
const (
	// pulseWindow is how long an orb stays lit after its hit fires.
	pulseWindow = 80 * time.Millisecond

	// pulseGain scales the orb by 1 + pulseGain*velocity while lit.
	pulseGain = 0.6
)

// Activity is the last firing recorded for one drum type.
type Activity struct {
	LastFired time.Time
	Velocity  float64
}

// OrbState is a render-ready snapshot for one drum type.
type OrbState struct {
	Active   bool    `json:"active"`
	Velocity float64 `json:"velocity"`
	Scale    float64 `json:"scale"`
}

// Visual tracks per-drum-type firing activity for the rendering layer.
// Only the most recent firing per type matters; each new hit of a type
// overwrites the previous one.
type Visual struct {
	mu       sync.RWMutex
	activity map[hits.Type]Activity
}

// NewVisual creates a visual state with neutral activity for every type.
func NewVisual() *Visual {
	return &Visual{
		activity: make(map[hits.Type]Activity, len(hits.Types)),
	}
}

// Record stores the firing batch against now. Same-batch hits of
// different types update independently; for same-type hits the later
// entry in the batch wins.
func (v *Visual) Record(batch []hits.Hit, now time.Time) {
	if len(batch) == 0 {
		return
	}
	v.mu.Lock()
	for _, h := range batch {
		v.activity[h.Type] = Activity{LastFired: now, Velocity: h.Velocity}
	}
	v.mu.Unlock()
}

// Reset clears all activity, e.g. on a new upload.
func (v *Visual) Reset() {
	v.mu.Lock()
	v.activity = make(map[hits.Type]Activity, len(hits.Types))
	v.mu.Unlock()
}

// Activity returns the recorded activity for one type.
func (v *Visual) Activity(t hits.Type) (Activity, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	a, ok := v.activity[t]
	return a, ok
}

// Snapshot computes render state for every drum type at time now. An orb
// is active for pulseWindow after its last firing, scaled by velocity;
// outside the window it sits at neutral scale 1.
func (v *Visual) Snapshot(now time.Time) map[hits.Type]OrbState {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make(map[hits.Type]OrbState, len(hits.Types))
	for _, t := range hits.Types {
		state := OrbState{Scale: 1}
		if a, ok := v.activity[t]; ok {
			age := now.Sub(a.LastFired)
			if age >= 0 && age < pulseWindow {
				state.Active = true
				state.Velocity = a.Velocity
				state.Scale = 1 + pulseGain*a.Velocity
			}
		}
		out[t] = state
	}
	return out
}
