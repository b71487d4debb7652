package hits

import "sort"

// Drum type labels as returned by the detection model
type Type string

const (
	Kick  Type = "kick"
	Snare Type = "snare"
	HiHat Type = "hihat"
)

// Types lists all known drum types in display order
var Types = []Type{Kick, Snare, HiHat}

// Valid reports whether t is a known drum type
func (t Type) Valid() bool {
	return t == Kick || t == Snare || t == HiHat
}

// Cleaning parameters
const (
	// DebounceWindow is the minimum separation in seconds below which
	// two same-type hits are considered the same physical strike
	DebounceWindow = 0.035

	// Velocity clamp bounds for cleaned hits
	MinVelocity = 0.1
	MaxVelocity = 1.0
)

// Hit represents a single detected drum hit
type Hit struct {
	Time     float64 `json:"time"`
	Type     Type    `json:"type"`
	Velocity float64 `json:"velocity"`
}

// Clean sorts raw hits by time, drops same-type near-duplicates within
// the debounce window, and clamps velocities into [MinVelocity, MaxVelocity].
// The model output is noisy: it often reports the same strike two or three
// times a few milliseconds apart, and velocities can fall outside [0,1].
// Clean is total over any input (nil included) and idempotent.
func Clean(raw []Hit) []Hit {
	if len(raw) == 0 {
		return []Hit{}
	}

	sorted := make([]Hit, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})

	// Quadratic scan is fine here: drum hits are sparse, a few hundred
	// per track at most.
	cleaned := make([]Hit, 0, len(sorted))
	for _, h := range sorted {
		dup := false
		for _, kept := range cleaned {
			if kept.Type == h.Type && abs(kept.Time-h.Time) < DebounceWindow {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		h.Velocity = clamp(h.Velocity, MinVelocity, MaxVelocity)
		cleaned = append(cleaned, h)
	}
	return cleaned
}

// CountByType groups cleaned hits into per-type counts
func CountByType(hs []Hit) map[Type]int {
	counts := make(map[Type]int)
	for _, h := range hs {
		counts[h.Type]++
	}
	return counts
}

// Duration returns the time of the last hit, or 0 for an empty sequence
func Duration(hs []Hit) float64 {
	if len(hs) == 0 {
		return 0
	}
	return hs[len(hs)-1].Time
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
