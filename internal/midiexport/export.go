package midiexport

import (
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/dygy/drumorb/internal/hits"
)

// Export parameters. Tempo and resolution are fixed assumptions, not
// derived from the audio: the exported file is a hit transcript, not a
// tempo analysis.
const (
	BPM            = 120
	TicksPerBeat   = 128
	NoteLengthTick = 32 // fixed short percussion note
	drumChannel    = 9  // GM percussion channel
)

// GM percussion keys, C1=36 naming convention
var keyForType = map[hits.Type]uint8{
	hits.Kick:  36, // C1
	hits.Snare: 38, // D1
	hits.HiHat: 42, // F#1
}

// Tick converts a hit time in seconds to an absolute MIDI tick.
func Tick(seconds float64) uint32 {
	return uint32(math.Round(seconds * BPM * TicksPerBeat / 60))
}

// Velocity converts a cleaned [0.1,1.0] velocity to MIDI [0,127].
func Velocity(v float64) uint8 {
	mv := math.Floor(v * 127)
	if mv < 0 {
		mv = 0
	}
	if mv > 127 {
		mv = 127
	}
	return uint8(mv)
}

// Filename returns a download name with a current-time suffix.
func Filename(now time.Time) string {
	return fmt.Sprintf("drum-hits-%d.mid", now.Unix())
}

type event struct {
	tick uint32
	msg  midi.Message
}

// Write encodes the cleaned hit sequence as a single-track SMF at a
// fixed 120 BPM, 4/4, 128 ticks per beat.
func Write(w io.Writer, sequence []hits.Hit) error {
	events := make([]event, 0, len(sequence)*2)
	for _, h := range sequence {
		key, ok := keyForType[h.Type]
		if !ok {
			continue // unknown type from an uncleaned sequence, skip
		}
		on := Tick(h.Time)
		events = append(events,
			event{tick: on, msg: midi.NoteOn(drumChannel, key, Velocity(h.Velocity))},
			event{tick: on + NoteLengthTick, msg: midi.NoteOff(drumChannel, key)},
		)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].tick < events[j].tick
	})

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerBeat)

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(BPM))
	tr.Add(0, smf.MetaMeter(4, 4))

	var cursor uint32
	for _, e := range events {
		tr.Add(e.tick-cursor, e.msg)
		cursor = e.tick
	}
	tr.Close(0)

	if err := s.Add(tr); err != nil {
		return fmt.Errorf("add track: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("write midi: %w", err)
	}
	return nil
}
