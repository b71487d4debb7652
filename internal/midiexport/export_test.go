package midiexport

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/dygy/drumorb/internal/hits"
)

func TestTick(t *testing.T) {
	cases := []struct {
		seconds float64
		want    uint32
	}{
		{0, 0},
		{1.0, 256},  // round(1.0 * 120 * 128 / 60)
		{0.5, 128},
		{2.345, 600}, // round(600.32)
	}
	for _, c := range cases {
		if got := Tick(c.seconds); got != c.want {
			t.Errorf("Tick(%v) = %d, want %d", c.seconds, got, c.want)
		}
	}
}

func TestVelocity(t *testing.T) {
	cases := []struct {
		in   float64
		want uint8
	}{
		{0.8, 101}, // floor(0.8 * 127)
		{0.1, 12},
		{1.0, 127},
		{1.5, 127}, // clamped
		{-1, 0},
	}
	for _, c := range cases {
		if got := Velocity(c.in); got != c.want {
			t.Errorf("Velocity(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestFilename(t *testing.T) {
	now := time.Unix(1700000000, 0)
	name := Filename(now)
	if !strings.HasPrefix(name, "drum-hits-") || !strings.HasSuffix(name, ".mid") {
		t.Errorf("Filename = %q", name)
	}
	if !strings.Contains(name, "1700000000") {
		t.Errorf("Filename %q missing time suffix", name)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	sequence := []hits.Hit{
		{Time: 0.0, Type: hits.HiHat, Velocity: 0.4},
		{Time: 1.0, Type: hits.Kick, Velocity: 0.8},
		{Time: 1.5, Type: hits.Snare, Velocity: 1.0},
	}

	var buf bytes.Buffer
	if err := Write(&buf, sequence); err != nil {
		t.Fatalf("Write: %v", err)
	}

	parsed, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("re-parse exported file: %v", err)
	}

	if mt, ok := parsed.TimeFormat.(smf.MetricTicks); !ok || uint16(mt) != TicksPerBeat {
		t.Errorf("TimeFormat = %v, want %d metric ticks", parsed.TimeFormat, TicksPerBeat)
	}
	if len(parsed.Tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(parsed.Tracks))
	}

	type noteOn struct {
		tick     uint32
		key, vel uint8
	}
	var (
		ons   []noteOn
		offs  int
		tempo bool
	)
	var abs uint32
	for _, ev := range parsed.Tracks[0] {
		abs += ev.Delta
		var ch, key, vel uint8
		var bpm float64
		switch {
		case ev.Message.GetNoteStart(&ch, &key, &vel):
			if ch != drumChannel {
				t.Errorf("note on channel %d, want %d", ch, drumChannel)
			}
			ons = append(ons, noteOn{tick: abs, key: key, vel: vel})
		case ev.Message.GetNoteEnd(&ch, &key):
			offs++
		case ev.Message.GetMetaTempo(&bpm):
			tempo = true
			if bpm != BPM {
				t.Errorf("tempo = %v, want %d", bpm, BPM)
			}
		}
	}

	if !tempo {
		t.Error("exported file has no tempo event")
	}
	if len(ons) != 3 || offs != 3 {
		t.Fatalf("got %d note-ons and %d note-offs, want 3 and 3", len(ons), offs)
	}

	want := []noteOn{
		{tick: 0, key: 42, vel: Velocity(0.4)},   // hihat F#1
		{tick: 256, key: 36, vel: 101},           // kick C1
		{tick: 384, key: 38, vel: Velocity(1.0)}, // snare D1
	}
	for i, w := range want {
		if ons[i] != w {
			t.Errorf("note on %d = %+v, want %+v", i, ons[i], w)
		}
	}
}

func TestWriteSkipsUnknownTypes(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, []hits.Hit{{Time: 0.5, Type: "cowbell", Velocity: 0.5}})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	parsed, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	var ch, key, vel uint8
	for _, ev := range parsed.Tracks[0] {
		if ev.Message.GetNoteStart(&ch, &key, &vel) {
			t.Errorf("unexpected note for unknown type: key %d", key)
		}
	}
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil); err != nil {
		t.Fatalf("Write(nil): %v", err)
	}
	if _, err := smf.ReadFrom(bytes.NewReader(buf.Bytes())); err != nil {
		t.Errorf("empty export is not a valid SMF: %v", err)
	}
}
