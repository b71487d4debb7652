package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dygy/drumorb/internal/hits"
	"github.com/dygy/drumorb/internal/playback"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The app serves its own frontend; cross-origin sockets are not used.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// positionFrame is what the browser sends: the audio element's current
// playback position, reported once per rendered frame.
type positionFrame struct {
	Position float64 `json:"position"`
}

// pulseFrame is what the server pushes back: hits that just became due
// plus the current orb render state.
type pulseFrame struct {
	Pulses []hits.Hit                      `json:"pulses,omitempty"`
	Orbs   map[hits.Type]playback.OrbState `json:"orbs"`
}

// snapshotInterval paces orb-state pushes between firings so decay
// animations stay smooth on the client.
const snapshotInterval = 33 * time.Millisecond

// handleLive runs the playback loop for one browser connection. Incoming
// frames drive the session clock; the scheduler polls that clock and due
// hits are pushed back out. Closing the socket cancels the loop, so no
// scheduling work outlives the connection.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade", "session", sess.ID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Scheduler loop. Batches are handed off through a buffered channel;
	// a stalled client drops pulses rather than blocking the loop.
	batches := make(chan []hits.Hit, 16)
	go sess.Scheduler.Run(ctx, sess.Clock, func(batch []hits.Hit) {
		sess.Visual.Record(batch, time.Now())
		select {
		case batches <- batch:
		default:
		}
	})

	// Reader: position reports in.
	go func() {
		defer cancel()
		for {
			var frame positionFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			sess.Clock.Set(frame.Position)
			sess.Touch()
		}
	}()

	// Writer: pulses and orb snapshots out. Gorilla allows only one
	// concurrent writer, so all writes happen here.
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-batches:
			frame := pulseFrame{Pulses: batch, Orbs: sess.Visual.Snapshot(time.Now())}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			frame := pulseFrame{Orbs: sess.Visual.Snapshot(time.Now())}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}
