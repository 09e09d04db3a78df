package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pkordes/trip-timeline/backend/internal/feed"
)

// ServeFeed handles GET /trips/{tripId}/feed by upgrading to a websocket
// and streaming every change of the trip's entries as a feed.Message.
// The server pings periodically; the client only ever sends control frames.
func (s *Server) ServeFeed(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathUUID(r, "tripId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	stream, err := s.feed.Subscribe(r.Context(), tripID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer stream.Close()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.DebugContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	log := s.log.With("trip_id", tripID)
	log.DebugContext(r.Context(), "feed client connected")

	// Drain control frames so pongs and close frames are processed; a read
	// error means the client went away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		ws.SetReadLimit(512)
		pongWait := 2 * s.pingInterval
		//nolint:errcheck // a failed deadline surfaces on the next read.
		ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout)); err != nil {
				return
			}
		case ev, ok := <-stream.Events():
			if !ok {
				code := websocket.CloseGoingAway
				if errors.Is(stream.Err(), feed.ErrSlowSubscriber) {
					code = websocket.ClosePolicyViolation
				}
				//nolint:errcheck // best effort before closing.
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(code, errString(stream.Err())), time.Now().Add(s.writeTimeout))
				return
			}
			ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := ws.WriteJSON(feed.Encode(ev)); err != nil {
				log.DebugContext(r.Context(), "feed write failed", "error", err)
				return
			}
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
