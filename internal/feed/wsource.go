package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
)

// WSSourceSettings configures the websocket client side of the feed.
type WSSourceSettings struct {
	HandshakeTimeout time.Duration
	// ReadTimeout must exceed the server ping interval; a connection that
	// stays silent for longer is treated as dropped.
	ReadTimeout time.Duration
	WriteTimeout time.Duration
	Buffer       int
}

func DefaultWSSourceSettings() *WSSourceSettings {
	return &WSSourceSettings{
		HandshakeTimeout: 5 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		Buffer:           64,
	}
}

// WSSource subscribes to the server's per-trip websocket feed.
type WSSource struct {
	baseURL  string
	token    string
	dialer   *websocket.Dialer
	settings *WSSourceSettings
	log      *slog.Logger
}

// NewWSSource builds a source against an API base URL such as
// http://localhost:8080/api/v1. The token is sent as a Bearer credential.
func NewWSSource(baseURL, token string, settings *WSSourceSettings, log *slog.Logger) *WSSource {
	if settings == nil {
		settings = DefaultWSSourceSettings()
	}
	return &WSSource{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		dialer:   &websocket.Dialer{HandshakeTimeout: settings.HandshakeTimeout, Proxy: http.ProxyFromEnvironment},
		settings: settings,
		log:      log.With("component", "feed.ws"),
	}
}

var _ Source = (*WSSource)(nil)

// FeedURL returns the websocket URL of a trip's feed.
func (s *WSSource) FeedURL(tripID uuid.UUID) (string, error) {
	u, err := url.Parse(s.baseURL + "/trips/" + tripID.String() + "/feed")
	if err != nil {
		return "", fmt.Errorf("feed.WSSource.FeedURL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.String(), nil
}

// Subscribe dials the feed of tripID. The stream ends when the connection
// drops, a frame cannot be decoded, ctx is cancelled or Close is called.
func (s *WSSource) Subscribe(ctx context.Context, tripID uuid.UUID) (Stream, error) {
	target, err := s.FeedURL(tripID)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}

	ws, resp, err := s.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("feed.WSSource.Subscribe: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("feed.WSSource.Subscribe: %w", err)
	}

	st := &wsStream{
		ws:     ws,
		events: make(chan domain.ChangeEvent, s.settings.Buffer),
		done:   make(chan struct{}),
	}
	ws.SetPingHandler(func(data string) error {
		ws.SetReadDeadline(time.Now().Add(s.settings.ReadTimeout))
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(s.settings.WriteTimeout))
	})

	go st.read(s.settings.ReadTimeout, s.log.With("trip_id", tripID))
	go func() {
		select {
		case <-ctx.Done():
			st.Close()
		case <-st.done:
		}
	}()
	return st, nil
}

type wsStream struct {
	ws     *websocket.Conn
	events chan domain.ChangeEvent
	done   chan struct{}

	mu     sync.Mutex
	err    error
	closed bool
}

func (st *wsStream) read(timeout time.Duration, log *slog.Logger) {
	defer close(st.events)

	for {
		st.ws.SetReadDeadline(time.Now().Add(timeout))
		messageType, data, err := st.ws.ReadMessage()
		if err != nil {
			st.fail(err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			st.fail(fmt.Errorf("feed: decode frame: %w", err))
			return
		}
		ev, err := Decode(m)
		if err != nil {
			log.Warn("dropping invalid feed frame", "error", err)
			continue
		}

		select {
		case st.events <- ev:
		case <-st.done:
			return
		}
	}
}

// fail records why the stream ended unless it was closed on purpose.
func (st *wsStream) fail(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.closed && st.err == nil {
		st.err = err
	}
}

func (st *wsStream) Events() <-chan domain.ChangeEvent { return st.events }

func (st *wsStream) Err() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

func (st *wsStream) Close() {
	st.mu.Lock()
	if st.closed {
		st.mu.Unlock()
		return
	}
	st.closed = true
	st.mu.Unlock()

	close(st.done)
	st.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	st.ws.Close()
}
