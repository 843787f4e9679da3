package notify

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mockupstudio/internal/infra"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	subscriberBuf  = 16
)

// Hub fans notices out to every WebSocket subscribed to a session.
type Hub struct {
	dismissAfter time.Duration
	upgrader     websocket.Upgrader
	logger       *infra.Logger

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub creates a hub. An empty allowedOrigins list, or one containing "*",
// accepts any origin.
func NewHub(dismissAfter time.Duration, allowedOrigins []string, logger *infra.Logger) *Hub {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	allow := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allow[o] = struct{}{}
	}
	return &Hub{
		dismissAfter: dismissAfter,
		logger:       logger,
		subs:         make(map[string]map[*Subscription]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if _, all := allow["*"]; all || len(allow) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allow[origin]
				return ok
			},
		},
	}
}

// Subscription receives the notices published for one session.
type Subscription struct {
	C         <-chan Notice
	ch        chan Notice
	sessionID string
	hub       *Hub
	once      sync.Once
}

// Subscribe registers a new listener for sessionID.
func (h *Hub) Subscribe(sessionID string) *Subscription {
	ch := make(chan Notice, subscriberBuf)
	sub := &Subscription{C: ch, ch: ch, sessionID: sessionID, hub: h}

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*Subscription]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		if set, ok := s.hub.subs[s.sessionID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.hub.subs, s.sessionID)
			}
		}
		s.hub.mu.Unlock()
		close(s.ch)
	})
}

// Publish delivers n to every subscriber of sessionID without blocking.
// Subscribers with a full buffer miss the notice.
func (h *Hub) Publish(sessionID string, n Notice) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[sessionID] {
		select {
		case sub.ch <- n:
		default:
			h.logger.Warn().Str("session_id", sessionID).Msg("notify: subscriber buffer full; notice dropped")
		}
	}
}

// Subscribers reports how many listeners a session has.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// CloseSession drops every subscriber of sessionID.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs[sessionID]))
	for sub := range h.subs[sessionID] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()
	for _, sub := range subs {
		sub.Close()
	}
}

// For returns a Notifier bound to sessionID.
func (h *Hub) For(sessionID string) Notifier {
	return sessionNotifier{hub: h, sessionID: sessionID}
}

type sessionNotifier struct {
	hub       *Hub
	sessionID string
}

func (n sessionNotifier) Notify(_ context.Context, kind Kind, message string) {
	n.hub.Publish(n.sessionID, New(kind, message, n.hub.dismissAfter))
}

// ServeWS upgrades the request and streams the session's notices as JSON
// text frames until either side closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("notify: websocket upgrade failed")
		return
	}

	sub := h.Subscribe(sessionID)
	done := make(chan struct{})
	go h.readPump(conn, done)
	h.writePump(conn, sub, done)
}

// readPump discards client frames and keeps the pong deadline fresh.
func (h *Hub) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug().Err(err).Msg("notify: websocket closed unexpectedly")
			}
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, sub *Subscription, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		conn.Close()
	}()

	for {
		select {
		case n, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(n); err != nil {
				h.logger.Debug().Err(err).Msg("notify: websocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
