package sink

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Alia5/wiistream/apitypes"
)

const (
	wsClientBuffer = 256
	wsWriteTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// WebSocketHub broadcasts every event as a JSON text message to all
// connected monitors. Slow clients drop messages instead of stalling the
// sessions.
type WebSocketHub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	srv     *http.Server
	closed  bool
}

func NewWebSocketHub(logger *slog.Logger) *WebSocketHub {
	return &WebSocketHub{logger: logger, clients: map[*wsClient]struct{}{}}
}

// Clients returns the number of connected monitors.
func (h *WebSocketHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the client goes
// away.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", "error", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, wsClientBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("monitor connected", "remote", r.RemoteAddr)

	go h.writeLoop(c)
	// Reads only detect the close; monitors do not send anything.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read", "error", err)
			}
			break
		}
	}
	h.remove(c)
	h.logger.Info("monitor disconnected", "remote", r.RemoteAddr)
}

func (h *WebSocketHub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *WebSocketHub) writeLoop(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(c)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *WebSocketHub) Handle(ev apitypes.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// ListenAndServe serves the hub on addr at "/events" until Close. It
// returns nil at once when the hub was already closed.
func (h *WebSocketHub) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/events", h)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ln.Close()
	}
	h.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	srv := h.srv
	h.mu.Unlock()

	h.logger.Info("websocket monitor listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the HTTP server and disconnects all monitors. A server that
// has not started yet never will.
func (h *WebSocketHub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	srv := h.srv
	clients := h.clients
	h.clients = map[*wsClient]struct{}{}
	h.mu.Unlock()

	for c := range clients {
		close(c.send)
	}
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
