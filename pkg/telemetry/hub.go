package telemetry

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opd-ai/go-dronesim/pkg/logging"
	"github.com/opd-ai/go-dronesim/pkg/network"
)

const (
	clientBuffer = 16
	writeWait    = 10 * time.Second
)

// Hub fans samples out to WebSocket clients on /ws and serves the latest
// sample as JSON on /api/pose. Slow clients drop samples rather than stall
// the publisher.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *logging.Logger
	limiter  *network.Limiter

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	latest  []byte
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub returns an empty hub. A nil logger discards; a nil limiter admits
// every connection.
func NewHub(logger *logging.Logger, limiter *network.Limiter) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger,
		limiter: limiter,
		clients: make(map[*wsClient]struct{}),
	}
}

// Handler routes /ws and /api/pose.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/api/pose", h.ServePose)
	return mux
}

// ServePose writes the most recent sample, or 503 before the first one.
func (h *Hub) ServePose(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	latest := h.latest
	h.mu.RUnlock()

	if latest == nil {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(latest)
}

// ServeWS upgrades the connection and streams samples until the client goes
// away or the hub closes. The latest sample, if any, is sent first.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if host := remoteHost(r); h.limiter != nil && !h.limiter.Allow(host) {
		h.logger.Warn(r.Context(), "websocket connection rejected", "remote", host, "tracked", h.limiter.Keys())
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.latest != nil {
		c.send <- h.latest
	}
	h.mu.Unlock()
	h.logger.Debug(r.Context(), "websocket client connected", "remote", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(r.Context(), c)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// readLoop discards inbound messages; it exists to notice disconnects.
func (h *Hub) readLoop(ctx context.Context, c *wsClient) {
	defer h.unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn(ctx, "websocket read error", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Publish records s as the latest sample and queues it for every client.
func (h *Hub) Publish(ctx context.Context, s Sample) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.latest = payload
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Debug(ctx, "dropping sample for slow websocket client", "frame", s.Frame)
		}
	}
	return nil
}

// Clients returns the number of connected WebSocket clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client. Further publishes fail with ErrClosed.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	return nil
}
