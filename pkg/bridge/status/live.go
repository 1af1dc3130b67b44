package status

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/priyankay2024/EthernetIP-SNMP-MQTT/models"
)

const (
	// clientQueue bounds each live client's send buffer; a client that
	// cannot keep up loses events rather than stalling the publish path.
	clientQueue  = 16
	writeTimeout = 10 * time.Second
)

// ─────────────────────────────────────────────────────────────────────────────
// Hub
// ─────────────────────────────────────────────────────────────────────────────

// Hub fans outbound publish events to websocket clients. Broadcast never
// blocks: slow clients drop events, disconnected clients are pruned by their
// own read loop.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*liveClient]struct{}
	closed  bool
}

func newHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The status surface is an operator tool on a trusted
			// network; browser origin does not gate it.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*liveClient]struct{}),
	}
}

// Broadcast queues the event on every connected client. Satisfies the
// publish observer shape used by the polling engine and trap listener.
func (h *Hub) Broadcast(ev models.PublishEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			// Slow consumer; the event is lost for this client only.
		}
	}
}

// ClientCount reports the number of connected live clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client. Subsequent upgrade attempts are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*liveClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// serve upgrades the request and pumps events until the client goes away.
// It runs on the HTTP handler goroutine, which doubles as the read loop.
func (h *Hub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("status: websocket upgrade failed", "error", err.Error())
		return
	}

	c := &liveClient{
		conn: conn,
		send: make(chan models.PublishEvent, clientQueue),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("status: live client connected", "remote", conn.RemoteAddr().String())
	go c.writeLoop(h.logger)

	// Read loop: the client sends nothing we care about, but reading is
	// how close frames and dead connections are noticed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(c)
	c.close()
	h.logger.Debug("status: live client disconnected", "remote", conn.RemoteAddr().String())
}

func (h *Hub) remove(c *liveClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// ─────────────────────────────────────────────────────────────────────────────
// Client
// ─────────────────────────────────────────────────────────────────────────────

type liveClient struct {
	conn *websocket.Conn
	send chan models.PublishEvent
	done chan struct{}
	once sync.Once
}

func (c *liveClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *liveClient) writeLoop(logger *slog.Logger) {
	for {
		select {
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(ev); err != nil {
				logger.Debug("status: live write failed", "error", err.Error())
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}
